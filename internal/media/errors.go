package media

import "errors"

var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrInvalidAssetPath = errors.New("invalid asset path")
	ErrNilAssetID       = errors.New("asset id must not be nil")
	ErrQueueFull        = errors.New("image processor queue full")
)
