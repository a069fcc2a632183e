package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"postengine/internal/storage"

	"github.com/gofrs/uuid/v5"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// IsImageKey reports whether a storage key names an image the asset manager can serve
func IsImageKey(key string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(path.Ext(key)))
}

// AssetManager hides storage paths behind stable uuid v5 ids derived from the cleaned path
type AssetManager struct {
	store      storage.Provider
	mu         sync.RWMutex
	uuidToPath map[uuid.UUID]string
	pathToUuid map[string]uuid.UUID
	namespace  uuid.UUID
}

func NewAssetManager(store storage.Provider, ns uuid.UUID) *AssetManager {
	return &AssetManager{
		store:      store,
		uuidToPath: make(map[uuid.UUID]string),
		pathToUuid: make(map[string]uuid.UUID),
		namespace:  ns,
	}
}

func cleanAssetPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", ErrInvalidAssetPath
	}
	cleaned := path.Clean(strings.TrimPrefix(p, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %s", ErrInvalidAssetPath, p)
	}
	return cleaned, nil
}

// Obfuscate takes a real path (from markdown) and returns a UUID, returning the existing UUID if present
func (am *AssetManager) Obfuscate(p string) (uuid.UUID, error) {
	cleanPath, err := cleanAssetPath(p)
	if err != nil {
		return uuid.Nil, err
	}

	am.mu.RLock()
	existing, ok := am.pathToUuid[cleanPath]
	am.mu.RUnlock()
	if ok {
		return existing, nil
	}

	newUuid := uuid.NewV5(am.namespace, cleanPath)

	am.mu.Lock()
	defer am.mu.Unlock()

	if existing, ok := am.pathToUuid[cleanPath]; ok {
		return existing, nil
	}

	am.pathToUuid[cleanPath] = newUuid
	am.uuidToPath[newUuid] = cleanPath

	return newUuid, nil
}

// Index registers every image held by the store so ids resolve before any post is rendered
func (am *AssetManager) Index(ctx context.Context, logger *slog.Logger) (int, error) {
	keys, err := am.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not enumerate assets: %w", err)
	}

	count := 0
	for _, key := range keys {
		if !IsImageKey(key) || strings.HasPrefix(key, variantPrefix) {
			continue
		}
		if _, err := am.Obfuscate(key); err != nil {
			logger.Warn("skipping asset", "key", key, "err", err)
			continue
		}
		count++
	}
	return count, nil
}

// Retrieve returns the file stream for a given UUID
func (am *AssetManager) Retrieve(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	storedPath, err := am.GetRelativePath(id)
	if err != nil {
		return nil, err
	}
	return am.store.Open(ctx, storedPath)
}

func (am *AssetManager) GetRelativePath(id uuid.UUID) (string, error) {
	if id.IsNil() {
		return "", ErrNilAssetID
	}

	am.mu.RLock()
	p, ok := am.uuidToPath[id]
	am.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	return p, nil
}

func (am *AssetManager) RetrieveKey(ctx context.Context, key string) (io.ReadCloser, error) {
	return am.store.Open(ctx, key)
}

func (am *AssetManager) Exists(ctx context.Context, key string) bool {
	return am.store.Exists(ctx, key)
}
