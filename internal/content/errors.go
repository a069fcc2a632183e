package content

import (
	"errors"
	"fmt"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrFileTooLarge = errors.New("file too large")
	// store
	ErrDuplicateSlug     = errors.New("duplicate slug")
	ErrInvalidSlug       = errors.New("invalid slug")
	ErrSourceUnavailable = errors.New("source unavailable")
	// front matter
	ErrMalformedPost = errors.New("malformed post")
	// markdown
	ErrMDConversion = errors.New("could not convert MD to HTML")
)

type ParseErrorKind int

const (
	MissingField ParseErrorKind = iota + 1
	InvalidDate
	MalformedHeader
)

func (k ParseErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case InvalidDate:
		return "invalid date"
	case MalformedHeader:
		return "malformed header"
	default:
		return "unknown"
	}
}

// ParseError reports a source that exists but whose header is structurally invalid.
// Slug is empty when returned by ParseDocument and filled in by the Resolver.
type ParseError struct {
	Slug  string
	Kind  ParseErrorKind
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	msg := e.Kind.String()
	if e.Field != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Field)
	}
	if e.Slug != "" {
		msg = fmt.Sprintf("post %q: %s", e.Slug, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrMalformedPost }

// SourceError reports a source that exists but could not be read.
type SourceError struct {
	Slug string
	Key  string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("post %q (%s): %v: %v", e.Slug, e.Key, ErrSourceUnavailable, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }
