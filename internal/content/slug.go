package content

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/goliatone/go-slug"
)

var sourceExtensions = []string{".md", ".markdown"}

// isSourceKey reports whether a storage key names a post source
func isSourceKey(key string) bool {
	return slices.Contains(sourceExtensions, strings.ToLower(path.Ext(key)))
}

// SlugFromKey derives the public slug of a source: the base file name without its
// extension, normalized to lower case with runs of other characters collapsed to '-'.
// "posts/Hello World.md" and "hello-world.markdown" both map to "hello-world".
func SlugFromKey(key string) (string, error) {
	base := path.Base(strings.ReplaceAll(key, "\\", "/"))
	name := strings.TrimSuffix(base, path.Ext(base))

	normalized, err := slug.Normalize(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidSlug, key, err)
	}
	if normalized == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidSlug, key)
	}
	return normalized, nil
}
