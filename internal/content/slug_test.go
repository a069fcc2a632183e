package content

import (
	"errors"
	"testing"
)

func TestSlugFromKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr error
	}{
		{name: "plain", key: "hello-world.md", want: "hello-world"},
		{name: "nested", key: "posts/2024/hello-world.md", want: "hello-world"},
		{name: "long extension", key: "hello-world.markdown", want: "hello-world"},
		{name: "upper case extension", key: "Hello.MD", want: "hello"},
		{name: "spaces", key: "posts/Hello World.md", want: "hello-world"},
		{name: "windows separators", key: `posts\Dup.md`, want: "dup"},
		{name: "nothing left", key: "posts/.md", wantErr: ErrInvalidSlug},
		{name: "only symbols", key: "!!!.md", wantErr: ErrInvalidSlug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SlugFromKey(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got err %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsSourceKey(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"a.md":          true,
		"a.Markdown":    true,
		"dir/b.MD":      true,
		"cover.png":     false,
		"notes.txt":     false,
		"md":            false,
		"archive.md.gz": false,
	}

	for key, want := range tests {
		if got := isSourceKey(key); got != want {
			t.Errorf("isSourceKey(%q) = %v, want %v", key, got, want)
		}
	}
}
