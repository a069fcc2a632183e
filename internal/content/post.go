package content

import (
	"time"
)

// Metadata is the validated front matter of a post. Title, Description and PublishedAt are always set.
type Metadata struct {
	Title       string
	Description string // for SEO
	PublishedAt time.Time
	Author      string
	Tags        []string
	Draft       bool
}

// Post is a fully resolved article. Content is rendered HTML that is safe to embed as is.
type Post struct {
	Slug        string
	Title       string
	Description string
	PublishedAt time.Time
	Author      string
	Tags        []string
	Draft       bool
	Content     string
}

func newPost(slug string, meta Metadata, html string) *Post {
	return &Post{
		Slug:        slug,
		Title:       meta.Title,
		Description: meta.Description,
		PublishedAt: meta.PublishedAt,
		Author:      meta.Author,
		Tags:        append([]string(nil), meta.Tags...),
		Draft:       meta.Draft,
		Content:     html,
	}
}
