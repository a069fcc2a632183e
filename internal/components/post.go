package components

import (
	"bytes"
	"context"
	"io"

	"postengine/internal/content"

	"github.com/a-h/templ"
)

// PostPage renders a resolved post. The post content is trusted HTML from the renderer.
func PostPage(site Site, post *content.Post, stylesheet string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		buf.WriteString(`<p class="post-title">` + esc(post.Title) + `</p>`)
		buf.WriteString(`<time class="post-date" datetime="` + post.PublishedAt.Format("2006-01-02") + `">` +
			FormatDate(post.PublishedAt) + `</time>`)
		if post.Author != "" {
			buf.WriteString(`<span class="post-author">` + esc(post.Author) + `</span>`)
		}
		if len(post.Tags) > 0 {
			buf.WriteString(`<ul class="post-tags">`)
			for _, tag := range post.Tags {
				buf.WriteString(`<li>` + esc(tag) + `</li>`)
			}
			buf.WriteString(`</ul>`)
		}
		buf.WriteString(`<article class="markdown-body">`)
		buf.WriteString(post.Content)
		buf.WriteString(`</article>`)

		_, err := w.Write(buf.Bytes())
		return err
	})

	head := HeadOptions{
		Title:       post.Title,
		Description: post.Description,
		Styles:      []string{stylesheet},
	}
	return Page(site, head, Header(site), body)
}

// PostPreview is a single entry of the index list
func PostPreview(post *content.Post) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<li class="post-preview"><a href="/blog/`+esc(post.Slug)+`">`+
			`<time>`+FormatDate(post.PublishedAt)+`</time>`+
			`<div><p class="preview-title">`+esc(post.Title)+`</p>`+
			`<p class="preview-description">`+esc(post.Description)+`</p></div></a></li>`)
		return err
	})
}

// IndexPage lists posts in the order given
func IndexPage(site Site, posts []*content.Post) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if len(posts) == 0 {
			buf.WriteString(`<p class="empty">Nothing published yet.</p>`)
		} else {
			buf.WriteString(`<ul class="post-list">`)
			for _, post := range posts {
				if err := PostPreview(post).Render(ctx, &buf); err != nil {
					return err
				}
			}
			buf.WriteString(`</ul>`)
		}

		_, err := w.Write(buf.Bytes())
		return err
	})

	return Page(site, HeadOptions{}, HomeHeader(site), body)
}
