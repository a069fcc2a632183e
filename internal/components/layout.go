package components

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/a-h/templ"
)

const dateLayout = "January 2, 2006"

// Site holds the blog wide values every page shows
type Site struct {
	Title       string
	Description string
	OGImage     string
}

// HeadOptions overrides the site defaults in the document head
type HeadOptions struct {
	Title       string
	Description string
	Styles      []string
}

// FormatDate renders t as a long US date, "January 2, 2006"
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func esc(s string) string {
	return templ.EscapeString(s)
}

func writeMeta(buf *bytes.Buffer, attr, key, value string) {
	buf.WriteString(`<meta ` + attr + `="` + key + `" content="` + esc(value) + `">`)
}

// Head writes the document head with primary, Open Graph and Twitter meta tags
func Head(site Site, opts HeadOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := opts.Title
		if title == "" {
			title = site.Title
		}
		description := opts.Description
		if description == "" {
			description = site.Description
		}

		var buf bytes.Buffer
		buf.WriteString(`<head><meta charset="utf-8">`)
		buf.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		buf.WriteString(`<title>` + esc(title) + `</title>`)
		writeMeta(&buf, "name", "title", title)
		writeMeta(&buf, "name", "description", description)
		writeMeta(&buf, "name", "theme-color", "#000")

		writeMeta(&buf, "property", "og:type", "website")
		writeMeta(&buf, "property", "og:title", title)
		writeMeta(&buf, "property", "og:description", description)
		writeMeta(&buf, "property", "og:image", site.OGImage)

		writeMeta(&buf, "property", "twitter:card", "summary_large_image")
		writeMeta(&buf, "property", "twitter:title", title)
		writeMeta(&buf, "property", "twitter:description", description)
		writeMeta(&buf, "property", "twitter:image", site.OGImage)

		buf.WriteString(`<link rel="stylesheet" href="/static/styles.css">`)
		// styles are produced by the renderer, never by user input
		for _, css := range opts.Styles {
			buf.WriteString(`<style>` + css + `</style>`)
		}
		buf.WriteString(`</head>`)

		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Header is the compact bar linking back to the index
func Header(site Site) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<header class="site-header"><div class="container"><a href="/" class="site-title">`+
			esc(site.Title)+`</a></div></header>`)
		return err
	})
}

// HomeHeader is the large banner on the index page
func HomeHeader(site Site) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<header class="home-header"><div class="container"><p class="home-title">`+
			esc(site.Title)+`</p><p class="home-description">`+esc(site.Description)+`</p></div></header>`)
		return err
	})
}

func footer(site Site) string {
	return `<footer class="site-footer"><div class="container">` + esc(site.Title) + `</div></footer>`
}

// Page wraps header and body in a complete html document
func Page(site Site, head HeadOptions, header, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		buf.WriteString(`<!doctype html><html lang="en">`)
		if err := Head(site, head).Render(ctx, &buf); err != nil {
			return err
		}
		buf.WriteString(`<body><div class="layout">`)
		if err := header.Render(ctx, &buf); err != nil {
			return err
		}
		buf.WriteString(`<main class="container">`)
		if err := body.Render(ctx, &buf); err != nil {
			return err
		}
		buf.WriteString(`</main>`)
		buf.WriteString(footer(site))
		buf.WriteString(`</div></body></html>`)

		_, err := w.Write(buf.Bytes())
		return err
	})
}
