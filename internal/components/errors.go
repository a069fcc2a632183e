package components

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
)

const (
	NotFoundDescription    = "We couldn't find the post you're looking for."
	MalformedDescription   = "This post could not be displayed."
	UnavailableDescription = "This post is temporarily unavailable, please try again later."
	InternalDescription    = "Something went wrong on our side."
)

// ErrorPage shows a status code with a human readable description
func ErrorPage(site Site, status int, description string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="server-code"><p class="code">`+strconv.Itoa(status)+`</p>`+
			`<p class="code-text">`+esc(http.StatusText(status))+`</p>`+
			`<p class="code-description">`+esc(description)+`</p>`+
			`<a href="/">Back to all posts</a></div>`)
		return err
	})

	head := HeadOptions{Title: strconv.Itoa(status) + " " + http.StatusText(status)}
	return Page(site, head, Header(site), body)
}
