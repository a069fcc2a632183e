package content

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"postengine/internal/media"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gofrs/uuid/v5"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// list markers are reset by most CSS resets, rendered posts want them back
const listCSS = `
.markdown-body ul {
  list-style-type: disc;
}
.markdown-body ol {
  list-style-type: decimal;
}
.markdown-body table {
  border-collapse: collapse;
}
.markdown-body th,
.markdown-body td {
  border: 1px solid #d0d7de;
  padding: 6px 13px;
}
.markdown-body li.task-list-item,
.markdown-body li:has(> input[type=checkbox]) {
  list-style-type: none;
}
`

// AssetLinker hands out stable public ids for local files referenced by posts
type AssetLinker interface {
	Obfuscate(path string) (uuid.UUID, error)
}

// MarkDownRenderer converts GitHub flavoured markdown into HTML.
// Raw HTML in the source is dropped and unsafe link schemes are blanked, so the
// output can be embedded without further sanitising. It is safe for concurrent use.
type MarkDownRenderer struct {
	engine     goldmark.Markdown
	stylesheet string
}

// sizes hint matching the article column width in static/styles.css
const imageSizes = "(max-width: 48rem) 100vw, 48rem"

// NewMarkDownRenderer builds a renderer highlighting code with the named chroma style.
// assets may be nil, in which case image references are left untouched. Local images
// the media processor can resize get a srcset listing one webp variant per width.
func NewMarkDownRenderer(style string, assets AssetLinker, variantWidths ...int) (*MarkDownRenderer, error) {
	parserOptions := []parser.Option{
		parser.WithAutoHeadingID(),
	}
	if assets != nil {
		widths := slices.Clone(variantWidths)
		slices.Sort(widths)
		parserOptions = append(parserOptions,
			parser.WithASTTransformers(util.Prioritized(&assetTransformer{
				assets: assets,
				widths: slices.Compact(widths),
			}, 100)),
		)
	}

	engine := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
			extension.TaskList,
			emoji.Emoji,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				// classes instead of inline styles so the CSS ships once per page
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithParserOptions(parserOptions...),
	)

	css, err := buildStylesheet(style)
	if err != nil {
		return nil, err
	}

	return &MarkDownRenderer{engine: engine, stylesheet: css}, nil
}

func buildStylesheet(style string) (string, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(style)); err != nil {
		return "", fmt.Errorf("could not build %q stylesheet: %w", style, err)
	}
	buf.WriteString(listCSS)
	return buf.String(), nil
}

// Render converts a markdown body into HTML
func (m *MarkDownRenderer) Render(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	// html output is larger than markdown add 50% to the buffer
	buf.Grow(len(source) + (len(source) / 2))

	if err := m.engine.Convert(source, &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMDConversion, err)
	}

	return buf.Bytes(), nil
}

// Stylesheet returns the static CSS for rendered posts: code highlighting, lists and tables
func (m *MarkDownRenderer) Stylesheet() string {
	return m.stylesheet
}

type assetTransformer struct {
	assets AssetLinker
	widths []int
}

func (a *assetTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		// walk has finished
		if !entering {
			return ast.WalkContinue, nil
		}

		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}

		originPath := string(img.Destination)
		if !isLocalReference(originPath) {
			return ast.WalkContinue, nil
		}

		assetPath := path.Clean(strings.TrimPrefix(originPath, "./"))
		id, err := a.assets.Obfuscate(assetPath)
		if err != nil {
			// leave the reference as written, a broken image beats a failed page
			return ast.WalkContinue, nil
		}

		img.Destination = []byte("/assets/" + id.String())
		if len(a.widths) > 0 && media.SupportsVariants(assetPath) {
			img.SetAttributeString("srcset", variantSrcset(id, a.widths))
			img.SetAttributeString("sizes", imageSizes)
		}

		return ast.WalkContinue, nil
	})
}

// variantSrcset lists the /assets/<id>_<width> renditions served by the asset handler
func variantSrcset(id uuid.UUID, widths []int) string {
	candidates := make([]string, 0, len(widths))
	for _, w := range widths {
		width := strconv.Itoa(w)
		candidates = append(candidates, "/assets/"+id.String()+"_"+width+" "+width+"w")
	}
	return strings.Join(candidates, ", ")
}

// isLocalReference reports whether dest points at a file next to the sources
// rather than a remote URL or an absolute site path
func isLocalReference(dest string) bool {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "#") {
		return false
	}

	u, err := url.Parse(dest)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && !strings.HasPrefix(path.Clean(u.Path), "..")
}
