package content

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldPublishedAt = "publishedAt"
)

// reporting order when several required fields are missing
var requiredFields = []string{fieldTitle, fieldDescription, fieldPublishedAt}

var (
	headerDelimiters = [][]byte{[]byte("---"), []byte("+++"), []byte(";;;")}
	utf8BOM          = []byte("\xef\xbb\xbf")
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// PublishedAt stays untyped: YAML hands dates over as strings, TOML as time.Time.
type frontMatterEnvelope struct {
	Title       string   `yaml:"title" toml:"title" json:"title"`
	Description string   `yaml:"description" toml:"description" json:"description"`
	PublishedAt any      `yaml:"publishedAt" toml:"publishedAt" json:"publishedAt"`
	Author      string   `yaml:"author" toml:"author" json:"author"`
	Tags        []string `yaml:"tags" toml:"tags" json:"tags"`
	Draft       bool     `yaml:"draft" toml:"draft" json:"draft"`
}

// ParseDocument splits a raw source into validated metadata and the markdown body.
// The header must be a YAML (---), TOML (+++) or JSON (;;;) block at the very start,
// only a byte order mark may precede it. Unknown keys are ignored.
// The body is returned exactly as found after the closing delimiter.
func ParseDocument(raw []byte) (Metadata, []byte, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !startsWithDelimiter(raw) {
		return Metadata{}, nil, &ParseError{Kind: MalformedHeader, Err: errors.New("document does not open with a front matter delimiter")}
	}

	var env frontMatterEnvelope
	body, err := frontmatter.MustParse(bytes.NewReader(raw), &env)
	if err != nil {
		return Metadata{}, nil, &ParseError{Kind: MalformedHeader, Err: err}
	}

	env.Title = strings.TrimSpace(env.Title)
	env.Description = strings.TrimSpace(env.Description)
	// a blank date counts as missing, any other value must parse
	if s, ok := env.PublishedAt.(string); ok {
		env.PublishedAt = strings.TrimSpace(s)
		if env.PublishedAt == "" {
			env.PublishedAt = nil
		}
	}

	if err := validateRequired(&env); err != nil {
		return Metadata{}, nil, err
	}

	publishedAt, err := parseDate(env.PublishedAt)
	if err != nil {
		return Metadata{}, nil, &ParseError{Kind: InvalidDate, Field: fieldPublishedAt, Err: err}
	}

	meta := Metadata{
		Title:       env.Title,
		Description: env.Description,
		PublishedAt: publishedAt,
		Author:      strings.TrimSpace(env.Author),
		Tags:        env.Tags,
		Draft:       env.Draft,
	}
	if body == nil {
		body = []byte{}
	}
	return meta, body, nil
}

func validateRequired(env *frontMatterEnvelope) error {
	err := validation.ValidateStruct(env,
		validation.Field(&env.Title, validation.Required),
		validation.Field(&env.Description, validation.Required),
		validation.Field(&env.PublishedAt, validation.NotNil),
	)
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return &ParseError{Kind: MalformedHeader, Err: err}
	}
	for _, field := range requiredFields {
		if fieldErr, ok := fieldErrs[field]; ok {
			return &ParseError{Kind: MissingField, Field: field, Err: fieldErr}
		}
	}
	return &ParseError{Kind: MalformedHeader, Err: err}
}

func startsWithDelimiter(raw []byte) bool {
	for _, delim := range headerDelimiters {
		if bytes.HasPrefix(raw, delim) {
			return true
		}
	}
	return false
}

func parseDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised date %q", v)
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %v (%T)", v, v)
	}
}
