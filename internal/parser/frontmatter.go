package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// frontmatterRegex matches a leading YAML block between --- lines
	frontmatterRegex = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|$)`)

	dateFormats = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
		"January 2, 2006",
		"Jan 2, 2006",
		"02-01-2006",
		"02/01/2006",
	}
)

// Frontmatter holds the card settings of a dropped note
type Frontmatter struct {
	Title   *string
	Type    string // card type; empty means detect from the body
	URL     string // link target for link cards
	Tags    []string
	Width   *float64 // card size hint, stored as metadata
	Height  *float64
	Created *time.Time
	Extra   map[string]any // unknown fields, passed through as metadata
}

// ParseFrontmatter splits content into its frontmatter and body. Content
// without a frontmatter block, or with one that is not valid YAML, is
// returned whole as the body.
func ParseFrontmatter(content string) (*Frontmatter, string, error) {
	fm := &Frontmatter{
		Extra: make(map[string]any),
	}

	match := frontmatterRegex.FindStringSubmatch(content)
	if match == nil {
		return fm, content, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(match[1]), &fields); err != nil {
		slog.Debug("ignoring malformed frontmatter", "error", err)
		return fm, content, nil
	}

	for key, val := range fields {
		switch strings.ToLower(key) {
		case "title":
			if s := scalarString(val); s != "" {
				fm.Title = &s
			}
		case "type":
			fm.Type = strings.ToLower(scalarString(val))
		case "url":
			fm.URL = scalarString(val)
		case "tags":
			fm.Tags = normalizeStringArray(val)
		case "width":
			fm.Width = positiveNumber(val)
		case "height":
			fm.Height = positiveNumber(val)
		case "created":
			fm.Created = parseDate(val)
		default:
			fm.Extra[key] = val
		}
	}

	return fm, content[len(match[0]):], nil
}

// scalarString renders a YAML scalar as trimmed text; collections yield ""
func scalarString(v any) string {
	switch val := v.(type) {
	case nil, map[string]any, []any:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func positiveNumber(v any) *float64 {
	var f float64
	switch val := v.(type) {
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case float64:
		f = val
	default:
		return nil
	}
	if f <= 0 {
		return nil
	}
	return &f
}

// parseDate accepts timestamps and the common written date formats.
// Unparseable dates are dropped rather than failing the note.
func parseDate(v any) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	s := scalarString(v)
	if s == "" {
		return nil
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}
	return nil
}

// normalizeStringArray converts string or []string or []any to []string
func normalizeStringArray(v any) []string {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if s := scalarString(item); s != "" {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
