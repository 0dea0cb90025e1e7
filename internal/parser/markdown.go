package parser

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vonshlovens/roomboard/internal/canvas"
)

var (
	// wikiLinkRegex matches [[Page Name]] and [[Page Name|Alias]]
	wikiLinkRegex = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]+)?\]\]`)

	// inlineTagRegex matches #tag-name (but not #123 or inside code blocks)
	inlineTagRegex = regexp.MustCompile(`(?:^|[^&\w])#([a-zA-Z][a-zA-Z0-9_/-]*)`)

	// codeBlockRegex matches fenced code blocks
	codeBlockRegex = regexp.MustCompile("(?s)```.*?```")

	// inlineCodeRegex matches inline code
	inlineCodeRegex = regexp.MustCompile("`[^`]+`")

	// bareURLRegex matches a body that is nothing but one URL
	bareURLRegex = regexp.MustCompile(`^https?://\S+$`)
)

var (
	imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true}
	videoExts = map[string]bool{".mp4": true, ".webm": true, ".mov": true}
	// videoHosts are link targets rendered as video cards
	videoHosts = []string{"youtube.com/", "youtu.be/", "vimeo.com/"}
)

// ParsedNote is a dropped file turned into card fields
type ParsedNote struct {
	Path          string
	Frontmatter   *Frontmatter
	Body          string
	RawContent    string
	OutgoingLinks []string
	InlineTags    []string
}

// Parser handles parsing of dropped notes
type Parser struct{}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and parses a dropped file. Windows internet shortcuts
// (.url) become link cards; everything else is parsed as markdown.
func (p *Parser) ParseFile(path string) (*ParsedNote, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".url") {
		return p.ParseShortcut(string(content), path), nil
	}
	return p.ParseContent(string(content), path)
}

// ParseContent parses markdown content
func (p *Parser) ParseContent(content string, path string) (*ParsedNote, error) {
	note := &ParsedNote{
		Path:       path,
		RawContent: content,
	}

	fm, body, err := ParseFrontmatter(content)
	if err != nil {
		return nil, err
	}
	note.Frontmatter = fm
	note.Body = body
	note.OutgoingLinks = extractWikiLinks(body)
	note.InlineTags = extractInlineTags(body)

	if fm.Title == nil || *fm.Title == "" {
		title := titleFromPath(path)
		fm.Title = &title
	}

	return note, nil
}

// ParseShortcut parses an [InternetShortcut] file
func (p *Parser) ParseShortcut(content string, path string) *ParsedNote {
	title := titleFromPath(path)
	fm := &Frontmatter{Title: &title, Type: string(canvas.TypeLink), Extra: map[string]any{}}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "URL="); ok {
			fm.URL = strings.TrimSpace(v)
			break
		}
	}

	return &ParsedNote{Path: path, Frontmatter: fm, RawContent: content}
}

// Type returns the card type: the frontmatter type when it is valid,
// otherwise a link/image/video card for a lone URL, otherwise text.
func (n *ParsedNote) Type() canvas.ItemType {
	if t := canvas.ItemType(n.Frontmatter.Type); t.Valid() && !t.IsContainer() {
		return t
	}
	u := n.url()
	if u == "" {
		return canvas.TypeText
	}
	return linkType(u)
}

// url returns the link target, if any
func (n *ParsedNote) url() string {
	if n.Frontmatter.URL != "" {
		return n.Frontmatter.URL
	}
	body := strings.TrimSpace(n.Body)
	if bareURLRegex.MatchString(body) {
		return body
	}
	return ""
}

func linkType(u string) canvas.ItemType {
	lower := strings.ToLower(u)
	for _, host := range videoHosts {
		if strings.Contains(lower, host) {
			return canvas.TypeVideo
		}
	}
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	ext := path.Ext(lower)
	switch {
	case imageExts[ext]:
		return canvas.TypeImage
	case videoExts[ext]:
		return canvas.TypeVideo
	}
	return canvas.TypeLink
}

// Draft converts the note into an inbox item draft
func (n *ParsedNote) Draft() canvas.ItemDraft {
	return canvas.ItemDraft{
		Type:     n.Type(),
		Content:  n.Content(),
		Metadata: n.Metadata(),
		Inbox:    true,
	}
}

// Content returns the card content: the URL for link-like cards, the
// trimmed body otherwise
func (n *ParsedNote) Content() string {
	if n.Type() != canvas.TypeText {
		if u := n.url(); u != "" {
			return u
		}
	}
	return strings.TrimSpace(n.Body)
}

// Metadata collects the card metadata of the note
func (n *ParsedNote) Metadata() canvas.Metadata {
	fm := n.Frontmatter
	meta := make(canvas.Metadata, len(fm.Extra)+6)
	for k, v := range fm.Extra {
		meta[k] = v
	}

	if fm.Title != nil && *fm.Title != "" {
		meta["title"] = *fm.Title
	}
	if fm.Width != nil {
		meta["width"] = *fm.Width
	}
	if fm.Height != nil {
		meta["height"] = *fm.Height
	}
	if tags := MergeTags(fm.Tags, n.InlineTags); len(tags) > 0 {
		meta["tags"] = tags
	}
	if len(n.OutgoingLinks) > 0 {
		meta["links"] = n.OutgoingLinks
	}
	if fm.Created != nil {
		meta["created"] = fm.Created.Format(time.RFC3339)
	}
	if n.Path != "" {
		meta["source"] = filepath.ToSlash(n.Path)
	}
	return meta
}

func titleFromPath(p string) string {
	filename := filepath.Base(p)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// extractWikiLinks finds all [[wikilinks]] in the content
func extractWikiLinks(content string) []string {
	matches := wikiLinkRegex.FindAllStringSubmatch(content, -1)
	seen := make(map[string]bool)
	var links []string

	for _, match := range matches {
		if len(match) > 1 {
			link := strings.TrimSpace(match[1])
			// [[folder/page#heading]] -> folder/page
			if idx := strings.Index(link, "#"); idx != -1 {
				link = link[:idx]
			}
			link = strings.TrimSpace(link)

			if link != "" && !seen[link] {
				seen[link] = true
				links = append(links, link)
			}
		}
	}

	return links
}

// extractInlineTags finds all #tags in the content, excluding code blocks
func extractInlineTags(content string) []string {
	cleanContent := codeBlockRegex.ReplaceAllString(content, "")
	cleanContent = inlineCodeRegex.ReplaceAllString(cleanContent, "")

	matches := inlineTagRegex.FindAllStringSubmatch(cleanContent, -1)
	seen := make(map[string]bool)
	var tags []string

	for _, match := range matches {
		if len(match) > 1 {
			tag := strings.ToLower(strings.TrimSpace(match[1]))
			if tag != "" && !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}

	return tags
}

// MergeTags combines frontmatter tags and inline tags, removing duplicates
func MergeTags(frontmatterTags, inlineTags []string) []string {
	seen := make(map[string]bool)
	var merged []string

	for _, list := range [][]string{frontmatterTags, inlineTags} {
		for _, tag := range list {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" && !seen[tag] {
				seen[tag] = true
				merged = append(merged, tag)
			}
		}
	}

	return merged
}

// IsValidUTF8 checks if content is valid UTF-8
func IsValidUTF8(content string) bool {
	return utf8.ValidString(content)
}
