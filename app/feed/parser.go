package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/unicode/norm"
)

type Parser struct {
	gofeedParser *gofeed.Parser
	stripTags    *bluemonday.Policy
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		stripTags:    bluemonday.StrictPolicy(),
	}
}

// Run parses an RSS, Atom or JSON feed document. Items without a usable
// publish date or link are dropped; feed order is preserved.
func (p *Parser) Run(data []byte) (*Metadata, []FetchedPost, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       p.cleanText(feed.Title),
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
		ItemCount:   len(feed.Items),
	}

	if feed.Image != nil {
		metadata.ImageURL = feed.Image.URL
	}

	posts := make([]FetchedPost, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		post, ok := p.normalizeItem(item)
		if !ok {
			continue
		}
		posts = append(posts, post)
	}

	return metadata, posts, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) (FetchedPost, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" && isURL(item.GUID) {
		link = item.GUID
	}
	if link == "" {
		return FetchedPost{}, false
	}

	postDate, ok := p.itemDate(item)
	if !ok {
		return FetchedPost{}, false
	}

	return FetchedPost{
		Title:    cmp.Or(p.cleanText(item.Title), link),
		URL:      link,
		PostDate: postDate,
	}, true
}

// itemDate picks the first usable timestamp: parsed published, parsed
// updated, the raw strings, then a non-standard <published> element.
// Values without a zone are taken as UTC.
func (p *Parser) itemDate(item *gofeed.Item) (time.Time, bool) {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC(), true
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC(), true
	}

	candidates := []string{item.Published, item.Updated}
	if item.Custom != nil {
		candidates = append(candidates, item.Custom["published"])
	}

	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// cleanText strips markup, decodes entities and applies NFC so that equal
// titles compare equal byte for byte.
func (p *Parser) cleanText(s string) string {
	s = p.stripTags.Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.Join(strings.Fields(s), " ")
	return norm.NFC.String(s)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
