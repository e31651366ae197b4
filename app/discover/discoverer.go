package discover

import (
	"bytes"
	"cmp"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

// ErrNoFeed is returned when a document is reachable but is not a feed.
var ErrNoFeed = errors.New("no feed found")

var feedTypes = map[string]bool{
	"application/rss+xml":   true,
	"application/atom+xml":  true,
	"application/rdf+xml":   true,
	"application/feed+json": true,
	"application/x-rss+xml": true,
	"text/xml":              true,
}

type DocumentFetcher interface {
	FetchDocument(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Cache stores discovery results. Failures are logged and otherwise ignored.
type Cache interface {
	GenerateKey(namespace, rawURL string) string
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type FeedInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Discoverer struct {
	fetcher DocumentFetcher
	parser  *feed.Parser
	cache   Cache
	ttl     time.Duration
}

// NewDiscoverer builds a Discoverer. cache may be nil.
func NewDiscoverer(fetcher DocumentFetcher, parser *feed.Parser, cache Cache, ttl time.Duration) *Discoverer {
	if parser == nil {
		parser = feed.NewParser()
	}
	return &Discoverer{
		fetcher: fetcher,
		parser:  parser,
		cache:   cache,
		ttl:     ttl,
	}
}

// ScanForFeeds returns the feed URLs advertised by the page at pageURL through
// <link rel="alternate"> elements, resolved to absolute form, in document order.
func (d *Discoverer) ScanForFeeds(ctx context.Context, pageURL string) ([]string, error) {
	var cached []string
	if d.lookup(ctx, "discover:scan", pageURL, &cached) {
		return cached, nil
	}

	data, contentType, err := d.fetcher.FetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	links, err := scanLinks(data, contentType, pageURL)
	if err != nil {
		return nil, err
	}

	d.store(ctx, "discover:scan", pageURL, links)

	return links, nil
}

// ExtractFeedInfo fetches feedURL and returns its display name. A document
// that is not a feed, or a feed without a channel, yields ErrNoFeed.
func (d *Discoverer) ExtractFeedInfo(ctx context.Context, feedURL string) (*FeedInfo, error) {
	var cached FeedInfo
	if d.lookup(ctx, "discover:extract", feedURL, &cached) {
		return &cached, nil
	}

	data, _, err := d.fetcher.FetchDocument(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	metadata, _, err := d.parser.Run(data)
	if err != nil {
		slog.Debug("Document is not a feed", "url", feedURL, "error", err)
		return nil, ErrNoFeed
	}
	if metadata.Title == "" && metadata.Link == "" && metadata.Description == "" && metadata.ItemCount == 0 && !hasChannel(data) {
		return nil, ErrNoFeed
	}

	info := &FeedInfo{
		Name: cmp.Or(metadata.Title, feedURL),
		URL:  feedURL,
	}

	d.store(ctx, "discover:extract", feedURL, info)

	return info, nil
}

func (d *Discoverer) lookup(ctx context.Context, namespace, rawURL string, dest any) bool {
	if d.cache == nil {
		return false
	}

	found, err := d.cache.GetJSON(ctx, d.cache.GenerateKey(namespace, rawURL), dest)
	if err != nil {
		slog.Warn("Discovery cache read failed", "url", rawURL, "error", err)
		return false
	}
	return found
}

func (d *Discoverer) store(ctx context.Context, namespace, rawURL string, value any) {
	if d.cache == nil || d.ttl <= 0 {
		return
	}

	if err := d.cache.SetJSON(ctx, d.cache.GenerateKey(namespace, rawURL), value, d.ttl); err != nil {
		slog.Warn("Discovery cache write failed", "url", rawURL, "error", err)
	}
}

func scanLinks(data []byte, contentType, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page url: %w", err)
	}

	reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		reader = bytes.NewReader(data)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	links := []string{}
	seen := make(map[string]bool)

	doc.Find("link[rel][href]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if !hasToken(rel, "alternate") {
			return
		}

		typ, _ := s.Attr("type")
		mediaType, _, err := mime.ParseMediaType(typ)
		if err != nil || !feedTypes[strings.ToLower(mediaType)] {
			return
		}

		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}

		resolved := base.ResolveReference(ref).String()
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})

	return links, nil
}

// hasChannel reports whether an XML feed document carries a channel, even an
// empty one. An Atom <feed> root is its own channel.
func hasChannel(data []byte) bool {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.CharsetReader = charset.NewReaderLabel

	root := true
	for {
		tok, err := decoder.Token()
		if err != nil {
			return false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		name := strings.ToLower(start.Name.Local)
		if name == "channel" || (root && name == "feed") {
			return true
		}
		root = false
	}
}

func hasToken(list, token string) bool {
	for _, t := range strings.Fields(list) {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}
