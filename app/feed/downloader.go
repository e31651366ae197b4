package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const maxDocumentSize = 10 << 20

// Downloader retrieves documents over HTTP and turns feeds into FetchedPosts.
type Downloader struct {
	httpClient *http.Client
	parser     *Parser
	limiter    *HostLimiter
	userAgent  string
	timeout    time.Duration
}

type DownloaderOption func(*Downloader)

func WithHostLimiter(l *HostLimiter) DownloaderOption {
	return func(d *Downloader) { d.limiter = l }
}

func WithUserAgent(ua string) DownloaderOption {
	return func(d *Downloader) { d.userAgent = ua }
}

func WithTimeout(timeout time.Duration) DownloaderOption {
	return func(d *Downloader) { d.timeout = timeout }
}

func NewDownloader(httpClient *http.Client, parser *Parser, opts ...DownloaderOption) *Downloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if parser == nil {
		parser = NewParser()
	}

	d := &Downloader{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  "rss-feeds",
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads sourceURL and returns at most limit posts in feed order.
// Transport failures come back as *FetchError; a document that cannot be
// parsed as a feed yields no posts and no error.
func (d *Downloader) Fetch(ctx context.Context, sourceURL string, limit int) ([]FetchedPost, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	data, _, err := d.FetchDocument(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	_, posts, err := d.parser.Run(data)
	if err != nil {
		slog.Debug("Malformed feed ignored", "url", sourceURL, "error", err)
		return []FetchedPost{}, nil
	}

	if len(posts) > limit {
		posts = posts[:limit]
	}

	return posts, nil
}

// FetchDocument performs a GET and returns the body together with its Content-Type.
func (d *Downloader) FetchDocument(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", &FetchError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}

	if err := d.limiter.Wait(ctx, rawURL); err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: err}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP error: %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return data, resp.Header.Get("Content-Type"), nil
}
