package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-feeds/app/discover"
	"github.com/lysyi3m/rss-feeds/app/feed"
)

func TestScanFeeds(t *testing.T) {
	env := newTestEnv(t, "")
	const page = "https://blog.example.com/"
	env.discoverer.scans[page] = []string{"https://blog.example.com/rss", "https://blog.example.com/atom"}
	env.discoverer.errs["https://down.example.com/"] = &feed.FetchError{URL: "https://down.example.com/", StatusCode: 502}

	t.Run("missing url", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/discover/scan", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("plain url", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/discover/scan?url="+url.QueryEscape(page), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"https://blog.example.com/rss", "https://blog.example.com/atom"}, decode[[]string](t, w))
	})

	t.Run("base64 url", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString([]byte(page))
		w := env.do(t, http.MethodGet, "/api/discover/scan?url="+url.QueryEscape(encoded), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, page, env.discoverer.lastScan)
		assert.Len(t, decode[[]string](t, w), 2)
	})

	t.Run("page without feeds", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/discover/scan?url="+url.QueryEscape("https://empty.example.com/"), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("unreachable page", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/discover/scan?url="+url.QueryEscape("https://down.example.com/"), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Wrong URL.", detailOf(t, w))
	})
}

func TestExtractFeed(t *testing.T) {
	env := newTestEnv(t, "")
	const feedURL = "https://blog.example.com/rss"
	env.discoverer.infos[feedURL] = &discover.FeedInfo{Name: "Example blog", URL: feedURL}
	env.discoverer.errs["https://down.example.com/rss"] = &feed.FetchError{URL: "https://down.example.com/rss", Err: errors.New("connection refused")}
	env.discoverer.errs["https://broken.example.com/rss"] = errors.New("unexpected")

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantDetail string
	}{
		{"missing url", "", http.StatusNotFound, "No feeds"},
		{"not a feed", "?url=" + url.QueryEscape("https://blog.example.com/"), http.StatusNotFound, "No feeds"},
		{"unreachable", "?url=" + url.QueryEscape("https://down.example.com/rss"), http.StatusNotFound, "Wrong URL."},
		{"unexpected failure", "?url=" + url.QueryEscape("https://broken.example.com/rss"), http.StatusInternalServerError, "Internal server error."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/discover/extract"+tt.query, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantDetail, detailOf(t, w))
		})
	}

	w := env.do(t, http.MethodGet, "/api/discover/extract?url="+url.QueryEscape(base64.URLEncoding.EncodeToString([]byte(feedURL))), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"Example blog","url":"https://blog.example.com/rss"}`, w.Body.String())
}

func TestDecodeURLParam(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/feed?a=1", "https://example.com/feed?a=1"},
		{base64.StdEncoding.EncodeToString([]byte("http://example.com/")), "http://example.com/"},
		{base64.RawURLEncoding.EncodeToString([]byte("https://example.com/?q=a+b")), "https://example.com/?q=a+b"},
		{"not a url", "not a url"},
		{base64.StdEncoding.EncodeToString([]byte("ftp://example.com/")), base64.StdEncoding.EncodeToString([]byte("ftp://example.com/"))},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, decodeURLParam(tt.in), tt.in)
	}
}
