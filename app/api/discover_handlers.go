package api

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-feeds/app/discover"
	"github.com/lysyi3m/rss-feeds/app/feed"
)

// ScanFeeds lists the feeds advertised by a web page. A request without a
// url yields an empty list.
func (h *Handler) ScanFeeds(c *gin.Context) {
	raw, ok := c.GetQuery("url")
	if !ok {
		c.JSON(http.StatusOK, []string{})
		return
	}

	links, err := h.discoverer.ScanForFeeds(c.Request.Context(), decodeURLParam(raw))
	if err != nil {
		slog.Debug("Feed scan failed", "url", raw, "error", err)
		detail(c, http.StatusNotFound, "Wrong URL.")
		return
	}

	if links == nil {
		links = []string{}
	}
	c.JSON(http.StatusOK, links)
}

// ExtractFeed returns the name of the feed at url.
func (h *Handler) ExtractFeed(c *gin.Context) {
	raw, ok := c.GetQuery("url")
	if !ok {
		detail(c, http.StatusNotFound, "No feeds")
		return
	}

	info, err := h.discoverer.ExtractFeedInfo(c.Request.Context(), decodeURLParam(raw))
	if err != nil {
		var fetchErr *feed.FetchError
		switch {
		case errors.As(err, &fetchErr):
			detail(c, http.StatusNotFound, "Wrong URL.")
		case errors.Is(err, discover.ErrNoFeed):
			detail(c, http.StatusNotFound, "No feeds")
		default:
			slog.Error("Feed extraction failed", "url", raw, "error", err)
			detail(c, http.StatusInternalServerError, "Internal server error.")
		}
		return
	}

	c.JSON(http.StatusOK, info)
}

// decodeURLParam accepts a plain URL or one encoded in standard or URL-safe base64.
func decodeURLParam(raw string) string {
	raw = strings.TrimSpace(raw)
	if isHTTPURL(raw) {
		return raw
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		decoded, err := enc.DecodeString(raw)
		if err == nil && isHTTPURL(string(decoded)) {
			return string(decoded)
		}
	}
	return raw
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
