package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-feeds/app/cfg"
	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/feed"
)

const userKey = "user"

// NewHandler wires the HTTP handlers. cache may be nil when no discovery
// cache is configured.
func NewHandler(subscriptionRepo database.SubscriptionRepository, linkRepo database.LinkRepository,
	postRepo database.PostRepository, engine Synchronizer, discoverer FeedDiscoverer,
	filterer *feed.Filterer, cache HealthReporter, defaultPostLimit int) *Handler {
	return &Handler{
		subscriptionRepo: subscriptionRepo,
		linkRepo:         linkRepo,
		postRepo:         postRepo,
		generator:        feed.NewGenerator(),
		engine:           engine,
		discoverer:       discoverer,
		filterer:         filterer,
		cache:            cache,
		defaultPostLimit: defaultPostLimit,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()

	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.Get().Version,
	}

	if count, err := h.subscriptionRepo.GetSubscriptionCount(ctx); err == nil {
		health["subscriptions"] = count
	} else {
		health["status"] = "degraded"
		slog.Error("Database error", "operation", "count_subscriptions", "error", err)
	}

	if count, err := h.linkRepo.GetSourceLinkCount(ctx); err == nil {
		health["source_links"] = count
	}

	if h.cache != nil {
		health["cache"] = h.cache.Health(ctx)
	}

	c.JSON(http.StatusOK, health)
}

// Sync runs one synchronization pass and reports its counters.
func (h *Handler) Sync(c *gin.Context) {
	result := h.engine.Synchronize(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

func currentUser(c *gin.Context) string {
	return c.GetString(userKey)
}

func detail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"detail": message})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 0 {
		detail(c, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}

// respondError maps repository errors to responses.
func respondError(c *gin.Context, operation string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}
	slog.Error("Database error", "operation", operation, "error", err)
	detail(c, http.StatusInternalServerError, "Internal server error.")
}
