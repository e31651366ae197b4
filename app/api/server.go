package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey, defaultUser string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key, X-User")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, defaultUser)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey, defaultUser string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Synchronization trigger, open like a cron hook
	r.GET("/sync", handler.Sync)
	r.POST("/sync", handler.Sync)

	api := r.Group("/api")
	if apiAccessKey != "" {
		api.Use(authMiddleware(apiAccessKey))
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled (API_ACCESS_KEY not set)")
	}
	api.Use(userMiddleware(defaultUser))
	{
		subs := api.Group("/subscriptions")
		subs.GET("", handler.ListSubscriptions)
		subs.POST("", handler.CreateSubscription)
		subs.PUT("/reorder", handler.ReorderSubscriptions)
		subs.GET("/:id", handler.GetSubscription)
		subs.PUT("/:id", handler.UpdateSubscription)
		subs.PATCH("/:id", handler.UpdateSubscription)
		subs.DELETE("/:id", handler.DeleteSubscription)
		subs.GET("/:id/rss", handler.GetSubscriptionRSS)
		subs.GET("/:id/links", handler.ListLinks)
		subs.POST("/:id/links", handler.CreateLink)
		subs.PUT("/:id/links/reorder", handler.ReorderLinks)
		subs.GET("/:id/links/:position", handler.GetLink)
		subs.PUT("/:id/links/:position", handler.UpdateLink)
		subs.DELETE("/:id/links/:position", handler.DeleteLink)

		posts := api.Group("/posts")
		posts.GET("", handler.ListPosts)
		posts.GET("/:id", handler.GetPost)
		posts.PUT("/:id", handler.UpdatePost)
		posts.PATCH("/:id", handler.UpdatePost)

		disc := api.Group("/discover")
		disc.GET("/scan", handler.ScanFeeds)
		disc.GET("/extract", handler.ExtractFeed)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "RSS Feeds",
			"endpoints": map[string]string{
				"subscriptions": "/api/subscriptions",
				"posts":         "/api/posts",
				"discover":      "/api/discover/scan?url=<page>",
				"sync":          "/sync",
				"health":        "/health",
				"metrics":       "/metrics",
			},
			"api_status": map[string]any{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
				"user_header":   "X-User",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware accepts the key from X-API-Key or Authorization: Bearer.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiAccessKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Invalid API key",
			})
			return
		}

		c.Next()
	}
}

// userMiddleware scopes the request to the X-User header, or defaultUser.
func userMiddleware(defaultUser string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader("X-User"))
		if user == "" {
			user = defaultUser
		}
		c.Set(userKey, user)
		c.Next()
	}
}
