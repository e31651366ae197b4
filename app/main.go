package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-feeds/app/api"
	"github.com/lysyi3m/rss-feeds/app/cache"
	"github.com/lysyi3m/rss-feeds/app/cfg"
	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/discover"
	"github.com/lysyi3m/rss-feeds/app/feed"
	"github.com/lysyi3m/rss-feeds/app/metrics"
	"github.com/lysyi3m/rss-feeds/app/reconcile"
	"github.com/lysyi3m/rss-feeds/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting RSS Feeds server", "version", appCfg.Version)

	if err := os.MkdirAll(filepath.Dir(appCfg.DBPath), 0o755); err != nil {
		slog.Error("Failed to create database directory", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	subscriptionRepo := database.NewSubscriptionStore(db)
	linkRepo := database.NewLinkStore(db)
	postRepo := database.NewPostStore(db)
	syncStore := database.NewSyncStore(db)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load subscription seeds", "dir", appCfg.FeedsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Subscription seeds loaded", "count", configCache.GetConfigCount())

	parser := feed.NewParser()
	filterer := feed.NewFilterer()
	downloader := feed.NewDownloader(
		&http.Client{Timeout: time.Duration(appCfg.FetchTimeout) * time.Second},
		parser,
		feed.WithHostLimiter(feed.NewHostLimiter(time.Duration(appCfg.HostIntervalMs)*time.Millisecond)),
		feed.WithUserAgent(appCfg.UserAgent),
		feed.WithTimeout(time.Duration(appCfg.FetchTimeout)*time.Second),
	)

	var discoverCache discover.Cache
	var cacheHealth api.HealthReporter
	if appCfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err := cache.NewCache(ctx, appCfg.RedisAddr)
		cancel()
		if err != nil {
			slog.Warn("Discovery cache disabled", "addr", appCfg.RedisAddr, "error", err)
		} else {
			defer redisCache.Close()
			discoverCache = redisCache
			cacheHealth = redisCache
		}
	}
	discoverer := discover.NewDiscoverer(downloader, parser, discoverCache, time.Duration(appCfg.DiscoverCacheTTL)*time.Second)

	engine := reconcile.NewEngine(syncStore, downloader, reconcile.SystemClock{}, appCfg.WorkerCount, metrics.NewRecorder())

	scheduler := tasks.NewScheduler(configCache, engine, subscriptionRepo, linkRepo)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(subscriptionRepo, linkRepo, postRepo, engine, discoverer, filterer, cacheHealth, appCfg.DefaultPostLimit)
	server := api.NewServer(handler, appCfg.APIAccessKey, appCfg.DefaultUser)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "sync_interval", appCfg.SyncInterval, "workers", appCfg.WorkerCount)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}
