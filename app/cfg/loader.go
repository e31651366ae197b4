package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/feeds.db" description:"Path to the SQLite database file"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://feeds.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	DefaultUser  string `long:"default-user" env:"DEFAULT_USER" default:"default" description:"User name applied when a request carries no X-User header"`

	// Synchronization
	WorkerCount      int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of parallel feed downloads"`
	SyncInterval     int    `long:"sync-interval" env:"SYNC_INTERVAL" default:"0" description:"Seconds between scheduled synchronization passes (0 disables)"`
	FetchTimeout     int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-request timeout in seconds"`
	HostIntervalMs   int    `long:"host-interval" env:"HOST_INTERVAL_MS" default:"500" description:"Minimum milliseconds between requests to the same host (0 disables)"`
	DefaultPostLimit int    `long:"default-post-limit" env:"DEFAULT_POST_LIMIT" default:"20" description:"Post limit applied to subscriptions created without one"`
	FeedsDir         string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing subscription seed files"`

	// Discovery
	RedisAddr        string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the discovery cache (optional)"`
	DiscoverCacheTTL int    `long:"discover-cache-ttl" env:"DISCOVER_CACHE_TTL" default:"3600" description:"Discovery cache TTL in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Feeds/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses args instead of os.Args. A nil slice falls back to os.Args.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:           raw.DBPath,
		Port:             raw.Port,
		BaseUrl:          raw.BaseUrl,
		APIAccessKey:     raw.APIAccessKey,
		DefaultUser:      raw.DefaultUser,
		WorkerCount:      raw.WorkerCount,
		SyncInterval:     raw.SyncInterval,
		FetchTimeout:     raw.FetchTimeout,
		HostIntervalMs:   raw.HostIntervalMs,
		DefaultPostLimit: raw.DefaultPostLimit,
		FeedsDir:         raw.FeedsDir,
		RedisAddr:        raw.RedisAddr,
		DiscoverCacheTTL: raw.DiscoverCacheTTL,
		UserAgent:        raw.UserAgent,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.DefaultPostLimit < 1 {
		return fmt.Errorf("default post limit must be at least 1, got %d", cfg.DefaultPostLimit)
	}
	if cfg.FetchTimeout < 1 {
		return fmt.Errorf("fetch timeout must be at least 1 second, got %d", cfg.FetchTimeout)
	}
	if cfg.SyncInterval < 0 || cfg.HostIntervalMs < 0 || cfg.DiscoverCacheTTL < 0 {
		return fmt.Errorf("intervals and timeouts must be non-negative")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
