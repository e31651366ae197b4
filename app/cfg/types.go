package cfg

type Cfg struct {
	// Storage
	DBPath string

	// HTTP server
	Port         string
	BaseUrl      string
	APIAccessKey string
	DefaultUser  string

	// Synchronization
	WorkerCount      int
	SyncInterval     int
	FetchTimeout     int
	HostIntervalMs   int
	DefaultPostLimit int
	FeedsDir         string

	// Discovery
	RedisAddr        string
	DiscoverCacheTTL int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
