package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the desk process.
type Config struct {
	App        AppConfig
	Ticketbase TicketbaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Sync       SyncConfig
	Listing    ListingConfig
}

// AppConfig controls the local API server.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// TicketbaseConfig points at the remote ticketing API.
type TicketbaseConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// RedisConfig holds Redis connection values. An empty Addr selects the
// in-process cache store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig namespaces cache keys.
type CacheConfig struct {
	Prefix string
}

// LoggerConfig configures logging behavior. Format is "json" or "console".
type LoggerConfig struct {
	Level  string
	Output string
	Format string
}

// AuthConfig defines where the bearer token is kept.
type AuthConfig struct {
	TokenPath string
}

// SyncConfig holds the background intervals.
type SyncConfig struct {
	Enabled               bool
	TicketRefreshInterval time.Duration
	TimerPollInterval     time.Duration
	TimerResyncDelay      time.Duration
}

// ListingConfig tunes the list views.
type ListingConfig struct {
	PageSize int
	Locale   string
	Timezone string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "8765"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Ticketbase: TicketbaseConfig{
			BaseURL:        getEnv("TICKETBASE_URL", "https://itm.ticketbase.net/api"),
			TimeoutSeconds: getEnvAsInt("TICKETBASE_TIMEOUT_SECONDS", 15),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			Prefix: getEnv("CACHE_PREFIX", "ticketdesk_cache_"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stderr"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			TokenPath: getEnv("TOKEN_PATH", defaultTokenPath()),
		},
		Sync: SyncConfig{
			Enabled:               getEnvAsBool("SYNC_ENABLED", true),
			TicketRefreshInterval: getEnvAsDuration("TICKET_REFRESH_INTERVAL", 30*time.Second),
			TimerPollInterval:     getEnvAsDuration("TIMER_POLL_INTERVAL", 30*time.Second),
			TimerResyncDelay:      getEnvAsDuration("TIMER_RESYNC_DELAY", 2*time.Second),
		},
		Listing: ListingConfig{
			PageSize: getEnvAsInt("LIST_PAGE_SIZE", 50),
			Locale:   getEnv("DESK_LOCALE", "de"),
			Timezone: getEnv("DESK_TIMEZONE", "Local"),
		},
	}

	if cfg.Listing.PageSize <= 0 {
		return nil, fmt.Errorf("invalid LIST_PAGE_SIZE: %d", cfg.Listing.PageSize)
	}
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the HTTP client timeout for the remote API.
func (t TicketbaseConfig) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Location resolves the configured time zone, falling back to time.Local.
func (l ListingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".ticket-desk-token"
	}
	return filepath.Join(dir, "ticket-desk", "token")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
