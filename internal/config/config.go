package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/dampfi-automation/internal/browser"
	"github.com/maltedev/dampfi-automation/internal/checkout"
	"github.com/maltedev/dampfi-automation/internal/parser"
	"github.com/maltedev/dampfi-automation/internal/scraper"
)

type Config struct {
	Server   ServerConfig
	Site     SiteConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Checkout CheckoutConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Jobs     JobsConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type SiteConfig struct {
	BaseURL       string
	SelectorsFile string
	Extraction    ExtractionRules
	Checkout      CheckoutRules
}

type ScraperConfig struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	MaxAttempts    int
	RetryDelayMin  time.Duration
	RetryDelayMax  time.Duration
}

type BrowserConfig struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	Settle         string
	ProxyServer    string
}

type CheckoutConfig struct {
	SessionTimeout time.Duration
	LockTTL        time.Duration
	MaxUserID      int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type JobsConfig struct {
	RefreshInterval    time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Site: SiteConfig{
			BaseURL:       getEnvOrDefault("SITE_BASE_URL", "https://www.dampfi.ch"),
			SelectorsFile: getEnvOrDefault("SELECTORS_FILE", ""),
			Extraction:    DefaultExtractionRules(),
			Checkout:      DefaultCheckoutRules(),
		},
		Scraper: ScraperConfig{
			Timeout:        getDurationOrDefault("SCRAPER_TIMEOUT", scraper.DefaultTimeout),
			UserAgent:      getEnvOrDefault("SCRAPER_USER_AGENT", scraper.DefaultUserAgent),
			AcceptLanguage: getEnvOrDefault("SCRAPER_ACCEPT_LANGUAGE", scraper.DefaultAcceptLanguage),
			MaxAttempts:    getIntOrDefault("SCRAPER_MAX_ATTEMPTS", 2),
			RetryDelayMin:  getDurationOrDefault("SCRAPER_RETRY_DELAY_MIN", 1*time.Second),
			RetryDelayMax:  getDurationOrDefault("SCRAPER_RETRY_DELAY_MAX", 3*time.Second),
		},
		Browser: BrowserConfig{
			Engine:         getEnvOrDefault("BROWSER_ENGINE", string(browser.EnginePlaywright)),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "de-CH,de;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Zurich"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "de-CH"),
			Settle:         getEnvOrDefault("BROWSER_SETTLE", string(browser.SettleIdle)),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Checkout: CheckoutConfig{
			SessionTimeout: getDurationOrDefault("CHECKOUT_TIMEOUT", 3*time.Minute),
			LockTTL:        getDurationOrDefault("CHECKOUT_LOCK_TTL", 5*time.Minute),
			MaxUserID:      getIntOrDefault("MAX_USER_ID", 5),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "dampfi"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
			MinConns: int32(getIntOrDefault("DB_MIN_CONNS", 1)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:dampfi_orders"),
		},
		Jobs: JobsConfig{
			RefreshInterval:    getDurationOrDefault("REFRESH_INTERVAL", 0),
			OutboxPollInterval: getDurationOrDefault("OUTBOX_POLL_INTERVAL", 5*time.Second),
			OutboxBatchSize:    getIntOrDefault("OUTBOX_BATCH_SIZE", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if cfg.Site.SelectorsFile != "" {
		rules, err := LoadRulesFile(cfg.Site.SelectorsFile)
		if err != nil {
			return nil, err
		}
		cfg.Site.Extraction = rules.Extraction
		cfg.Site.Checkout = rules.Checkout
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SITE_BASE_URL must be an absolute http(s) URL")
	}

	if _, err := browser.ParseEngine(c.Browser.Engine); err != nil {
		return fmt.Errorf("BROWSER_ENGINE: %w", err)
	}

	if _, err := browser.ParseSettleStrategy(c.Browser.Settle); err != nil {
		return fmt.Errorf("BROWSER_SETTLE: %w", err)
	}

	if c.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("SCRAPER_MAX_ATTEMPTS must be at least 1")
	}

	if c.Scraper.RetryDelayMin > c.Scraper.RetryDelayMax {
		return fmt.Errorf("SCRAPER_RETRY_DELAY_MIN cannot be greater than SCRAPER_RETRY_DELAY_MAX")
	}

	if c.Checkout.SessionTimeout <= 0 {
		return fmt.Errorf("CHECKOUT_TIMEOUT must be positive")
	}

	// The lock must outlive a run or a second checkout for the same user can start.
	if c.Checkout.LockTTL <= c.Checkout.SessionTimeout {
		return fmt.Errorf("CHECKOUT_LOCK_TTL must be greater than CHECKOUT_TIMEOUT")
	}

	if c.Checkout.MaxUserID < 1 {
		return fmt.Errorf("MAX_USER_ID must be at least 1")
	}

	if c.Jobs.RefreshInterval < 0 {
		return fmt.Errorf("REFRESH_INTERVAL cannot be negative")
	}

	if c.Jobs.OutboxBatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be at least 1")
	}

	if len(c.Site.Checkout.Selectors.AddToCart) == 0 {
		return fmt.Errorf("checkout.selectors.add_to_cart must not be empty")
	}

	return nil
}

// SiteHost is the host of the configured shop, used to validate product URLs.
func (c *Config) SiteHost() string {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func (c *Config) Library() *parser.Library {
	return parser.NewLibrary(c.Site.Extraction.Selectors, c.Site.Extraction.Phrases)
}

func (c *Config) ScraperOptions() scraper.Options {
	return scraper.Options{
		Timeout:        c.Scraper.Timeout,
		UserAgent:      c.Scraper.UserAgent,
		AcceptLanguage: c.Scraper.AcceptLanguage,
	}
}

func (c *Config) BrowserOptions() *browser.Options {
	opts := browser.DefaultOptions()
	opts.Engine, _ = browser.ParseEngine(c.Browser.Engine)
	opts.Settle, _ = browser.ParseSettleStrategy(c.Browser.Settle)
	opts.Headless = c.Browser.Headless
	opts.Timeout = c.Browser.Timeout
	opts.ViewportWidth = c.Browser.ViewportWidth
	opts.ViewportHeight = c.Browser.ViewportHeight
	opts.AcceptLanguage = c.Browser.AcceptLanguage
	opts.TimezoneID = c.Browser.TimezoneID
	opts.Locale = c.Browser.Locale
	opts.ProxyServer = c.Browser.ProxyServer
	return opts
}

func (c *Config) CheckoutConfig() checkout.Config {
	cfg := checkout.DefaultConfig()
	cfg.BaseURL = c.Site.BaseURL
	cfg.SessionTimeout = c.Checkout.SessionTimeout
	cfg.Selectors = c.Site.Checkout.Selectors
	cfg.PaymentSynonyms = c.Site.Checkout.PaymentSynonyms
	cfg.Settle = c.Site.Checkout.Settle
	return cfg
}

func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
