package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env. Secrets (API
// keys, passwords) always come from the environment, never from the file.
type Config struct {
	ServerPort string

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	IQAirAPIKey        string
	IQAirBaseURL       string
	ProviderTimeout    time.Duration

	ScraperEnabled bool
	ScraperBaseURL string
	ScraperTimeout time.Duration

	RequestTimeout time.Duration

	CacheBackend   string // "redis", "memcached" or "in_memory"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MemcachedAddrs string

	DatabaseURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	AlertCooldown time.Duration
	SweepEnabled  bool
	SweepInterval time.Duration

	RetryAttempts      int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	BreakerOpenTimeout time.Duration
	RateLimitRPS       int
	RateLimitBurst     int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Providers struct {
		OpenWeatherURL string `yaml:"openweather_url"`
		IQAirURL       string `yaml:"iqair_url"`
		Timeout        string `yaml:"timeout"`
	} `yaml:"providers"`

	Scraper struct {
		Enabled *bool  `yaml:"enabled"`
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"scraper"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
		Memcached struct {
			Addrs string `yaml:"addrs"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	SMTP struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		From string `yaml:"from"`
	} `yaml:"smtp"`

	Alerts struct {
		Cooldown      string `yaml:"cooldown"`
		SweepEnabled  *bool  `yaml:"sweep_enabled"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"alerts"`

	Reliability struct {
		RetryMaxAttempts   int    `yaml:"retry_max_attempts"`
		RetryBaseDelay     string `yaml:"retry_base_delay"`
		RetryMaxDelay      string `yaml:"retry_max_delay"`
		BreakerOpenTimeout string `yaml:"breaker_open_timeout"`
		RateLimitRPS       int    `yaml:"rate_limit_rps"`
		RateLimitBurst     int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) plus a
// .env file and environment overrides. A missing YAML file is fine: every
// setting has a default, and secrets come from env anyway.
func Load() (*Config, error) {
	// Best effort; a missing .env is the normal case outside development.
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("SERVER_PORT"), fc.Server.Port, "8080")

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = firstNonEmpty(os.Getenv("OPENWEATHER_BASE_URL"), fc.Providers.OpenWeatherURL, "https://api.openweathermap.org/data/2.5")
	cfg.IQAirAPIKey = os.Getenv("IQAIR_API_KEY")
	cfg.IQAirBaseURL = firstNonEmpty(os.Getenv("IQAIR_BASE_URL"), fc.Providers.IQAirURL, "https://api.airvisual.com/v2")
	cfg.ProviderTimeout = parseDuration(fc.Providers.Timeout, 5*time.Second)

	cfg.ScraperEnabled = true
	if fc.Scraper.Enabled != nil {
		cfg.ScraperEnabled = *fc.Scraper.Enabled
	}
	if v := os.Getenv("SCRAPER_ENABLED"); v != "" {
		cfg.ScraperEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	cfg.ScraperBaseURL = firstNonEmpty(os.Getenv("SCRAPER_BASE_URL"), fc.Scraper.URL, "https://wttr.in")
	cfg.ScraperTimeout = parseDuration(fc.Scraper.Timeout, 10*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "in_memory")))
	cfg.RedisAddr = firstNonEmpty(os.Getenv("REDIS_ADDR"), fc.Cache.Redis.Addr, "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = fc.Cache.Redis.DB
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.SMTPHost = firstNonEmpty(os.Getenv("SMTP_HOST"), fc.SMTP.Host, "")
	cfg.SMTPPort = fc.SMTP.Port
	if cfg.SMTPPort <= 0 {
		cfg.SMTPPort = 587
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = firstNonEmpty(os.Getenv("SMTP_FROM"), fc.SMTP.From, "alerts@weather-platform.local")

	cfg.AlertCooldown = parseDuration(fc.Alerts.Cooldown, time.Hour)
	cfg.SweepEnabled = true
	if fc.Alerts.SweepEnabled != nil {
		cfg.SweepEnabled = *fc.Alerts.SweepEnabled
	}
	cfg.SweepInterval = parseDuration(fc.Alerts.SweepInterval, 15*time.Minute)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.BreakerOpenTimeout = parseDuration(fc.Reliability.BreakerOpenTimeout, 30*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// firstNonEmpty returns the first non-empty string after trimming.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is not positive.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. The service can run without any
// provider key (every request falls through to the scraper and storage), but
// a misspelled cache backend is a configuration bug worth failing on.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "redis", "memcached", "in_memory":
	default:
		return fmt.Errorf("cache.backend must be redis, memcached or in_memory, got %q", cfg.CacheBackend)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL required")
	}
	if cfg.RequestTimeout <= cfg.ProviderTimeout {
		cfg.RequestTimeout = cfg.ProviderTimeout + time.Second
	}
	return nil
}
