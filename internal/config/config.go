package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"RSIPipeline/internal/collector"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// MaxPostgresBatchSize keeps one 10-column INSERT under PostgreSQL's
// 65535 bind-parameter limit.
const MaxPostgresBatchSize = 65535 / 10

// Config holds all application configuration.
type Config struct {
	Pipeline struct {
		RSIPeriod     int           `yaml:"rsi_period"`
		Lookback      string        `yaml:"lookback"`
		Workers       int           `yaml:"workers"`
		SymbolTimeout time.Duration `yaml:"symbol_timeout"`
		Symbols       []string      `yaml:"symbols"`
		StoreResults  bool          `yaml:"store_results"`
		CleanupDays   int           `yaml:"cleanup_days"`
	} `yaml:"pipeline"`
	Universe struct {
		Source      string `yaml:"source"` // "static" or "nasdaq"
		IncludeETFs bool   `yaml:"include_etfs"`
		Limit       int    `yaml:"limit"`
	} `yaml:"universe"`
	DataSource struct {
		Provider          string        `yaml:"provider"` // "yahoo", "rest" or "mock"
		BaseURL           string        `yaml:"base_url"`
		APIKey            string        `yaml:"api_key"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		RetryCount        int           `yaml:"retry_count"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Cache struct {
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
		TTL           time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Database struct {
		Driver     string `yaml:"driver"`
		URL        string `yaml:"url"`
		SQLitePath string `yaml:"sqlite_path"`
		Table      string `yaml:"table"`
		BatchSize  int    `yaml:"batch_size"`
	} `yaml:"database"`
	Schedule struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	cfg := &Config{}
	cfg.Pipeline.RSIPeriod = 14
	cfg.Pipeline.Lookback = string(collector.DefaultLookback)
	cfg.Pipeline.Workers = 4
	cfg.Pipeline.SymbolTimeout = 30 * time.Second
	cfg.Pipeline.StoreResults = true
	cfg.Pipeline.CleanupDays = 30
	cfg.Universe.Source = "static"
	cfg.DataSource.Provider = "yahoo"
	cfg.DataSource.RequestsPerSecond = 2
	cfg.DataSource.RetryCount = 3
	cfg.DataSource.Timeout = 30 * time.Second
	cfg.Cache.TTL = 6 * time.Hour
	cfg.Database.Driver = DriverSQLite
	cfg.Database.SQLitePath = "data/rsi.db"
	cfg.Database.Table = "rsi_data"
	cfg.Database.BatchSize = 100
	cfg.Schedule.Cron = "0 30 21 * * 1-5"
	cfg.Log.Level = "info"
	return cfg
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" if none)
// into the environment. Missing files are ignored; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if err := num("DEFAULT_RSI_PERIOD", &c.Pipeline.RSIPeriod); err != nil {
		return err
	}
	if err := num("BATCH_SIZE", &c.Database.BatchSize); err != nil {
		return err
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Pipeline.Symbols = SplitSymbols(v)
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true" || v == "1"
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.URL)
	str("SQLITE_PATH", &c.Database.SQLitePath)
	str("RSI_TABLE", &c.Database.Table)
	str("DATA_SOURCE_PROVIDER", &c.DataSource.Provider)
	str("DATA_SOURCE_BASE_URL", &c.DataSource.BaseURL)
	str("DATA_SOURCE_API_KEY", &c.DataSource.APIKey)
	str("HTTPS_PROXY", &c.Proxy)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("CRON_SCHEDULE", &c.Schedule.Cron)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	str("METRICS_ADDR", &c.Metrics.Addr)
	return nil
}

// SplitSymbols parses a comma- or space-separated symbol list.
func SplitSymbols(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// StoreEnabled reports whether results should be written to a database.
func (c *Config) StoreEnabled() bool {
	return c.Pipeline.StoreResults && c.Database.Driver != DriverNone
}

// NotifyEnabled reports whether Telegram run summaries are configured.
func (c *Config) NotifyEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Pipeline.RSIPeriod < 1 {
		return fmt.Errorf("pipeline.rsi_period must be at least 1")
	}
	if _, err := collector.ParseLookback(c.Pipeline.Lookback); err != nil {
		return fmt.Errorf("pipeline.lookback: %w", err)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.CleanupDays < 0 {
		return fmt.Errorf("pipeline.cleanup_days must not be negative")
	}

	switch c.Universe.Source {
	case "static":
		if len(c.Pipeline.Symbols) == 0 {
			return fmt.Errorf("pipeline.symbols is required for the static universe")
		}
	case "nasdaq":
	default:
		return fmt.Errorf("universe.source must be static or nasdaq, got %q", c.Universe.Source)
	}

	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("data_source.provider must be yahoo, rest or mock, got %q", c.DataSource.Provider)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.StoreEnabled() && c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for sqlite")
		}
	case DriverPostgres:
		if c.StoreEnabled() && c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	case DriverNone:
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or none, got %q", c.Database.Driver)
	}
	if c.Database.BatchSize < 1 {
		return fmt.Errorf("database.batch_size must be at least 1")
	}
	if c.Database.Driver == DriverPostgres && c.Database.BatchSize > MaxPostgresBatchSize {
		return fmt.Errorf("database.batch_size must be at most %d for postgres, got %d", MaxPostgresBatchSize, c.Database.BatchSize)
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}
