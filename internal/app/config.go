package app

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

// Document store drivers.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"90s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"60s"`
	AppTimezone       string        `envconfig:"APP_TIMEZONE" default:"Asia/Kolkata"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DocstoreDriver  string `envconfig:"DOCSTORE_DRIVER" default:"memory"`
	DocstoreFixture string `envconfig:"DOCSTORE_FIXTURE"`
	MongoURI        string `envconfig:"MONGO_URI"`
	MongoDatabase   string `envconfig:"MONGO_DATABASE" default:"tierline"`
	PGDSN           string `envconfig:"PG_DSN"`
	PGMaxConns      int32  `envconfig:"PG_MAX_CONNS" default:"10"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	FetchTimeout       time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	FetchConcurrency   int           `envconfig:"FETCH_CONCURRENCY" default:"8"`
	LevelMaxDepth      int           `envconfig:"LEVEL_MAX_DEPTH" default:"25"`
	ReportsProfileFile string        `envconfig:"REPORTS_PROFILE_FILE"`

	ExportDir      string `envconfig:"EXPORT_DIR" default:"./exports"`
	ExportCron     string `envconfig:"EXPORT_CRON"`
	CurrencySymbol string `envconfig:"CURRENCY_SYMBOL" default:"₹"`
	CurrencyLocale string `envconfig:"CURRENCY_LOCALE" default:"en-IN"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	c.DocstoreDriver = strings.ToLower(strings.TrimSpace(c.DocstoreDriver))
	switch c.DocstoreDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("config: MONGO_URI must be provided for the %s driver", DriverMongo)
		}
	case DriverPostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("config: PG_DSN must be provided for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("config: unknown DOCSTORE_DRIVER %q", c.DocstoreDriver)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("config: FETCH_CONCURRENCY must be positive")
	}
	if c.LevelMaxDepth < 1 || c.LevelMaxDepth > 100 {
		return fmt.Errorf("config: LEVEL_MAX_DEPTH must be between 1 and 100")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Locale(); err != nil {
		return err
	}
	return nil
}

// Location resolves AppTimezone.
func (c *Config) Location() (*time.Location, error) {
	if c == nil || c.AppTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: APP_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Locale resolves CurrencyLocale.
func (c *Config) Locale() (language.Tag, error) {
	if c == nil || c.CurrencyLocale == "" {
		return language.English, nil
	}
	tag, err := language.Parse(c.CurrencyLocale)
	if err != nil {
		return language.Und, fmt.Errorf("config: CURRENCY_LOCALE: %w", err)
	}
	return tag, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
