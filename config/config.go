// Package config loads runtime configuration from OFFERPRESS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/ByLCY/offerpress/offer"
)

// Prefix is prepended to every variable name, e.g. OFFERPRESS_APP_ADDR.
const Prefix = "OFFERPRESS"

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Notify drivers.
const (
	NotifyNone  = "none"
	NotifyAsynq = "asynq"
)

// Config holds runtime configuration for the CLI and the HTTP server.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"60s"`
	RateLimit         int           `envconfig:"RATE_LIMIT" default:"60"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	ThemePath string `envconfig:"THEME_PATH"`
	FontDir   string `envconfig:"FONT_DIR"`

	RasterTimeout     time.Duration `envconfig:"RASTER_TIMEOUT" default:"5s"`
	RasterConcurrency int           `envconfig:"RASTER_CONCURRENCY" default:"8"`
	PreviewPx         int           `envconfig:"PREVIEW_PX" default:"256"`
	SoftPageLimit     int           `envconfig:"SOFT_PAGE_LIMIT" default:"0"`

	StoreDriver string        `envconfig:"STORE_DRIVER" default:"memory"`
	RedisAddr   string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisTTL    time.Duration `envconfig:"REDIS_TTL" default:"0"`
	PGDSN       string        `envconfig:"PG_DSN"`

	NotifyDriver string `envconfig:"NOTIFY_DRIVER" default:"none"`

	Company         offer.CompanyProfile `envconfig:"COMPANY"`
	CompanyLogoPath string               `envconfig:"COMPANY_LOGO_PATH"`
	DefaultCurrency string               `envconfig:"DEFAULT_CURRENCY" default:"EUR"`
	DefaultLocale   string               `envconfig:"DEFAULT_LOCALE" default:"de-DE"`
}

// Load reads configuration from the environment and validates the drivers.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.CompanyLogoPath != "" {
		logo, err := os.ReadFile(cfg.CompanyLogoPath)
		if err != nil {
			return nil, fmt.Errorf("读取公司 logo 失败: %w", err)
		}
		cfg.Company.Logo = logo
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.NotifyDriver = strings.ToLower(strings.TrimSpace(c.NotifyDriver))
	switch c.StoreDriver {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.PGDSN == "" {
			return errors.New("store driver postgres requires OFFERPRESS_PG_DSN")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	switch c.NotifyDriver {
	case NotifyNone, NotifyAsynq:
	default:
		return fmt.Errorf("unknown notify driver %q", c.NotifyDriver)
	}
	if c.RasterConcurrency < 0 {
		return errors.New("raster concurrency must not be negative")
	}
	if c.PreviewPx <= 0 {
		return errors.New("preview size must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// CompanyProfile returns nil when no company data is configured.
func (c *Config) CompanyProfile() *offer.CompanyProfile {
	p := c.Company
	if p.IsZero() {
		return nil
	}
	return &p
}
