package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, NotifyNone, cfg.NotifyDriver)
	assert.Equal(t, 5*time.Second, cfg.RasterTimeout)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.Nil(t, cfg.CompanyProfile())
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	logo := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(logo, []byte("png"), 0o600))

	t.Setenv("OFFERPRESS_APP_ENV", "production")
	t.Setenv("OFFERPRESS_STORE_DRIVER", "Redis")
	t.Setenv("OFFERPRESS_NOTIFY_DRIVER", "asynq")
	t.Setenv("OFFERPRESS_RASTER_TIMEOUT", "250ms")
	t.Setenv("OFFERPRESS_COMPANY_NAME", "Fenster AG")
	t.Setenv("OFFERPRESS_COMPANY_VAT_NUMBER", "DE123")
	t.Setenv("OFFERPRESS_COMPANY_LOGO_PATH", logo)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StoreRedis, cfg.StoreDriver)
	assert.Equal(t, NotifyAsynq, cfg.NotifyDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.RasterTimeout)

	company := cfg.CompanyProfile()
	require.NotNil(t, company)
	assert.Equal(t, "Fenster AG", company.Name)
	assert.Equal(t, "DE123", company.VATNumber)
	assert.Equal(t, []byte("png"), company.Logo)
}

func TestLoadRejectsBadDrivers(t *testing.T) {
	t.Setenv("OFFERPRESS_STORE_DRIVER", "postgres")
	_, err := Load()
	assert.ErrorContains(t, err, "PG_DSN")

	t.Setenv("OFFERPRESS_STORE_DRIVER", "etcd")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown store driver")

	t.Setenv("OFFERPRESS_STORE_DRIVER", "memory")
	t.Setenv("OFFERPRESS_NOTIFY_DRIVER", "smtp")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown notify driver")
}

func TestLoadMissingLogo(t *testing.T) {
	t.Setenv("OFFERPRESS_COMPANY_LOGO_PATH", filepath.Join(t.TempDir(), "nope.png"))
	_, err := Load()
	assert.Error(t, err)
}
