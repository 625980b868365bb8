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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Delivery.Interval)
	assert.Equal(t, 10, cfg.Delivery.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Delivery.ClaimLease)
	assert.Equal(t, 10, cfg.Delivery.AlertAfter)
	assert.Equal(t, 5*time.Second, cfg.RCON.DialTimeout)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("BLUEPRINT_DB_HOST", "db.internal")
	t.Setenv("PAYMENT_PROVIDER", "mock")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("RCON_HOST", "ark.example")
	t.Setenv("RCON_PORT", "32330")
	t.Setenv("RCON_PASSWORD", "secret")
	t.Setenv("DELIVERY_INTERVAL", "30s")
	t.Setenv("DELIVERY_BATCH_SIZE", "25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example, https://admin.example")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, ProviderMock, cfg.Payment.Provider)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, "ark.example", cfg.RCON.Host)
	assert.Equal(t, 32330, cfg.RCON.Port)
	assert.Equal(t, "secret", cfg.RCON.Password)
	assert.Equal(t, 30*time.Second, cfg.Delivery.Interval)
	assert.Equal(t, 25, cfg.Delivery.BatchSize)
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.HTTP.AllowedOrigins)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rcon:
  host: file-host
  port: 27015
delivery:
  batch_size: 3
`), 0o600))
	t.Setenv("RCON_HOST", "env-host")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.RCON.Host)
	assert.Equal(t, 27015, cfg.RCON.Port)
	assert.Equal(t, 3, cfg.Delivery.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: DriverPostgres, Database: "shop", Username: "shop"},
			Payment:  PaymentConfig{Provider: ProviderMercadoPago, AccessToken: "TEST-123", Timeout: time.Second},
			RCON:     RCONConfig{Host: "localhost", Port: 27020},
			Delivery: DeliveryConfig{Interval: time.Minute, BatchSize: 10, ClaimLease: time.Minute},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.Payment.AccessToken = "" }, "MP_ACCESS_TOKEN"},
		{"unknown provider", func(c *Config) { c.Payment.Provider = "paypal" }, "PAYMENT_PROVIDER"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, "DB_DRIVER"},
		{"postgres without database", func(c *Config) { c.Database.Database = "" }, "BLUEPRINT_DB_DATABASE"},
		{"bad port", func(c *Config) { c.RCON.Port = 70000 }, "RCON_PORT"},
		{"zero batch", func(c *Config) { c.Delivery.BatchSize = 0 }, "DELIVERY_BATCH_SIZE"},
		{"lease shorter than batch", func(c *Config) {
			c.RCON.DialTimeout = 5 * time.Second
			c.RCON.CommandTimeout = 10 * time.Second
		}, "DELIVERY_CLAIM_LEASE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	c := valid()
	c.Database.Driver = DriverMemory
	c.Database.Database = ""
	c.Payment.Provider = ProviderMock
	c.Payment.AccessToken = ""
	assert.NoError(t, c.Validate())
}
