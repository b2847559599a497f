package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SHOPIFY_TIMEOUT", "")
	t.Setenv("ORDER_LOOKBACK_DAYS", "")
	t.Setenv("SYNC_LOCK", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.ShopifyTimeout)
	assert.Equal(t, 90, cfg.OrderLookbackDays)
	assert.Equal(t, 90*24*time.Hour, cfg.OrderLookback())
	assert.Equal(t, "memory", cfg.SyncLock)
	assert.Equal(t, []string{"read_products", "read_customers", "read_orders"}, cfg.Scopes())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SHOPIFY_TIMEOUT", "5s")
	t.Setenv("SHOPIFY_PAGE_SIZE", "50")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ORDER_LOOKBACK_DAYS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.ShopifyTimeout)
	assert.Equal(t, 50, cfg.ShopifyPageSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, 90, cfg.OrderLookbackDays)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ShopifyClientID:     "id",
			ShopifyClientSecret: "secret",
			EncryptionKey:       "key",
			ShopifyPageSize:     250,
			SyncDispatch:        "inprocess",
			SyncLock:            "memory",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing client id", mutate: func(c *Config) { c.ShopifyClientID = "" }, wantErr: "SHOPIFY_CLIENT_ID"},
		{name: "missing encryption key", mutate: func(c *Config) { c.EncryptionKey = "" }, wantErr: "ENCRYPTION_KEY"},
		{name: "page size too large", mutate: func(c *Config) { c.ShopifyPageSize = 500 }, wantErr: "SHOPIFY_PAGE_SIZE"},
		{name: "unknown dispatch", mutate: func(c *Config) { c.SyncDispatch = "cron" }, wantErr: "SYNC_DISPATCH"},
		{name: "unknown lock", mutate: func(c *Config) { c.SyncLock = "etcd" }, wantErr: "SYNC_LOCK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
