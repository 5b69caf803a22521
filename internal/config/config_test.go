package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10*time.Second, cfg.Session.LeaseWait)
	assert.Equal(t, 15*time.Minute, cfg.Session.WorkflowTimeout)
	assert.Equal(t, int64(8453), cfg.Chain.ChainID)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.QuoteTTL)
	assert.Equal(t, 5, cfg.Pipeline.RecordRetries)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swapflow.yaml")
	yaml := `
server:
  addr: ":9090"
  rate_limit_rps: 2.5
session:
  backend: redis
  lease_wait: 3s
redis:
  addr: "redis:6379"
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("SWAPFLOW_SERVER_ADDR", ":7070")
	t.Setenv("SWAPFLOW_SERVER_SECURE_COOKIE", "true")
	t.Setenv("SWAPFLOW_PIPELINE_QUOTE_TTL", "30s")
	t.Setenv("SWAPFLOW_AGGREGATOR_RETRIES", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr, "environment wins over the file")
	assert.True(t, cfg.Server.SecureCookie)
	assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, 3*time.Second, cfg.Session.LeaseWait)
	assert.Equal(t, 2*time.Minute, cfg.Session.LeaseTTL, "untouched defaults survive the merge")
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.QuoteTTL)
	assert.Equal(t, 4, cfg.Aggregator.Retries)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_FallbackKeysFromEnv(t *testing.T) {
	k1 := strings.Repeat("ab", 32)
	k2 := strings.Repeat("cd", 32)
	t.Setenv("SWAPFLOW_SESSION_ENCRYPTION_KEY", k1)
	t.Setenv("SWAPFLOW_SESSION_FALLBACK_KEYS", k1+","+k2)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{k1, k2}, cfg.Session.FallbackKeys)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Session.Backend = "etcd" }, "session.backend"},
		{"short key", func(c *Config) { c.Session.EncryptionKey = "abcd" }, "encryption_key"},
		{"bad wallet key", func(c *Config) { c.Custody.WalletKey = "zz" }, "wallet_key"},
		{"no retries", func(c *Config) { c.Pipeline.RecordRetries = 0 }, "record_retries"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Decode(Defaults())
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeKey(t *testing.T) {
	key, err := DecodeKey("0x" + strings.Repeat("01", 32))
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = DecodeKey(strings.Repeat("01", 16))
	assert.Error(t, err)
}
