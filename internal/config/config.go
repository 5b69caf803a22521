// Package config provides application configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// SWAPFLOW_* environment variables (a .env file is honored when present).
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "SWAPFLOW_"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Session    SessionConfig    `mapstructure:"session"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Custody    CustodyConfig    `mapstructure:"custody"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Addr         string  `mapstructure:"addr"`
	CookieName   string  `mapstructure:"cookie_name"`
	SecureCookie bool    `mapstructure:"secure_cookie"`
	CORSOrigin   string  `mapstructure:"cors_origin"`
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	RateBurst    int     `mapstructure:"rate_burst"`
}

type SessionConfig struct {
	Backend         string        `mapstructure:"backend"` // memory | redis
	TTL             time.Duration `mapstructure:"ttl"`
	LeaseTTL        time.Duration `mapstructure:"lease_ttl"`
	LeaseWait       time.Duration `mapstructure:"lease_wait"`
	WorkflowTimeout time.Duration `mapstructure:"workflow_timeout"`
	// EncryptionKey is a hex-encoded 32-byte key. Empty disables sealing.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ChainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	ChainID        int64         `mapstructure:"chain_id"`
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

type AggregatorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Chain   string        `mapstructure:"chain"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

type CustodyConfig struct {
	// WalletKey is the hex-encoded 32-byte key sealing private keys at rest.
	WalletKey string `mapstructure:"wallet_key"`
}

type PipelineConfig struct {
	QuoteTTL      time.Duration `mapstructure:"quote_ttl"`
	RecordRetries int           `mapstructure:"record_retries"`
}

type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// Grace is how old an open intent or pending record must be before it is inspected.
	Grace        time.Duration `mapstructure:"grace"`
	AbandonAfter time.Duration `mapstructure:"abandon_after"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"addr":           ":8080",
			"cookie_name":    "swapflow_sid",
			"secure_cookie":  false,
			"cors_origin":    "*",
			"rate_limit_rps": 5.0,
			"rate_burst":     10,
		},
		"session": map[string]any{
			"backend":          "memory",
			"ttl":              "24h",
			"lease_ttl":        "2m",
			"lease_wait":       "10s",
			"workflow_timeout": "15m",
			"encryption_key":   "",
			"fallback_keys":    []string{},
		},
		"redis": map[string]any{
			"addr":   "localhost:6379",
			"prefix": "swapflow:session:",
			"db":     0,
		},
		"database": map[string]any{
			"path": "swapflow.db",
		},
		"chain": map[string]any{
			"rpc_url":         "https://mainnet.base.org",
			"chain_id":        8453,
			"receipt_timeout": "2m",
			"poll_interval":   "2s",
		},
		"aggregator": map[string]any{
			"base_url": "https://open-api.openocean.finance/v4",
			"chain":    "base",
			"timeout":  "10s",
			"retries":  2,
		},
		"custody": map[string]any{
			"wallet_key": "",
		},
		"pipeline": map[string]any{
			"quote_ttl":      "60s",
			"record_retries": 5,
		},
		"reconcile": map[string]any{
			"interval":      "1m",
			"grace":         "5m",
			"abandon_after": "1h",
		},
		"log": map[string]any{
			"level":        "info",
			"format":       "text",
			"max_size_mb":  100,
			"max_backups":  3,
			"max_age_days": 28,
		},
	}
}

// Load builds the configuration. An empty path skips the YAML layer.
func Load(path string) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	merged := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		mergeInto(merged, file)
	}
	applyEnv(merged, os.Environ())

	cfg, err := Decode(merged)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Decode converts a layered map into a Config.
func Decode(raw map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// mergeInto overlays src onto dst, recursing into nested sections.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeInto(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// applyEnv maps SWAPFLOW_SECTION_KEY=value onto section.key. The first
// underscore after the prefix separates the section from the key.
func applyEnv(dst map[string]any, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
		if !ok {
			continue
		}
		sub, ok := dst[section].(map[string]any)
		if !ok {
			continue
		}
		sub[key] = value
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis session backend")
		}
	default:
		return fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be > 0")
	}
	if c.Session.LeaseWait <= 0 || c.Session.LeaseTTL <= 0 {
		return errors.New("session lease ttl and wait must be > 0")
	}
	if c.Session.EncryptionKey != "" {
		if _, err := DecodeKey(c.Session.EncryptionKey); err != nil {
			return fmt.Errorf("session.encryption_key: %w", err)
		}
	}
	for i, k := range c.Session.FallbackKeys {
		if _, err := DecodeKey(k); err != nil {
			return fmt.Errorf("session.fallback_keys[%d]: %w", i, err)
		}
	}
	if c.Custody.WalletKey != "" {
		if _, err := DecodeKey(c.Custody.WalletKey); err != nil {
			return fmt.Errorf("custody.wallet_key: %w", err)
		}
	}
	if c.Database.Path == "" {
		return errors.New("database.path cannot be empty")
	}
	if c.Chain.ChainID <= 0 {
		return errors.New("chain.chain_id must be > 0")
	}
	if c.Pipeline.QuoteTTL <= 0 {
		return errors.New("pipeline.quote_ttl must be > 0")
	}
	if c.Pipeline.RecordRetries < 1 {
		return errors.New("pipeline.record_retries must be >= 1")
	}
	if c.Reconcile.Interval <= 0 {
		return errors.New("reconcile.interval must be > 0")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// DecodeKey parses a hex-encoded 32-byte key.
func DecodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("key is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
