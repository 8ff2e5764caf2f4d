package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/kiosk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Flow.RefreshInterval)
	assert.Equal(t, config.CacheMemory, cfg.Cache.Backend)
	assert.False(t, cfg.Management.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
server:
  addr: ":9090"
flow:
  source: ./flow.json
  refresh_interval: 30s
  watch: true
cache:
  backend: redis
  redis:
    addr: redis:6379
    ttl: 10m
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "./flow.json", cfg.Flow.Source)
	assert.Equal(t, 30*time.Second, cfg.Flow.RefreshInterval)
	assert.True(t, cfg.Flow.Watch)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Cache.Redis.TTL)
	assert.Equal(t, "kiosk:", cfg.Cache.Redis.Prefix, "unset keys keep their defaults")
	assert.Equal(t, "start", cfg.Flow.EntryNode)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := config.Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"KIOSK_ADDR":             ":7000",
		"KIOSK_CORS_ORIGINS":     "https://a.example, https://b.example",
		"KIOSK_FLOW_SOURCE":      "https://cdn.example/configuration.json",
		"KIOSK_REFRESH_INTERVAL": "1m",
		"KIOSK_CONVERTER":        "openai",
		"OPENAI_API_KEY":         "sk-test",
		"KIOSK_MATCH_HIGH":       "0.9",
		"ENABLE_MANAGEMENT":      "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.Flow.RefreshInterval)
	assert.Equal(t, config.ConverterOpenAI, cfg.Converter.Kind)
	assert.Equal(t, "sk-test", cfg.Converter.APIKey)
	assert.InDelta(t, 0.9, cfg.Matcher.High, 1e-9)
	assert.True(t, cfg.Management.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_DevelopmentEnablesManagement(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{"KIOSK_ENV": "development"})))
	assert.True(t, cfg.Management.Enabled)
}

func TestApplyEnv_BadValues(t *testing.T) {
	cfg := config.Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"KIOSK_REFRESH_INTERVAL": "soon",
		"ENABLE_MANAGEMENT":      "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KIOSK_REFRESH_INTERVAL")
	assert.Contains(t, err.Error(), "ENABLE_MANAGEMENT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"Log Level", func(c *config.Config) { c.LogLevel = "loud" }, "log_level"},
		{"Refresh Interval", func(c *config.Config) { c.Flow.RefreshInterval = 0 }, "refresh_interval"},
		{"Watch URL", func(c *config.Config) { c.Flow.Source = "https://x"; c.Flow.Watch = true }, "flow.watch"},
		{"Cache Backend", func(c *config.Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"Redis Addr", func(c *config.Config) { c.Cache.Backend = config.CacheRedis; c.Cache.Redis.Addr = "" }, "cache.redis.addr"},
		{"OpenAI Key", func(c *config.Config) { c.Converter.Kind = config.ConverterOpenAI }, "api_key"},
		{"Thresholds", func(c *config.Config) { c.Matcher.Low = 0.9; c.Matcher.High = 0.5 }, "thresholds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIsURL(t *testing.T) {
	assert.True(t, config.IsURL("https://example.com/flow.json"))
	assert.True(t, config.IsURL("http://localhost/flow.json"))
	assert.False(t, config.IsURL("./flow.json"))
	assert.False(t, config.IsURL(""))
}
