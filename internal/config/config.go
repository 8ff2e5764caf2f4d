// Package config loads the kiosk configuration: a YAML file, then defaults
// for anything left unset, then environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Converter kinds.
const (
	ConverterLocal  = "local"
	ConverterOpenAI = "openai"
)

// Config is the complete kiosk configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Server     ServerConfig     `yaml:"server"`
	Flow       FlowConfig       `yaml:"flow"`
	Cache      CacheConfig      `yaml:"cache"`
	Converter  ConverterConfig  `yaml:"converter"`
	Matcher    MatcherConfig    `yaml:"matcher"`
	Voice      VoiceConfig      `yaml:"voice"`
	Management ManagementConfig `yaml:"management"`
}

type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	CORSOrigins []string      `yaml:"cors_origins"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type FlowConfig struct {
	// Source is a file path or an http(s) URL. Empty uses the built-in flow.
	Source          string        `yaml:"source"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Watch           bool          `yaml:"watch"`
	EntryNode       string        `yaml:"entry_node"`
	DefaultLanguage string        `yaml:"default_language"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend"`
	Redis   RedisConfig   `yaml:"redis"`
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type ConverterConfig struct {
	Kind    string        `yaml:"kind"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Rate    float64       `yaml:"rate"`
	Timeout time.Duration `yaml:"timeout"`
}

type MatcherConfig struct {
	High float64 `yaml:"high"`
	Low  float64 `yaml:"low"`
}

type VoiceConfig struct {
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

type ManagementConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			ReadTimeout: 10 * time.Second,
		},
		Flow: FlowConfig{
			RefreshInterval: 5 * time.Second,
			EntryNode:       "start",
			DefaultLanguage: "ja",
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "kiosk:"},
			LockTTL: 30 * time.Second,
		},
		Converter: ConverterConfig{
			Kind:    ConverterLocal,
			Model:   "gpt-4o-mini",
			Rate:    0.1,
			Timeout: 60 * time.Second,
		},
		Matcher: MatcherConfig{High: 0.75, Low: 0.35},
		Voice:   VoiceConfig{StopTimeout: time.Second},
	}
}

// Load reads path (optional), applies the environment and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("KIOSK_LOG_LEVEL", &c.LogLevel)
	str("KIOSK_ADDR", &c.Server.Addr)
	if v, ok := lookup("KIOSK_CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	str("KIOSK_FLOW_SOURCE", &c.Flow.Source)
	dur("KIOSK_REFRESH_INTERVAL", &c.Flow.RefreshInterval)
	boolean("KIOSK_FLOW_WATCH", &c.Flow.Watch)
	str("KIOSK_DEFAULT_LANGUAGE", &c.Flow.DefaultLanguage)

	str("KIOSK_CACHE_BACKEND", &c.Cache.Backend)
	str("KIOSK_REDIS_ADDR", &c.Cache.Redis.Addr)
	str("KIOSK_REDIS_PASSWORD", &c.Cache.Redis.Password)
	str("KIOSK_REDIS_PREFIX", &c.Cache.Redis.Prefix)
	dur("KIOSK_REDIS_TTL", &c.Cache.Redis.TTL)

	str("KIOSK_CONVERTER", &c.Converter.Kind)
	str("KIOSK_OPENAI_MODEL", &c.Converter.Model)
	str("OPENAI_API_KEY", &c.Converter.APIKey)
	str("OPENAI_BASE_URL", &c.Converter.BaseURL)
	float("KIOSK_CONVERTER_RATE", &c.Converter.Rate)

	float("KIOSK_MATCH_HIGH", &c.Matcher.High)
	float("KIOSK_MATCH_LOW", &c.Matcher.Low)

	boolean("ENABLE_MANAGEMENT", &c.Management.Enabled)
	if v, _ := lookup("KIOSK_ENV"); strings.EqualFold(v, "development") {
		c.Management.Enabled = true
	}

	return errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Flow.RefreshInterval <= 0 {
		errs = append(errs, errors.New("flow.refresh_interval must be positive"))
	}
	if c.Flow.EntryNode == "" {
		errs = append(errs, errors.New("flow.entry_node is required"))
	}
	if c.Flow.Watch && IsURL(c.Flow.Source) {
		errs = append(errs, errors.New("flow.watch needs a file source"))
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, redis, none", c.Cache.Backend))
	}

	switch c.Converter.Kind {
	case ConverterLocal:
	case ConverterOpenAI:
		if c.Converter.APIKey == "" {
			errs = append(errs, errors.New("converter.api_key is required for the openai converter (set OPENAI_API_KEY)"))
		}
		if c.Converter.Rate <= 0 {
			errs = append(errs, errors.New("converter.rate must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("converter.kind %q is not one of local, openai", c.Converter.Kind))
	}

	if c.Matcher.Low <= 0 || c.Matcher.High > 1 || c.Matcher.Low > c.Matcher.High {
		errs = append(errs, fmt.Errorf("matcher thresholds must satisfy 0 < low <= high <= 1 (low=%v high=%v)", c.Matcher.Low, c.Matcher.High))
	}
	return errors.Join(errs...)
}

// IsURL reports whether a flow source is fetched over HTTP.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
