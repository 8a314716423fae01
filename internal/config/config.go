// Package config holds the resolved speak configuration and loads it from
// viper, the environment and the OS keychain.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/speak/internal/cache"
	"github.com/dgnsrekt/speak/internal/ttypes"
)

const (
	// DefaultProviderTimeout bounds a single provider call from the CLI
	DefaultProviderTimeout = 30 * time.Second

	// DefaultTTL is how long cached artifacts live unless configured
	DefaultTTL = "30d"

	// DefaultMaxSize is the cache budget unless configured
	DefaultMaxSize = "500MB"
)

// Config contains every option the speech core consumes.
type Config struct {
	// Provider is the provider tried first
	Provider string `yaml:"provider" mapstructure:"provider"`

	// FallbackOrder is validated but not used; the runtime always walks
	// ttypes.CanonicalOrder.
	FallbackOrder []string `yaml:"fallback_order" mapstructure:"fallback_order"`

	// Providers holds per-provider voice, rate and model settings
	Providers map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`

	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Playback PlaybackConfig `yaml:"playback" mapstructure:"playback"`

	// ProviderTimeout bounds each provider call (0 = no timeout)
	ProviderTimeout time.Duration `yaml:"provider_timeout" mapstructure:"provider_timeout"`

	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Credentials are never read from the config file
	Credentials Credentials `yaml:"-" mapstructure:"-"`
}

// ProviderConfig contains the settings of one provider.
type ProviderConfig struct {
	Voice string `yaml:"voice" mapstructure:"voice"`
	Rate  int    `yaml:"rate" mapstructure:"rate"`
	Model string `yaml:"model" mapstructure:"model"`

	// BaseURL overrides the remote endpoint
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Binary overrides system voice discovery
	Binary string `yaml:"binary" mapstructure:"binary"`
}

// CacheConfig contains the result cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
	TTL     string `yaml:"ttl" mapstructure:"ttl"`
	MaxSize string `yaml:"max_size" mapstructure:"max_size"`
}

// PlaybackConfig selects the external player.
type PlaybackConfig struct {
	// Command is the player and its leading arguments (empty = detect)
	Command string `yaml:"command" mapstructure:"command"`
}

// RateLimitConfig limits outgoing requests for every remote provider.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// Default returns a Config with sensible defaults. The cache directory is
// left empty and resolved by Load.
func Default() Config {
	return Config{
		Provider:      string(ttypes.ProviderSystem),
		FallbackOrder: ttypes.Names(),
		Providers:     map[string]ProviderConfig{},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     DefaultTTL,
			MaxSize: DefaultMaxSize,
		},
		ProviderTimeout: DefaultProviderTimeout,
		RateLimit:       RateLimitConfig{RequestsPerMinute: 50},
	}
}

// SetDefaults registers the defaults with v so that v.Get reports them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("provider", d.Provider)
	v.SetDefault("fallback_order", d.FallbackOrder)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("playback.command", "")
	v.SetDefault("provider_timeout", d.ProviderTimeout)
	v.SetDefault("rate_limit.requests_per_minute", d.RateLimit.RequestsPerMinute)
}

// Load builds a Config from v on top of Default, resolves the cache
// directory and validates the result. Credentials are not loaded.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}

	dir, err := ResolveCacheDir(cfg.Cache.Dir)
	if err != nil {
		return cfg, err
	}
	cfg.Cache.Dir = dir

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ResolveCacheDir expands ~ in dir, or returns the default cache directory
// when dir is empty.
func ResolveCacheDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return DefaultCacheDir()
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", &cache.InvalidConfigurationError{Field: "cache.dir", Value: dir, Reason: err.Error()}
	}
	return expanded, nil
}

// Validate checks every field and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ttypes.ParseName(c.Provider); err != nil {
		errs = append(errs, fmt.Errorf("provider: %w", err))
	}

	seen := make(map[ttypes.Name]bool, len(c.FallbackOrder))
	for _, s := range c.FallbackOrder {
		n, err := ttypes.ParseName(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("fallback_order: %w", err))
			continue
		}
		if seen[n] {
			errs = append(errs, fmt.Errorf("fallback_order: %s listed twice", n))
		}
		seen[n] = true
	}

	for name, p := range c.Providers {
		if _, err := ttypes.ParseName(name); err != nil {
			errs = append(errs, fmt.Errorf("providers: %w", err))
		}
		if p.Rate < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.rate must be non-negative, got %d", name, p.Rate))
		}
	}

	if _, err := cache.ParseTTL(c.Cache.TTL); err != nil {
		errs = append(errs, err)
	}
	if _, err := cache.ParseSize(c.Cache.MaxSize); err != nil {
		errs = append(errs, err)
	}

	if c.ProviderTimeout < 0 {
		errs = append(errs, fmt.Errorf("provider_timeout must be non-negative, got %s", c.ProviderTimeout))
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_minute must be non-negative, got %d", c.RateLimit.RequestsPerMinute))
	}

	return errors.Join(errs...)
}

// DefaultProvider returns the provider tried first. Validate guarantees
// it parses; an invalid value falls back to the system voice.
func (c *Config) DefaultProvider() ttypes.Name {
	n, err := ttypes.ParseName(c.Provider)
	if err != nil {
		return ttypes.ProviderSystem
	}
	return n
}

// ProviderSettings returns the settings for name, or the zero value.
func (c *Config) ProviderSettings(name ttypes.Name) ProviderConfig {
	if p, ok := c.Providers[string(name)]; ok {
		return p
	}
	return ProviderConfig{}
}

// CacheOptions converts the cache section into cache.Options.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Dir:     c.Cache.Dir,
		TTL:     c.Cache.TTL,
		MaxSize: c.Cache.MaxSize,
	}
}
