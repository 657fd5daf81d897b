package config

import (
	"errors"
	"fmt"
	"sync"
)

// BindingDirection is the reading order of a spread: left-to-right books
// bind on the left, right-to-left books (manga) bind on the right.
type BindingDirection string

const (
	BindingLeft  BindingDirection = "left"
	BindingRight BindingDirection = "right"
)

var (
	instance *Config
	mu       sync.RWMutex
)

// Config holds the tunables the loading core consumes. Values are supplied
// by the embedding application at start-up or changed at runtime; there is
// no settings file.
type Config struct {
	LogLevel string `json:"log_level,omitempty"`
	LogFile  string `json:"log_file,omitempty"`

	// Cache
	MaxCacheSizeMB int64 `json:"max_cache_size_mb,omitempty"`

	// Decoding
	UseCPUColorConversion bool `json:"use_cpu_color_conversion,omitempty"`
	DecodeWorkers         int  `json:"decode_workers,omitempty"`

	// Read-ahead distance in pages around the displayed spread.
	PrefetchPages int `json:"prefetch_pages,omitempty"`

	// View defaults
	SpreadView      bool             `json:"spread_view,omitempty"`
	Binding         BindingDirection `json:"binding_direction,omitempty"`
	FirstPageSingle bool             `json:"first_page_single,omitempty"`
}

// Default returns a Config with the defaults the original viewer shipped.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxCacheSizeMB <= 0 {
		c.MaxCacheSizeMB = 4096
	}
	if c.DecodeWorkers <= 0 {
		c.DecodeWorkers = 1
	}
	if c.PrefetchPages <= 0 {
		c.PrefetchPages = 10
	}
	if c.Binding == "" {
		c.Binding = BindingRight
	}
}

func (c *Config) validate() error {
	if c.Binding != BindingLeft && c.Binding != BindingRight {
		return fmt.Errorf("invalid binding direction: %s", c.Binding)
	}
	if c.MaxCacheSizeMB < 0 {
		return errors.New("max cache size cannot be negative")
	}
	return nil
}

// MaxCacheBytes returns the cache budget in bytes.
func (c *Config) MaxCacheBytes() int64 {
	return c.MaxCacheSizeMB * 1024 * 1024
}

// Get returns the active configuration, initializing defaults on first use.
func Get() *Config {
	mu.RLock()
	if instance != nil {
		defer mu.RUnlock()
		return instance
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = Default()
	}
	return instance
}

// Set installs cfg as the active configuration after filling defaults.
func Set(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	mu.Lock()
	instance = cfg
	mu.Unlock()
	return nil
}
