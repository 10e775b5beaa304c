// Package config resolves the gateway settings. Later sources win:
//  1. built in defaults
//  2. config.json5 (and config.local.json5) in the working directory
//  3. environment variables, platform settings prefixed with the platform id
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bookgateway/lib/configutil"

	"dario.cat/mergo"
	"github.com/kelseyhightower/envconfig"
)

const FileName = "config.json5"

// Platform holds the settings of one platform adapter, read from the
// environment as `<ID>_BASE_URL`, `<ID>_TIMEOUT` and so on.
type Platform struct {
	BaseUrl          string `json:"base_url" split_words:"true"`
	Timeout          int    `json:"timeout" split_words:"true"`
	MaxRetries       int    `json:"max_retries" split_words:"true"`
	RetryDelayMs     int    `json:"retry_delay_ms" split_words:"true"`
	CloudflareBypass bool   `json:"cloudflare_bypass" split_words:"true"`
}

func (p Platform) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

func (p Platform) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMs) * time.Millisecond
}

type Config struct {
	Debug          bool   `json:"debug" envconfig:"DEBUG"`
	Host           string `json:"host" envconfig:"HOST"`
	Port           int    `json:"port" envconfig:"PORT"`
	EnableCache    bool   `json:"enable_cache" envconfig:"ENABLE_CACHE"`
	CacheTimeout   int    `json:"cache_timeout" envconfig:"CACHE_TIMEOUT"`
	CacheSize      int    `json:"cache_size" envconfig:"CACHE_SIZE"`
	RequestTimeout int    `json:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	HttpDumpDir    string `json:"http_dump_dir" envconfig:"HTTP_DUMP_DIR"`

	Platforms map[string]Platform `json:"platforms" ignored:"true"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTimeout) * time.Second
}

func (c Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// DefaultPlatform is the configuration of a platform nobody configured.
func DefaultPlatform() Platform {
	return Platform{
		BaseUrl:      "https://z-library.sk",
		Timeout:      10,
		MaxRetries:   3,
		RetryDelayMs: 1000,
	}
}

// Default returns the built in configuration with an entry for every
// platform id given.
func Default(platforms ...string) Config {
	cfg := Config{
		Host:           "0.0.0.0",
		Port:           5000,
		CacheTimeout:   3600,
		CacheSize:      128,
		RequestTimeout: 60,
		Platforms:      map[string]Platform{},
	}
	for _, id := range platforms {
		cfg.Platforms[id] = DefaultPlatform()
	}
	return cfg
}

// Load resolves the configuration of the gateway and of every platform id
// given, platforms only found in the config file are kept as well.
func Load(platforms ...string) (Config, error) {
	cfg := Default(platforms...)

	file, err := configutil.ReadConfig[Config](FileName)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	if err == nil {
		err = mergeFile(&cfg, file)
		if err != nil {
			return Config{}, err
		}
	}

	err = envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	for id, p := range cfg.Platforms {
		err = envconfig.Process(strings.ToUpper(id), &p)
		if err != nil {
			return Config{}, fmt.Errorf("read %s environment: %w", id, err)
		}
		cfg.Platforms[id] = p
	}

	return cfg, cfg.Validate()
}

// mergeFile overlays the values set in the config file, platform entries are
// merged field by field so a file only setting base_url keeps the other
// defaults.
func mergeFile(cfg *Config, file Config) error {
	for id, p := range file.Platforms {
		merged, ok := cfg.Platforms[id]
		if !ok {
			merged = DefaultPlatform()
		}
		err := mergo.Merge(&merged, p, mergo.WithOverride)
		if err != nil {
			return fmt.Errorf("merge %s config: %w", id, err)
		}
		cfg.Platforms[id] = merged
	}

	file.Platforms = nil
	platforms := cfg.Platforms
	err := mergo.Merge(cfg, file, mergo.WithOverride)
	if err != nil {
		return fmt.Errorf("merge %s: %w", FileName, err)
	}
	cfg.Platforms = platforms
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("cache size must be positive, got %d", c.CacheSize))
	}
	if c.CacheTimeout <= 0 {
		errs = append(errs, fmt.Errorf("cache timeout must be positive, got %d", c.CacheTimeout))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeout))
	}
	for id, p := range c.Platforms {
		if p.BaseUrl == "" {
			errs = append(errs, fmt.Errorf("%s: base url is empty", id))
		}
		if p.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("%s: timeout must be positive, got %d", id, p.Timeout))
		}
		if p.RetryDelayMs < 0 {
			errs = append(errs, fmt.Errorf("%s: retry delay must not be negative, got %d", id, p.RetryDelayMs))
		}
	}
	return errors.Join(errs...)
}
