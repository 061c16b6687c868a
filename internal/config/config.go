package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// VolumeUnavailablePolicy controls what happens when no 15-minute bar is
// available for a symbol (pre-market, thin trading).
type VolumeUnavailablePolicy string

const (
	// VolumePassWithCatalyst treats missing volume as a pass only when a
	// Real catalyst is present. Default.
	VolumePassWithCatalyst VolumeUnavailablePolicy = "real-catalyst"
	// VolumePass always passes the gate when volume is unavailable.
	VolumePass VolumeUnavailablePolicy = "pass"
	// VolumeFail always fails the gate when volume is unavailable.
	VolumeFail VolumeUnavailablePolicy = "fail"
)

// Gates holds every threshold the gate pipeline reads. All variants of the
// scanner share this one structure instead of scattering per-gate constants.
type Gates struct {
	PriceCeiling    float64 `yaml:"price_ceiling"`     // reject price > ceiling
	FloatCeiling    float64 `yaml:"float_ceiling"`     // reject float proxy > ceiling unless Real catalyst
	VolumeFloor     int64   `yaml:"volume_floor"`      // 15m bar volume absolute pass level
	VolumeFloatPct  float64 `yaml:"volume_float_pct"`  // alternative pass: volume >= pct of float
	VolumeGateFatal bool    `yaml:"volume_gate_fatal"` // false: failed volume gate keeps the row, unscored

	VolumeUnavailable VolumeUnavailablePolicy `yaml:"volume_unavailable"`

	// Sectors rejected unless a Real catalyst overrides, matched as
	// case-insensitive substrings of the provider's industry field.
	ExcludedSectors []string `yaml:"excluded_sectors"`

	HeadlineLookbackDays int `yaml:"headline_lookback_days"`
}

// Universe holds universe construction settings.
type Universe struct {
	// Symbols set explicitly by the operator. Takes precedence over every
	// other source.
	Symbols []string `yaml:"symbols"`

	// Exchange passed to the provider symbol directory, e.g. "US".
	Exchange string `yaml:"exchange"`

	MaxSize          int           `yaml:"max_size"`
	PricePrefilter   bool          `yaml:"price_prefilter"`
	FreshnessWindow  time.Duration `yaml:"freshness_window"`
	DirectoryEnabled bool          `yaml:"directory_enabled"`
}

// Provider holds market data provider settings.
type Provider struct {
	FinnhubAPIKey  string        `yaml:"finnhub_api_key"`
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`

	// Optional Redis-backed profile cache. Empty address keeps profiles in
	// an in-process TTL cache.
	RedisAddr  string        `yaml:"redis_addr"`
	ProfileTTL time.Duration `yaml:"profile_ttl"`
}

// Server holds HTTP server settings.
type Server struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Scan holds scan execution settings.
type Scan struct {
	Workers       int           `yaml:"workers"`
	Deadline      time.Duration `yaml:"deadline"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	EveryMinutes  int           `yaml:"every_minutes"` // 0 disables the background loop
	BoardMaxRows  int           `yaml:"board_max_rows"`
}

// Config is the root configuration for the scanner.
type Config struct {
	Gates    Gates    `yaml:"gates"`
	Universe Universe `yaml:"universe"`
	Provider Provider `yaml:"provider"`
	Server   Server   `yaml:"server"`
	Scan     Scan     `yaml:"scan"`
}

// Default returns the configuration used when no file or environment
// overrides are present. Thresholds match the standard small-cap
// near-trigger scan profile.
func Default() *Config {
	return &Config{
		Gates: Gates{
			PriceCeiling:         30.0,
			FloatCeiling:         150_000_000,
			VolumeFloor:          2_000_000,
			VolumeFloatPct:       0.0075,
			VolumeGateFatal:      false,
			VolumeUnavailable:    VolumePassWithCatalyst,
			ExcludedSectors:      []string{"biotechnology", "pharmaceuticals"},
			HeadlineLookbackDays: 14,
		},
		Universe: Universe{
			Exchange:         "US",
			MaxSize:          600,
			PricePrefilter:   false,
			FreshnessWindow:  15 * time.Minute,
			DirectoryEnabled: true,
		},
		Provider: Provider{
			BaseURL:        "https://finnhub.io/api/v1",
			RequestTimeout: 10 * time.Second,
			MaxRetries:     2,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			ProfileTTL:     6 * time.Hour,
		},
		Server: Server{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Scan: Scan{
			Workers:      8,
			Deadline:     5 * time.Minute,
			StaleAfter:   15 * time.Minute,
			EveryMinutes: 0,
			BoardMaxRows: 100,
		},
	}
}

// Load builds the effective configuration: defaults, overlaid by the YAML
// file at path (optional, empty path skips), overlaid by environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the handful of settings operators commonly set without
// a config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Provider.FinnhubAPIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Provider.RedisAddr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("NEARBOARD_UNIVERSE"); v != "" {
		c.Universe.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("NEARBOARD_SCAN_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scan.EveryMinutes = n
		}
	}
}

// Validate rejects configurations the scanner cannot start with. A missing
// provider credential is fatal at startup rather than a per-call surprise.
func (c *Config) Validate() error {
	if c.Provider.FinnhubAPIKey == "" {
		return fmt.Errorf("provider credential missing: set FINNHUB_API_KEY or provider.finnhub_api_key")
	}
	if c.Gates.PriceCeiling <= 0 {
		return fmt.Errorf("gates.price_ceiling must be positive, got %v", c.Gates.PriceCeiling)
	}
	if c.Gates.FloatCeiling <= 0 {
		return fmt.Errorf("gates.float_ceiling must be positive, got %v", c.Gates.FloatCeiling)
	}
	if c.Universe.MaxSize <= 0 {
		return fmt.Errorf("universe.max_size must be positive, got %d", c.Universe.MaxSize)
	}
	switch c.Gates.VolumeUnavailable {
	case VolumePassWithCatalyst, VolumePass, VolumeFail:
	default:
		return fmt.Errorf("gates.volume_unavailable: unknown policy %q", c.Gates.VolumeUnavailable)
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = 1
	}
	return nil
}
