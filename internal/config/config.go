// Package config centralizes all controller configuration into typed structs.
//
// Defaults come from NewDefaultConfig. Load layers a config file, MANUALSMAP_*
// environment variables and bound command-line flags on top of them through
// viper.
//
// Go Learning Note — Configuration Management:
// Typed structs give compile-time safety; viper only fills them in. Keys are
// the lower-cased dotted struct paths, e.g. "map.max_span" or
// MANUALSMAP_MAP_MAX_SPAN in the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"manualsmap/internal/geo"
)

// Config is the top-level configuration container.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Map     MapConfig     `mapstructure:"map"`
}

// ServerConfig holds the controller HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SessionTTL is how long an idle map session is kept.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// SessionSweepInterval is how often expired sessions are dropped.
	SessionSweepInterval time.Duration `mapstructure:"session_sweep_interval"`
}

// BackendConfig points the REST client at the parked-cars API.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// TokenPath is the endpoint the map token is read from. The first drafts
	// served it at /token, later ones at /mapkit/token.
	TokenPath string `mapstructure:"token_path"`
	// TokenRefreshSkew renews a cached token this long before it expires.
	TokenRefreshSkew time.Duration `mapstructure:"token_refresh_skew"`
	// FallbackTokenTTL is used for tokens without a readable exp claim.
	FallbackTokenTTL time.Duration `mapstructure:"fallback_token_ttl"`
}

// MapConfig controls map-block bucketing and overlay refresh.
type MapConfig struct {
	// MaxSpan is the latitude or longitude span at and above which overlays
	// are cleared instead of fetched.
	MaxSpan float64 `mapstructure:"max_span"`
	// BlockSize is the edge length of a map block in degrees.
	BlockSize float64 `mapstructure:"block_size"`
	// Initial viewport of sessions created without one.
	InitialLatitude  float64 `mapstructure:"initial_latitude"`
	InitialLongitude float64 `mapstructure:"initial_longitude"`
	InitialSpan      float64 `mapstructure:"initial_span"`
}

// NewDefaultConfig returns a Config populated with the values the front-end
// drafts hard-coded.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                 ":8080",
			ReadTimeout:          10 * time.Second,
			WriteTimeout:         10 * time.Second,
			SessionTTL:           30 * time.Minute,
			SessionSweepInterval: time.Minute,
		},
		Backend: BackendConfig{
			BaseURL:          "http://localhost:8081",
			Timeout:          10 * time.Second,
			TokenPath:        "/mapkit/token",
			TokenRefreshSkew: time.Minute,
			FallbackTokenTTL: 30 * time.Minute,
		},
		Map: MapConfig{
			MaxSpan:          0.7,
			BlockSize:        0.01,
			InitialLatitude:  47.6062,
			InitialLongitude: -122.3321,
			InitialSpan:      0.05,
		},
	}
}

// SetDefaults registers the default values with v so that unset keys,
// environment variables and flags all resolve against them.
func SetDefaults(v *viper.Viper) {
	def := NewDefaultConfig()
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	v.SetDefault("server.session_ttl", def.Server.SessionTTL)
	v.SetDefault("server.session_sweep_interval", def.Server.SessionSweepInterval)
	v.SetDefault("backend.base_url", def.Backend.BaseURL)
	v.SetDefault("backend.timeout", def.Backend.Timeout)
	v.SetDefault("backend.token_path", def.Backend.TokenPath)
	v.SetDefault("backend.token_refresh_skew", def.Backend.TokenRefreshSkew)
	v.SetDefault("backend.fallback_token_ttl", def.Backend.FallbackTokenTTL)
	v.SetDefault("map.max_span", def.Map.MaxSpan)
	v.SetDefault("map.block_size", def.Map.BlockSize)
	v.SetDefault("map.initial_latitude", def.Map.InitialLatitude)
	v.SetDefault("map.initial_longitude", def.Map.InitialLongitude)
	v.SetDefault("map.initial_span", def.Map.InitialSpan)
}

// Load reads the optional config file and the environment into a Config.
// An empty path only consults defaults, environment and bound flags.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("manualsmap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the controller cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Map.MaxSpan <= 0 {
		errs = append(errs, fmt.Errorf("map.max_span must be positive, got %v", c.Map.MaxSpan))
	}
	if err := geo.CheckCellSize(c.Map.BlockSize); err != nil {
		errs = append(errs, fmt.Errorf("map.block_size: %w", err))
	}
	if c.Map.InitialSpan <= 0 {
		errs = append(errs, fmt.Errorf("map.initial_span must be positive, got %v", c.Map.InitialSpan))
	}
	if c.Server.SessionTTL <= 0 || c.Server.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("server.session_ttl and server.session_sweep_interval must be positive"))
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	return errors.Join(errs...)
}
