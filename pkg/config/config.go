// Package config provides YAML-based configuration loading for peerwire.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root node configuration.
type Config struct {
	// AppName optional logical name of the node/application
	AppName string `mapstructure:"app_name"`

	// NodeID is the numeric sender identifier stamped on outbound envelopes
	NodeID uint64 `mapstructure:"node_id"`

	// Listen is this node's own endpoint, e.g. "127.0.0.1:9001"
	Listen string `mapstructure:"listen"`

	// Peers is the full ordered list of peer endpoints, supplied by the
	// bootstrap orchestrator before the transport starts
	Peers []string `mapstructure:"peers"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`

	// Net holds transport tunables
	Net NetConfig `mapstructure:"net"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// NetConfig holds the transport tunables. Every queue in the transport is
// bounded by QueueCapacity; a full queue suspends its producer.
type NetConfig struct {
	// QueueCapacity bounds the coordinator inbound, per-worker, retransmit
	// and delivery queues
	QueueCapacity int `mapstructure:"queue_capacity"`
	// RetryDelayMS is the fixed retransmission delay
	RetryDelayMS int `mapstructure:"retry_delay_ms"`
	// DialTimeoutMS bounds a single outbound TCP connect
	DialTimeoutMS int `mapstructure:"dial_timeout_ms"`
	// MaxFrameBytes bounds a single inbound frame; larger frames are
	// treated as stream corruption
	MaxFrameBytes uint32 `mapstructure:"max_frame_bytes"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		AppName: "peerwire-node",
		NodeID:  1,
		Listen:  "127.0.0.1:9001",
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/peerwire.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Net: NetConfig{
			QueueCapacity: 10_000,
			RetryDelayMS:  30,
			DialTimeoutMS: 1000,
			MaxFrameBytes: 1 << 24,
		},
	}
}

// Load reads configuration from the provided path (if non-empty), otherwise
// it searches common locations and supports environment overrides.
// Environment variables use the prefix PEERWIRE and `.`/`-` are replaced
// with `_`. Example: PEERWIRE_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PEERWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("node_id", cfg.NodeID)
	v.SetDefault("listen", cfg.Listen)
	v.SetDefault("peers", cfg.Peers)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("net.queue_capacity", cfg.Net.QueueCapacity)
	v.SetDefault("net.retry_delay_ms", cfg.Net.RetryDelayMS)
	v.SetDefault("net.dial_timeout_ms", cfg.Net.DialTimeoutMS)
	v.SetDefault("net.max_frame_bytes", cfg.Net.MaxFrameBytes)

	// Choose config file
	if path == "" {
		if envPath := os.Getenv("PEERWIRE_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `peerwire`
		v.SetConfigName("peerwire")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".peerwire"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}

	if _, err := netip.ParseAddrPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen endpoint %q: %w", c.Listen, err)
	}
	for _, p := range c.Peers {
		if _, err := netip.ParseAddrPort(p); err != nil {
			return fmt.Errorf("invalid peer endpoint %q: %w", p, err)
		}
	}

	if c.Net.QueueCapacity <= 0 {
		c.Net.QueueCapacity = 10_000
	}
	if c.Net.RetryDelayMS <= 0 {
		c.Net.RetryDelayMS = 30
	}
	if c.Net.DialTimeoutMS <= 0 {
		c.Net.DialTimeoutMS = 1000
	}
	if c.Net.MaxFrameBytes == 0 {
		c.Net.MaxFrameBytes = 1 << 24
	}
	return nil
}

// ListenAddr returns the validated listen endpoint.
func (c *Config) ListenAddr() netip.AddrPort {
	ap, _ := netip.ParseAddrPort(c.Listen)
	return ap
}

// PeerAddrs returns the validated peer endpoints in configured order.
func (c *Config) PeerAddrs() []netip.AddrPort {
	out := make([]netip.AddrPort, 0, len(c.Peers))
	for _, p := range c.Peers {
		ap, err := netip.ParseAddrPort(p)
		if err != nil { continue }
		out = append(out, ap)
	}
	return out
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
