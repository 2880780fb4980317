// Package config holds the resolver's runtime settings: the two
// required positional arguments (root server, zone file) plus the
// optional listen-port flag and optional TOML overrides file. Layered
// on top of the teacher's config package (default-template generation,
// BurntSushi/toml decoding) but trimmed to this resolver's much
// smaller settings surface.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the resolver's full runtime configuration.
type Config struct {
	// RootIP is the IPv4 address of the root server recursion starts
	// from.
	RootIP string

	// ZoneFile is the path to the authoritative zone file this
	// resolver serves.
	ZoneFile string

	// Port is the UDP listen port; 0 means "choose ephemeral."
	Port int

	// LogLevel is one of crit, error, warn, info, debug, matching the
	// teacher's log-level vocabulary.
	LogLevel string

	// UpstreamTimeout bounds each outbound recursive exchange.
	UpstreamTimeout Duration

	// SweepInterval controls how often the cache's background
	// expired-entry sweep runs.
	SweepInterval Duration

	// WatchZone enables fsnotify-driven zone-file hot reload.
	WatchZone bool
}

// Duration wraps time.Duration so it can be read from TOML as a
// string like "3s", matching the teacher's config.Duration type.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Default returns the configuration used when no TOML overrides file
// is given.
func Default() *Config {
	return &Config{
		Port:            53,
		LogLevel:        "info",
		UpstreamTimeout: Duration{3 * time.Second},
		SweepInterval:   Duration{30 * time.Second},
		WatchZone:       true,
	}
}

// fileOverrides is the subset of Config that the optional TOML file
// may override; RootIP, ZoneFile and Port come from the CLI only.
type fileOverrides struct {
	LogLevel        string
	UpstreamTimeout Duration
	SweepInterval   Duration
	WatchZone       *bool
}

// LoadOverrides reads path and applies any settings it sets onto cfg.
func LoadOverrides(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config: %s does not exist", path)
	}

	var ov fileOverrides
	if _, err := toml.DecodeFile(path, &ov); err != nil {
		return fmt.Errorf("config: could not load %s: %w", path, err)
	}

	if ov.LogLevel != "" {
		cfg.LogLevel = ov.LogLevel
	}
	if ov.UpstreamTimeout.Duration != 0 {
		cfg.UpstreamTimeout = ov.UpstreamTimeout
	}
	if ov.SweepInterval.Duration != 0 {
		cfg.SweepInterval = ov.SweepInterval
	}
	if ov.WatchZone != nil {
		cfg.WatchZone = *ov.WatchZone
	}

	return nil
}
