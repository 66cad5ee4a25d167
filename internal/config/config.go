package config

import (
	"time"

	"github.com/vovakirdan/hotowire-server/internal/core"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	WSPath            string        `mapstructure:"ws_path" yaml:"ws_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// HandoverPolicy picks between the two observed authorization rules:
	// "same_team" or "cross_team".
	HandoverPolicy string `mapstructure:"handover_policy" yaml:"handover_policy"`

	// StaleTimeout and SweepInterval tune the liveness sweep.
	StaleTimeout  time.Duration `mapstructure:"stale_timeout" yaml:"stale_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		WSPath:            "/ws",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		HandoverPolicy:    string(core.PolicySameTeam),
		StaleTimeout:      core.DefaultStaleTimeout,
		SweepInterval:     core.DefaultSweepInterval,
	}
}

// Policy resolves the configured handover policy, falling back to the
// same-team rule for unknown values.
func (c Config) Policy() core.PolicyMode {
	m := core.PolicyMode(c.HandoverPolicy)
	if !m.Valid() {
		return core.PolicySameTeam
	}
	return m
}
