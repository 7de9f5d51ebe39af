// Package config binds the supervisor's environment-variable configuration
// surface through viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the supervisor's resolved runtime configuration.
type Config struct {
	ChildBin            string        `mapstructure:"child_bin"`
	ChildArgs           []string      `mapstructure:"child_args"`
	ApprovalTimeout     time.Duration `mapstructure:"approval_timeout_seconds"`
	DefaultTurnDefaults string        `mapstructure:"default_turn_defaults"`
	LogLevel            string        `mapstructure:"log_level"`
	MetricsAddr         string        `mapstructure:"metrics_addr"`
	HandshakeTimeout    time.Duration `mapstructure:"handshake_timeout_seconds"`
	HandshakeMethod     string        `mapstructure:"handshake_method"`
	HandshakeParams     string        `mapstructure:"handshake_params"`
}

// Load reads SUPERVISOR_-prefixed environment variables into a Config,
// applying defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SUPERVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("child_bin", "agentsup-child")
	v.SetDefault("approval_timeout_seconds", 60)
	v.SetDefault("default_turn_defaults", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("handshake_timeout_seconds", 30)
	v.SetDefault("handshake_method", "")
	v.SetDefault("handshake_params", "")

	_ = v.BindEnv("child_bin", "SUPERVISOR_CHILD_BIN")
	_ = v.BindEnv("approval_timeout_seconds", "SUPERVISOR_APPROVAL_TIMEOUT_SECONDS")
	_ = v.BindEnv("default_turn_defaults", "SUPERVISOR_DEFAULT_TURN_DEFAULTS")
	_ = v.BindEnv("log_level", "SUPERVISOR_LOG_LEVEL")
	_ = v.BindEnv("metrics_addr", "SUPERVISOR_METRICS_ADDR")
	_ = v.BindEnv("handshake_timeout_seconds", "SUPERVISOR_HANDSHAKE_TIMEOUT_SECONDS")
	_ = v.BindEnv("handshake_method", "SUPERVISOR_HANDSHAKE_METHOD")
	_ = v.BindEnv("handshake_params", "SUPERVISOR_HANDSHAKE_PARAMS")

	cfg := &Config{
		ChildBin:            v.GetString("child_bin"),
		ApprovalTimeout:     time.Duration(v.GetInt("approval_timeout_seconds")) * time.Second,
		DefaultTurnDefaults: v.GetString("default_turn_defaults"),
		LogLevel:            v.GetString("log_level"),
		MetricsAddr:         v.GetString("metrics_addr"),
		HandshakeTimeout:    time.Duration(v.GetInt("handshake_timeout_seconds")) * time.Second,
		HandshakeMethod:     v.GetString("handshake_method"),
		HandshakeParams:     v.GetString("handshake_params"),
	}

	if raw := v.GetString("child_args"); raw != "" {
		cfg.ChildArgs = strings.Fields(raw)
	}

	return cfg, nil
}
