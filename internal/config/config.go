// Package config loads wirepoll configuration and builds the process logger.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Load reads configuration from file and environment variables.
// If configPath is empty, wirepoll.yaml is searched in the usual locations.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/wirepoll.db")
	v.SetDefault("diagnostics.addr", "127.0.0.1:9155")

	v.SetDefault("snmp.timeout", "5s")
	v.SetDefault("snmp.retries", 1)

	v.SetDefault("poller.sample_retention", "24h")
	v.SetDefault("poller.maintenance_interval", "1h")
	v.SetDefault("poller.ping_timeout", "2s")
	v.SetDefault("poller.ping_count", 3)

	v.SetDefault("alert.event_retention", "720h")
	v.SetDefault("alert.maintenance_interval", "1h")
	v.SetDefault("alert.channel_rate_limit", "1m")
	v.SetDefault("alert.channel_burst", 5)
	v.SetDefault("alert.send_timeout", "10s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("wirepoll")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/wirepoll")
	}

	// Environment variable support: WIREPOLL_DATABASE_PATH=/var/lib/wirepoll.db
	v.SetEnvPrefix("WIREPOLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}

// NewLogger builds the process logger from "logging.level" and
// "logging.format". The json format is meant for running under a service
// manager; console is for poking at a poller interactively.
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(v.GetString("logging.level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", v.GetString("logging.level"), err)
	}

	var cfg zap.Config
	switch format := v.GetString("logging.format"); format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
