// Package config loads filesystem settings from a YAML file and the
// environment.
package config

import (
	"os"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"

	fserrors "github.com/wippyai/wasi-vfs/errors"
)

type Config struct {
	Preopens   []string      `yaml:"preopens" env:"WASIFS_PREOPENS" env-separator:","`
	Repository string        `yaml:"repository" env:"WASIFS_REPOSITORY" env-default:"mem://wasifs"`
	Namespace  string        `yaml:"namespace" env:"WASIFS_NAMESPACE"`
	Log        LogConfig     `yaml:"log"`
	Metrics    MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"WASIFS_LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"WASIFS_LOG_DEVELOPMENT"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"WASIFS_METRICS_ENABLED"`
	File    string `yaml:"file" env:"WASIFS_METRICS_FILE" env-description:"write metrics in text format to this file on exit"`
}

// Load reads configuration from path, then applies environment overrides.
// With an empty path only the environment is read. A configuration without
// preopens is rejected. Overrides run after both sources and before
// validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fserrors.New(fserrors.PhaseConfig, fserrors.KindNotFound).
				Path(path).
				Detail("config file does not exist").
				Cause(err).
				Build()
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fserrors.New(fserrors.PhaseConfig, fserrors.KindInvalidInput).
				Path(path).
				Detail("cannot read config").
				Cause(err).
				Build()
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fserrors.Wrap(fserrors.PhaseConfig, fserrors.KindInvalidInput, err, "cannot read environment")
	}

	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Namespace == "" {
		cfg.Namespace = uuid.NewString()
	}
	return &cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if len(c.Preopens) == 0 {
		return fserrors.InvalidInput(fserrors.PhaseConfig, "at least one preopen directory is required")
	}
	for _, p := range c.Preopens {
		if p == "" {
			return fserrors.InvalidInput(fserrors.PhaseConfig, "empty preopen path")
		}
	}
	return nil
}

// Usage describes the environment variables Config understands.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
