// Package config loads process-level configuration.
//
// Process configuration covers concerns that belong to the binary
// rather than to a single run: logging and environment-level defaults
// for the run command. Run-specific settings live in the job manifest;
// anything configured here can be overridden there or by flags.
//
// Sources, in increasing precedence: built-in defaults, an optional
// config file, MODELRUN_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the resolved process configuration.
type Config struct {
	// Logging configures the CLI logger.
	Logging LoggingConfig `mapstructure:"logging"`

	// Defaults provides environment-level fallbacks for run settings
	// that the manifest leaves unset.
	Defaults RunDefaults `mapstructure:"defaults"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	// Level is a zap level name. Default: "info".
	Level string `mapstructure:"level"`

	// JSON selects JSON log encoding instead of console output.
	JSON bool `mapstructure:"json"`
}

// RunDefaults holds fallbacks applied when a manifest omits a value.
type RunDefaults struct {
	// ResultsDir is the default directory for the file store.
	ResultsDir string `mapstructure:"results_dir"`

	// Workers is the default pool size.
	Workers int `mapstructure:"workers"`

	// Timeout is the default per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// APIKey is sent as a bearer token when the manifest has none.
	// Typically set via MODELRUN_DEFAULTS_API_KEY.
	APIKey string `mapstructure:"api_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
	v.SetDefault("defaults.results_dir", "results")
	v.SetDefault("defaults.workers", 10)
	v.SetDefault("defaults.timeout", "300s")
	// Registered so AutomaticEnv exposes MODELRUN_DEFAULTS_API_KEY to
	// Unmarshal; viper only binds env vars for known keys.
	v.SetDefault("defaults.api_key", "")
}

// Load resolves the process configuration.
//
// If configFile is non-empty it must exist and parse; otherwise only
// defaults and environment variables apply.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MODELRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}
