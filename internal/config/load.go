package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables (prefix BATCHQ_, nested keys
// joined with underscores, e.g. BATCHQ_ENGINE_MAX_CONCURRENT) take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading or
// validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("batchq")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/batchq")

	v.SetEnvPrefix("BATCHQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment and defaults
		// carry the configuration.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("engine.max_concurrent", 3)
	v.SetDefault("engine.max_retries", 2)
	v.SetDefault("engine.retry_delay_seconds", 5.0)
	v.SetDefault("engine.poll_interval_ms", 500)
	v.SetDefault("engine.task_timeout_seconds", 0.0)
	v.SetDefault("engine.save_state", true)
	v.SetDefault("engine.state_file", "batch_state.json")

	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
}
