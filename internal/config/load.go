package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CADENCE"

// keys lists every configuration key so that environment variables are
// picked up even when no file or default mentions them.
var keys = []string{
	"server.log_level",
	"database.driver",
	"database.url",
	"database.max_open_conns",
	"database.max_idle_conns",
	"scanner.enabled",
	"scanner.schedule",
	"scanner.worker_count",
	"scanner.batch_size",
	"recurrence.max_skip_iterations",
	"recurrence.max_preview",
	"holidays.dates",
	"holidays.annual",
}

// Load configuration from environment variables and optionally a cadence.yaml
// file in the working directory or /etc/cadence.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return load(viper.New(), "")
}

// LoadFile is like Load but reads the given config file instead of
// searching for cadence.yaml.
func LoadFile(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cadence")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/cadence")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("scanner.enabled", true)
	v.SetDefault("scanner.schedule", "@every 1m")
	v.SetDefault("scanner.worker_count", 4)
	v.SetDefault("scanner.batch_size", 100)
	v.SetDefault("recurrence.max_skip_iterations", 100)
	v.SetDefault("recurrence.max_preview", 366)
	v.SetDefault("holidays.dates", []string{})
	v.SetDefault("holidays.annual", []string{})
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("cronspec", validateCronSpec); err != nil {
		return fmt.Errorf("registering cronspec validation: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}
