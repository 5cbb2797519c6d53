package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Scanner    ScannerConfig    `mapstructure:"scanner" validate:"required"`
	Recurrence RecurrenceConfig `mapstructure:"recurrence"`
	Holidays   HolidaysConfig   `mapstructure:"holidays"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	URL    string `mapstructure:"url" validate:"required_if=Driver postgres,omitempty,url"`

	MaxOpenConns int `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// ScannerConfig controls the maintenance scanner.
type ScannerConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Schedule is a cron expression or descriptor such as "@every 1m".
	Schedule    string `mapstructure:"schedule" validate:"required,cronspec"`
	WorkerCount int    `mapstructure:"worker_count" validate:"gte=1,lte=64"`
	BatchSize   int    `mapstructure:"batch_size" validate:"gte=1"`
}

// RecurrenceConfig tunes the recurrence engine.
type RecurrenceConfig struct {
	MaxSkipIterations int `mapstructure:"max_skip_iterations" validate:"gte=1,lte=3660"`
	MaxPreview        int `mapstructure:"max_preview" validate:"gte=1"`
}

// HolidaysConfig feeds the static holiday calendar.
type HolidaysConfig struct {
	// Dates are one-off holidays as YYYY-MM-DD.
	Dates []string `mapstructure:"dates" validate:"dive,datetime=2006-01-02"`

	// Annual are holidays repeating every year as MM-DD.
	Annual []string `mapstructure:"annual" validate:"dive,datetime=01-02"`
}
