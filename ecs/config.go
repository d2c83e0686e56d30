package ecs

import (
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config holds the runtime configuration for a World instance.
// Configuration can be set via environment variables with the specified defaults.
type Config struct {
	// Number of workers the scheduler may run concurrently within a batch.
	// Zero means one worker per logical CPU.
	Workers int `env:"SHIPYARD_WORKERS"`

	// Run every batch one system at a time, preserving declaration order.
	// Batch boundaries are still computed and observable.
	Sequential bool `env:"SHIPYARD_SEQUENTIAL"`

	// Fail view acquisition for storage kinds that were never registered instead of
	// creating them implicitly on first use.
	StrictStorages bool `env:"SHIPYARD_STRICT_STORAGES"`

	// Minimum log level applied to the injected logger (zerolog names: trace, debug,
	// info, warn, error).
	LogLevel string `env:"SHIPYARD_LOG_LEVEL" envDefault:"info"`

	// Logger for compilation and run diagnostics. Without one the world logs nothing.
	logger *zerolog.Logger
}

// loadConfig loads the world configuration from environment variables.
func loadConfig() (Config, error) {
	cfg := Config{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse world config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return cfg, nil
}

// validate performs validation on the loaded configuration.
func (cfg *Config) validate() error {
	if cfg.Workers < 0 {
		return eris.New("worker count cannot be negative")
	}
	switch cfg.LogLevel {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return eris.Errorf("unknown log level %q", cfg.LogLevel)
	}
	return nil
}

// Option overrides one configuration value at World construction, after the environment
// has been applied.
type Option func(*Config)

// WithWorkers caps concurrent systems within a batch.
func WithWorkers(n int) Option {
	return func(cfg *Config) {
		cfg.Workers = n
	}
}

// WithSequential forces one-at-a-time execution in declaration order.
func WithSequential() Option {
	return func(cfg *Config) {
		cfg.Sequential = true
	}
}

// WithStrictStorages disables implicit storage creation on first use.
func WithStrictStorages() Option {
	return func(cfg *Config) {
		cfg.StrictStorages = true
	}
}

// WithLogLevel sets the minimum log level.
func WithLogLevel(level string) Option {
	return func(cfg *Config) {
		cfg.LogLevel = level
	}
}

// WithLogger installs a logger for compilation and run diagnostics. The configured log
// level is applied on top.
func WithLogger(log zerolog.Logger) Option {
	return func(cfg *Config) {
		cfg.logger = &log
	}
}
