// Package config loads the worker's runtime configuration from environment
// variables using the reflection-based internal/env loader, the same
// pattern the teacher's server and worker binaries use.
package config

import (
	"fmt"
	"time"

	"github.com/mavedb/worker/internal/env"
)

// Config holds every named knob the worker process needs: database and
// queue connection settings, external-service endpoints, and the retry/
// backoff thresholds the job functions consult directly.
type Config struct {
	Database      DatabaseConfig
	Queue         QueueConfig
	External      ExternalConfig
	Worker        WorkerConfig
	Observability ObservabilityConfig
}

// Load seeds a Config with the defaults, overlays every environment
// variable that is set (env.Load leaves fields whose variable is unset
// untouched and validates each nested config struct as it loads), and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("config: load from environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Worker.ExecutorPoolSize == 0 {
		c.Worker.ExecutorPoolSize = 8
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2 * time.Second
	}
	if c.Worker.DefaultMaxRetries == 0 {
		c.Worker.DefaultMaxRetries = 3
	}
	if c.External.EnqueueBackoffAttemptLimit == 0 {
		c.External.EnqueueBackoffAttemptLimit = 5
	}
	if c.External.DefaultLDHSubmissionBatchSize == 0 {
		c.External.DefaultLDHSubmissionBatchSize = 50
	}
}

func (c *Config) validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	if err := c.External.Validate(); err != nil {
		return err
	}
	return c.Worker.Validate()
}
