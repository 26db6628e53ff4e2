package config

import (
	"fmt"
	"time"
)

// WorkerConfig holds worker sizing knobs: how many blocking calls the
// executor pool runs at once, how often the loop polls each queue when
// idle, and the retry budget given to the follow-on JobRuns that job
// functions chain.
type WorkerConfig struct {
	ExecutorPoolSize  int           `env:"MAVEDB_WORKER_EXECUTOR_POOL_SIZE"`
	PollInterval      time.Duration `env:"MAVEDB_WORKER_POLL_INTERVAL"`
	DefaultMaxRetries int           `env:"MAVEDB_WORKER_DEFAULT_MAX_RETRIES"`
}

// Validate validates the worker configuration.
func (c *WorkerConfig) Validate() error {
	if c.ExecutorPoolSize < 1 {
		return fmt.Errorf("MAVEDB_WORKER_EXECUTOR_POOL_SIZE must be > 0, got %d", c.ExecutorPoolSize)
	}
	if c.DefaultMaxRetries < 0 {
		return fmt.Errorf("MAVEDB_WORKER_DEFAULT_MAX_RETRIES must be >= 0, got %d", c.DefaultMaxRetries)
	}
	return nil
}
