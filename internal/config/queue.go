package config

import "errors"

// ErrRedisAddrRequired is returned when the Redis address is not configured.
var ErrRedisAddrRequired = errors.New("MAVEDB_WORKER_REDIS_ADDR is required")

// QueueConfig holds the Redis connection settings backing the Job Queue
// Gateway (queue.ClientConfig).
type QueueConfig struct {
	Addr        string `env:"MAVEDB_WORKER_REDIS_ADDR"`
	Password    string `env:"MAVEDB_WORKER_REDIS_PASSWORD"`
	DB          int    `env:"MAVEDB_WORKER_REDIS_DB"`
	DialTimeout int    `env:"MAVEDB_WORKER_REDIS_DIAL_TIMEOUT_SEC"` // seconds
}

// Validate validates the queue configuration.
func (c *QueueConfig) Validate() error {
	if c.Addr == "" {
		return ErrRedisAddrRequired
	}
	return nil
}
