package config

import "errors"

// ErrDSNRequired is returned when the Postgres DSN is not configured.
var ErrDSNRequired = errors.New("MAVEDB_WORKER_DB_DSN is required")

// DatabaseConfig holds pgxpool connection settings for the Persistence
// Gateway.
type DatabaseConfig struct {
	DSN string `env:"MAVEDB_WORKER_DB_DSN"`

	MaxOpenConns    int `env:"MAVEDB_WORKER_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int `env:"MAVEDB_WORKER_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime int `env:"MAVEDB_WORKER_DB_CONN_MAX_LIFETIME_SEC"` // seconds
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return ErrDSNRequired
	}
	return nil
}
