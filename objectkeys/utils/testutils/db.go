package testutils

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbConfig struct {
	Username string `env:"DB_USERNAME" envDefault:"devel"`
	Password string `env:"DB_PASSWORD" envDefault:"devel"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	Database string `env:"DB_DATABASE" envDefault:"devel_objectkeys"`
}

// NewPgxPool connects to the database described by the DB_* environment
// variables, falling back to local development defaults.
func NewPgxPool() (*pgxpool.Pool, error) {
	var cfg dbConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)

	return pgxpool.New(context.Background(), connString)
}
