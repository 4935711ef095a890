package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/config"
)

// PostgresDB wraps the pgx connection pool.
type PostgresDB struct {
	Pool   *pgxpool.Pool
	logger *logrus.Logger
}

// NewPostgresConnection creates a connection pool and verifies it with a
// ping.
func NewPostgresConnection(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Logger) (*PostgresDB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host": cfg.Host,
		"db":   cfg.DBName,
	}).Info("Connected to PostgreSQL")

	return &PostgresDB{Pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (db *PostgresDB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
}
