package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type DB struct {
	*sql.DB
}

func NewConnection(ctx context.Context, host, port, user, password, dbname string, log *zap.Logger) (*DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password != "" {
		psqlInfo += fmt.Sprintf(" password=%s", password)
	}

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connection established", zap.String("host", host), zap.String("dbname", dbname))

	return &DB{db}, nil
}

// RunMigrations applies every schema migration in order. Each one is
// idempotent, so running them against an up-to-date database is a no-op.
func (db *DB) RunMigrations(ctx context.Context, log *zap.Logger) error {
	log.Info("running database migrations")

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to run %s migration: %w", m.name, err)
		}
		log.Info("migration applied", zap.String("name", m.name))
	}

	log.Info("migrations completed successfully")
	return nil
}
