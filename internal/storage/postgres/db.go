// Package postgres implements storage.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/leozw/uptime-engine/internal/core"
	"github.com/leozw/uptime-engine/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ storage.Store = (*DB)(nil)

const (
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	Migrate      bool
}

type DB struct {
	*sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

func Open(ctx context.Context, databaseURL string, opts Options, logger *zap.Logger) (*DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(opts.MaxIdleConns)
	}
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := New(conn, logger)
	if opts.Migrate {
		if err := db.Migrate(); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return db, nil
}

// New wraps an existing connection. Used directly by tests.
func New(conn *sqlx.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: conn, logger: logger, now: time.Now}
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db.DB.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	db.logger.Info("Database schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return core.NewStorageError("ping", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// translate maps driver errors onto the engine's error taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgForeignKeyViolation, pgInvalidText:
			return core.ErrNotFound
		}
	}
	return core.NewStorageError(op, err)
}
