// Package storage is the relational store behind the rating service and the
// recalculation tool. It supports MySQL (production), PostgreSQL and SQLite
// over database/sql and converts rows into typed records at this boundary.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "modernc.org/sqlite"             // sqlite driver

	"github.com/tuyosu/pprating/internal/config"
	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

// Store wraps a *sql.DB for one backend.
type Store struct {
	db           *sql.DB
	backend      string
	maxOpenConns int
	now          func() time.Time
	log          logger.Logger
}

// Open connects to backend using dsn and verifies the connection.
func Open(ctx context.Context, backend, dsn string, opts ...Option) (*Store, error) {
	s := &Store{
		backend:      backend,
		maxOpenConns: 16,
		now:          time.Now,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("storage")

	driver, err := driverName(backend)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, backend, err)
	}
	if backend == config.BackendSQLite {
		// Avoid "database is locked" and keep :memory: databases on one connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.maxOpenConns)
		db.SetMaxIdleConns(s.maxOpenConns)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: connect to %s: %w", ErrStorage, backend, err)
	}
	s.db = db
	s.log.Info(ctx, "connected", logger.String("backend", backend))
	return s, nil
}

func driverName(backend string) (string, error) {
	switch backend {
	case config.BackendMySQL:
		return "mysql", nil
	case config.BackendPostgres:
		return "pgx", nil
	case config.BackendSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStorage, err)
	}
	return nil
}

// Backend returns the configured backend name.
func (s *Store) Backend() string { return s.backend }

// DB exposes the pool for migrations and tests.
func (s *Store) DB() *sql.DB { return s.db }

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.backend != config.BackendPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fail wraps err as a storage failure and counts it.
func fail(op string, err error) error {
	metrics.RecordErrorByComponent("storage", op)
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
