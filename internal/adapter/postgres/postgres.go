// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"markme/internal/domain"

	_ "github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS users (id BIGSERIAL PRIMARY KEY, name TEXT NOT NULL DEFAULT '', email TEXT NOT NULL, password_hash TEXT NOT NULL DEFAULT '', role TEXT NOT NULL DEFAULT 'staff' CHECK(role IN ('admin','staff')), timezone TEXT NOT NULL DEFAULT '', working_hours TEXT NOT NULL DEFAULT '09:00', created_at TIMESTAMPTZ NOT NULL);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(lower(email));",
		"CREATE TABLE IF NOT EXISTS auth_sessions (token TEXT PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE, user_agent TEXT NOT NULL DEFAULT '', ip TEXT NOT NULL DEFAULT '', expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires_at ON auth_sessions(expires_at);",
		"CREATE TABLE IF NOT EXISTS attendance_sessions (id BIGSERIAL PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE, local_date DATE NOT NULL, timezone TEXT NOT NULL DEFAULT 'UTC', signed_in_at TIMESTAMPTZ, signed_out_at TIMESTAMPTZ, worked_hours DOUBLE PRECISION NOT NULL DEFAULT 0, created_at TIMESTAMPTZ NOT NULL, CHECK (signed_out_at IS NULL OR signed_in_at IS NULL OR signed_out_at >= signed_in_at));",
		"CREATE INDEX IF NOT EXISTS idx_attendance_user_date ON attendance_sessions(user_id, local_date);",
		"CREATE INDEX IF NOT EXISTS idx_attendance_user_signed_in ON attendance_sessions(user_id, signed_in_at);",
		// One absence placeholder per user per local day.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_absence_once ON attendance_sessions(user_id, local_date) WHERE signed_in_at IS NULL AND signed_out_at IS NULL;",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}
