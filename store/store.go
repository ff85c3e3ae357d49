package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// IdentityContext identifies the caller on operations that need
// authorization decisions. It is passed by value; the core never
// consults process-wide current-user state.
type IdentityContext struct {
	UserID  int64
	IsAdmin bool
}

// DB wraps the shared Postgres handle. One instance is shared by the
// API surface, the pipeline workers and the exporter.
type DB struct {
	sql *sql.DB
}

func Open(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("error creating postgres connection: %w", err)
	}

	// Without this, we've run into issues with exceeding our open connection limit
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return &DB{sql: db}, nil
}

// NewWithDB wraps an existing handle; used by tests with sqlmock.
func NewWithDB(db *sql.DB) *DB {
	return &DB{sql: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS videos (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	genre TEXT NOT NULL DEFAULT '',
	source_key TEXT NOT NULL,
	duration BIGINT,
	thumbnail_key TEXT NOT NULL DEFAULT '',
	hls_master_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'PENDING',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_watch_history (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	video_id BIGINT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	progress_seconds BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, video_id)
);
`

// EnsureSchema creates the tables on startup if they are missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	_, err := d.sql.ExecContext(ctx, schema)
	return err
}

func (d *DB) Close() error {
	return d.sql.Close()
}
