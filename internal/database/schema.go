package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		dampfi_email TEXT,
		dampfi_password TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		product_url TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		price NUMERIC(10,2),
		stock_status TEXT NOT NULL DEFAULT 'unknown',
		options JSONB NOT NULL DEFAULT '[]',
		image_path TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		total_price NUMERIC(10,2),
		items JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		confirmation_data JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_timestamp ON orders (user_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		target_stream TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ,
		next_retry_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_pending ON outbox_event (status, next_retry_at)`,
}

// InitSchema creates the tables if they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// SeedUsers makes sure the fixed operator accounts user1..userN exist.
func SeedUsers(ctx context.Context, db *sql.DB, count int) error {
	for i := 1; i <= count; i++ {
		username := fmt.Sprintf("user%d", i)
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, username, email) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			i, username, username+"@example.com")
		if err != nil {
			return fmt.Errorf("failed to seed user %d: %w", i, err)
		}
	}
	return nil
}
