package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schema statements are written in the dialect subset sqlite3 and postgres
// share. CHECK constraints are a backstop: the services enforce the same
// invariants with conditional UPDATEs before the database ever sees a
// violating value.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL UNIQUE,
		email      TEXT NOT NULL UNIQUE,
		balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		role       TEXT NOT NULL DEFAULT 'standard',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entitlements (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		plugin_id  TEXT NOT NULL,
		granted_at TIMESTAMP NOT NULL,
		PRIMARY KEY (account_id, plugin_id)
	)`,
	`CREATE TABLE IF NOT EXISTS plugins (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		price        BIGINT NOT NULL DEFAULT 0 CHECK (price >= 0),
		downloads    BIGINT NOT NULL DEFAULT 0 CHECK (downloads >= 0),
		logo_ref     TEXT NOT NULL DEFAULT '',
		artifact_ref TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMP NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS deposits (
		id         TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		amount     BIGINT NOT NULL CHECK (amount > 0),
		method     TEXT NOT NULL,
		txn_ref    TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		decided_by TEXT,
		decided_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deposits_account ON deposits(account_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_deposits_status ON deposits(status)`,
	`CREATE TABLE IF NOT EXISTS payment_settings (
		method     TEXT PRIMARY KEY,
		payee      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id          TEXT PRIMARY KEY,
		actor_id    TEXT NOT NULL,
		action      TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id   TEXT NOT NULL,
		detail      TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at)`,
}

// Migrate applies the schema, creating missing tables and indexes
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
