package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Database drivers registered by side effect
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Config for the storage layer
type Config struct {
	// Relational database
	Driver       string // "sqlite3" or "postgres"
	DSN          string
	MaxOpenConns int

	// Blob store
	BlobBackend    string // "filesystem" or "s3"
	BlobRoot       string
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Catalog cache
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:       "sqlite3",
		DSN:          "file:storefront.db?_fk=1",
		MaxOpenConns: 20,
		BlobBackend:  "filesystem",
		BlobRoot:     "/var/lib/storefront/blobs",
		S3Region:     "us-east-1",
		CacheEnabled: false,
	}
}

// DBTX is the subset of *sql.DB and *sql.Tx the services operate on, so a
// statement can run standalone or inside a caller-owned transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open connects to the configured database and applies the schema
func Open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
