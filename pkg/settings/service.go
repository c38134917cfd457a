package settings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pluginverse/storefront/pkg/deposits"
	"github.com/pluginverse/storefront/pkg/errdefs"
)

// Settings maps each payment method to its published payee identifier
type Settings map[deposits.Method]string

// Defaults installed at startup for methods with no stored value
var Defaults = Settings{
	deposits.MethodEasypaisa: "0300-0000000",
	deposits.MethodJazzcash:  "0300-0000000",
	deposits.MethodUPI:       "storefront@upi",
}

// Service provides payment settings operations
type Service struct {
	db *sql.DB
}

// NewService creates a new settings service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Get returns the stored payee identifiers keyed by method
func (s *Service) Get(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT method, payee FROM payment_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment settings: %w", err)
	}
	defer rows.Close()

	settings := Settings{}
	for rows.Next() {
		var method deposits.Method
		var payee string
		if err := rows.Scan(&method, &payee); err != nil {
			return nil, fmt.Errorf("failed to scan payment setting: %w", err)
		}
		settings[method] = payee
	}
	return settings, rows.Err()
}

// Update upserts payee identifiers for the given methods, last write wins.
// Methods absent from values are left untouched.
func (s *Service) Update(ctx context.Context, values Settings) (Settings, error) {
	for method, payee := range values {
		if !deposits.ValidMethod(method) {
			return nil, fmt.Errorf("payment method %q: %w", method, errdefs.ErrInvalidMethod)
		}
		if payee == "" {
			return nil, fmt.Errorf("payee for %s must not be empty", method)
		}
	}

	now := time.Now().UTC()
	for method, payee := range values {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO payment_settings (method, payee, updated_at) VALUES ($1, $2, $3)
			 ON CONFLICT (method) DO UPDATE SET payee = $2, updated_at = $3`,
			method, payee, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update payment setting for %s: %w", method, err)
		}
	}

	return s.Get(ctx)
}

// Seed installs default payee identifiers for methods with no stored value
func (s *Service) Seed(ctx context.Context) error {
	now := time.Now().UTC()
	for method, payee := range Defaults {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO payment_settings (method, payee, updated_at) VALUES ($1, $2, $3)
			 ON CONFLICT (method) DO NOTHING`,
			method, payee, now,
		)
		if err != nil {
			return fmt.Errorf("failed to seed payment setting for %s: %w", method, err)
		}
	}
	return nil
}
