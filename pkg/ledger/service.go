package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pluginverse/storefront/pkg/auth"
	"github.com/pluginverse/storefront/pkg/errdefs"
	"github.com/pluginverse/storefront/pkg/storage"
)

// Service provides account and balance operations
type Service struct {
	db *sql.DB
}

// NewService creates a new ledger service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateAccount registers a new account with a zero balance and an empty
// entitlement set
func (s *Service) CreateAccount(ctx context.Context, username, email string, role auth.Role) (*Account, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if role == "" {
		role = auth.RoleStandard
	}

	account := &Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Balance:      0,
		Role:         role,
		Entitlements: []string{},
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, balance, role, created_at)
		 VALUES ($1, $2, $3, 0, $4, $5)`,
		account.ID, account.Username, account.Email, account.Role, account.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// GetAccount retrieves an account with its entitlement set
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	account, err := s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, balance, role, created_at
		 FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	account.Entitlements, err = s.Entitlements(ctx, id)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccountTx retrieves an account inside a caller-owned transaction,
// without its entitlement set
func (s *Service) GetAccountTx(ctx context.Context, q storage.DBTX, id string) (*Account, error) {
	return s.scanAccount(q.QueryRowContext(ctx,
		`SELECT id, username, email, balance, role, created_at
		 FROM accounts WHERE id = $1`, id))
}

// GetAccountByEmail retrieves an account by email address
func (s *Service) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	account, err := s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, balance, role, created_at
		 FROM accounts WHERE email = $1`, email))
	if err != nil {
		return nil, err
	}

	account.Entitlements, err = s.Entitlements(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts lists all accounts, without entitlement sets
func (s *Service) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, email, balance, role, created_at
		 FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Username, &a.Email, &a.Balance, &a.Role, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// Credit increases an account's balance by amount
func (s *Service) Credit(ctx context.Context, accountID string, amount int64) error {
	return s.CreditTx(ctx, s.db, accountID, amount)
}

// CreditTx runs Credit against a caller-owned transaction
func (s *Service) CreditTx(ctx context.Context, q storage.DBTX, accountID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive: %w", errdefs.ErrInvalidAmount)
	}

	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2`,
		amount, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read credit result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account %s: %w", accountID, errdefs.ErrNotFound)
	}
	return nil
}

// Debit decreases an account's balance by amount iff the balance covers it
func (s *Service) Debit(ctx context.Context, accountID string, amount int64) error {
	return s.DebitTx(ctx, s.db, accountID, amount)
}

// DebitTx runs Debit against a caller-owned transaction. The balance guard
// lives in the UPDATE itself so concurrent debits on the same account can
// never interleave into a negative balance.
func (s *Service) DebitTx(ctx context.Context, q storage.DBTX, accountID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive: %w", errdefs.ErrInvalidAmount)
	}

	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE id = $2 AND balance >= $1`,
		amount, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read debit result: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows: distinguish a missing account from a short balance
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if !exists {
		return fmt.Errorf("account %s: %w", accountID, errdefs.ErrNotFound)
	}
	return fmt.Errorf("account %s: %w", accountID, errdefs.ErrInsufficientFunds)
}

// Entitlements lists the plugin ids the account is entitled to
func (s *Service) Entitlements(ctx context.Context, accountID string) ([]string, error) {
	return s.EntitlementsTx(ctx, s.db, accountID)
}

// EntitlementsTx runs Entitlements against a caller-owned transaction
func (s *Service) EntitlementsTx(ctx context.Context, q storage.DBTX, accountID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT plugin_id FROM entitlements WHERE account_id = $1 ORDER BY granted_at`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entitlements: %w", err)
	}
	defer rows.Close()

	entitlements := []string{}
	for rows.Next() {
		var pluginID string
		if err := rows.Scan(&pluginID); err != nil {
			return nil, fmt.Errorf("failed to scan entitlement: %w", err)
		}
		entitlements = append(entitlements, pluginID)
	}
	return entitlements, rows.Err()
}

// HasEntitlementTx reports whether the account owns the plugin
func (s *Service) HasEntitlementTx(ctx context.Context, q storage.DBTX, accountID, pluginID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM entitlements WHERE account_id = $1 AND plugin_id = $2)`,
		accountID, pluginID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check entitlement: %w", err)
	}
	return exists, nil
}

// GrantTx adds a plugin to the account's entitlement set. The composite
// primary key makes a duplicate grant fail rather than double-insert.
func (s *Service) GrantTx(ctx context.Context, q storage.DBTX, accountID, pluginID string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO entitlements (account_id, plugin_id, granted_at) VALUES ($1, $2, $3)`,
		accountID, pluginID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to grant entitlement: %w", err)
	}
	return nil
}

func (s *Service) scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.Balance, &a.Role, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account: %w", errdefs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}
