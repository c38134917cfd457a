package deposits

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pluginverse/storefront/pkg/errdefs"
	"github.com/pluginverse/storefront/pkg/ledger"
	"github.com/pluginverse/storefront/pkg/storage"
)

// Service provides deposit workflow operations
type Service struct {
	db     *sql.DB
	ledger *ledger.Service
}

// NewService creates a new deposit service
func NewService(db *sql.DB, ledger *ledger.Service) *Service {
	return &Service{db: db, ledger: ledger}
}

// Submit creates a deposit request in Pending. It never touches the ledger.
func (s *Service) Submit(ctx context.Context, accountID string, amount int64, method Method, txnRef string) (*Deposit, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive: %w", errdefs.ErrInvalidAmount)
	}
	if !ValidMethod(method) {
		return nil, fmt.Errorf("payment method %q: %w", method, errdefs.ErrInvalidMethod)
	}
	if txnRef == "" {
		return nil, fmt.Errorf("transaction reference is required")
	}

	// The account must exist before a claim against it is accepted
	if _, err := s.ledger.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	deposit := &Deposit{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Amount:    amount,
		Method:    method,
		TxnRef:    txnRef,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deposits (id, account_id, amount, method, txn_ref, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		deposit.ID, deposit.AccountID, deposit.Amount, deposit.Method,
		deposit.TxnRef, deposit.Status, deposit.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}

	return deposit, nil
}

// Approve transitions a Pending deposit to Approved and credits the owning
// account, both inside one transaction. A deposit that already left Pending
// reports InvalidState and never credits a second time.
func (s *Service) Approve(ctx context.Context, depositID, adminID string) (*Deposit, error) {
	return s.decide(ctx, depositID, adminID, StatusApproved)
}

// Reject transitions a Pending deposit to Rejected. No ledger effect.
func (s *Service) Reject(ctx context.Context, depositID, adminID string) (*Deposit, error) {
	return s.decide(ctx, depositID, adminID, StatusRejected)
}

func (s *Service) decide(ctx context.Context, depositID, adminID string, to Status) (*Deposit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deposit, err := s.getTx(ctx, tx, depositID)
	if err != nil {
		return nil, err
	}

	decidedAt := time.Now().UTC()

	// The status guard in the UPDATE serializes concurrent decisions on the
	// same deposit: whichever commits first wins, the loser sees zero rows.
	res, err := tx.ExecContext(ctx,
		`UPDATE deposits SET status = $1, decided_by = $2, decided_at = $3
		 WHERE id = $4 AND status = $5`,
		to, adminID, decidedAt, depositID, StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update deposit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("deposit %s is %s: %w", depositID, deposit.Status, errdefs.ErrInvalidState)
	}

	if to == StatusApproved {
		if err := s.ledger.CreditTx(ctx, tx, deposit.AccountID, deposit.Amount); err != nil {
			return nil, fmt.Errorf("failed to credit account for deposit %s: %w", depositID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit decision: %w", err)
	}

	deposit.Status = to
	deposit.DecidedBy = &adminID
	deposit.DecidedAt = &decidedAt
	return deposit, nil
}

// Get retrieves a single deposit
func (s *Service) Get(ctx context.Context, id string) (*Deposit, error) {
	return s.getTx(ctx, s.db, id)
}

func (s *Service) getTx(ctx context.Context, q storage.DBTX, id string) (*Deposit, error) {
	var d Deposit
	err := q.QueryRowContext(ctx,
		`SELECT id, account_id, amount, method, txn_ref, status, decided_by, decided_at, created_at
		 FROM deposits WHERE id = $1`, id,
	).Scan(&d.ID, &d.AccountID, &d.Amount, &d.Method, &d.TxnRef,
		&d.Status, &d.DecidedBy, &d.DecidedAt, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("deposit %s: %w", id, errdefs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return &d, nil
}

// ListPending returns every deposit awaiting moderation, oldest first
func (s *Service) ListPending(ctx context.Context) ([]*Deposit, error) {
	return s.list(ctx,
		`SELECT id, account_id, amount, method, txn_ref, status, decided_by, decided_at, created_at
		 FROM deposits WHERE status = $1 ORDER BY created_at`, StatusPending)
}

// ListForAccount returns every deposit belonging to one account, any state,
// newest first
func (s *Service) ListForAccount(ctx context.Context, accountID string) ([]*Deposit, error) {
	return s.list(ctx,
		`SELECT id, account_id, amount, method, txn_ref, status, decided_by, decided_at, created_at
		 FROM deposits WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
}

func (s *Service) list(ctx context.Context, query string, args ...interface{}) ([]*Deposit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits: %w", err)
	}
	defer rows.Close()

	deposits := []*Deposit{}
	for rows.Next() {
		var d Deposit
		if err := rows.Scan(&d.ID, &d.AccountID, &d.Amount, &d.Method, &d.TxnRef,
			&d.Status, &d.DecidedBy, &d.DecidedAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, &d)
	}
	return deposits, rows.Err()
}

// PendingCount returns the number of deposits awaiting moderation
func (s *Service) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deposits WHERE status = $1`, StatusPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending deposits: %w", err)
	}
	return count, nil
}
