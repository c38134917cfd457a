package purchases

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pluginverse/storefront/pkg/catalog"
	"github.com/pluginverse/storefront/pkg/errdefs"
	"github.com/pluginverse/storefront/pkg/ledger"
)

// CatalogInvalidator drops cached catalog entries after a purchase bumps a
// download counter
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, pluginID string)
}

// Receipt reports the outcome of a successful purchase
type Receipt struct {
	AccountID string    `json:"account_id"`
	PluginID  string    `json:"plugin_id"`
	Price     int64     `json:"price"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Service provides purchase and download authorization operations
type Service struct {
	db          *sql.DB
	ledger      *ledger.Service
	catalog     *catalog.Service
	invalidator CatalogInvalidator
}

// NewService creates a new purchase service
func NewService(db *sql.DB, ledger *ledger.Service, catalog *catalog.Service) *Service {
	return &Service{db: db, ledger: ledger, catalog: catalog}
}

// SetInvalidator installs a catalog cache invalidation hook
func (s *Service) SetInvalidator(inv CatalogInvalidator) {
	s.invalidator = inv
}

// Purchase debits the plugin's price from the account and grants the
// entitlement, bumping the plugin's download counter, all inside one
// transaction. The transaction serializes concurrent purchases on the same
// account: two borderline-funded attempts can never both debit.
func (s *Service) Purchase(ctx context.Context, accountID, pluginID string) (*Receipt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	receipt, err := s.purchase(ctx, tx, accountID, pluginID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			// A rollback failure after the debit step may leave a debit
			// without its entitlement observable. Never report that as an
			// ordinary purchase error.
			return nil, errdefs.Fatal("purchase", fmt.Errorf("rollback failed: %v after: %w", rbErr, err))
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, pluginID)
	}
	return receipt, nil
}

func (s *Service) purchase(ctx context.Context, tx *sql.Tx, accountID, pluginID string) (*Receipt, error) {
	plugin, err := s.catalog.GetTx(ctx, tx, pluginID)
	if err != nil {
		return nil, err
	}

	owned, err := s.ledger.HasEntitlementTx(ctx, tx, accountID, pluginID)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, fmt.Errorf("plugin %s: %w", pluginID, errdefs.ErrAlreadyOwned)
	}

	if plugin.Price > 0 {
		if err := s.ledger.DebitTx(ctx, tx, accountID, plugin.Price); err != nil {
			return nil, err
		}
	} else if _, err := s.ledger.GetAccountTx(ctx, tx, accountID); err != nil {
		// A free plugin skips the debit, so check the account explicitly
		return nil, err
	}

	if err := s.ledger.GrantTx(ctx, tx, accountID, pluginID); err != nil {
		return nil, err
	}
	if err := s.catalog.IncrementDownloadsTx(ctx, tx, pluginID); err != nil {
		return nil, err
	}

	var balance int64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = $1`, accountID,
	).Scan(&balance); err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	return &Receipt{
		AccountID: accountID,
		PluginID:  pluginID,
		Price:     plugin.Price,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// AuthorizeDownload returns the artifact reference iff the account is
// entitled to the plugin. Pure read, called on every download request.
func (s *Service) AuthorizeDownload(ctx context.Context, accountID, pluginID string) (string, error) {
	plugin, err := s.catalog.Get(ctx, pluginID)
	if err != nil {
		return "", err
	}

	owned, err := s.ledger.HasEntitlementTx(ctx, s.db, accountID, pluginID)
	if err != nil {
		return "", err
	}
	if !owned {
		return "", fmt.Errorf("plugin %s: %w", pluginID, errdefs.ErrNotEntitled)
	}

	return plugin.ArtifactRef, nil
}
