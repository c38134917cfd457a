package deposits

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluginverse/storefront/pkg/auth"
	"github.com/pluginverse/storefront/pkg/errdefs"
	"github.com/pluginverse/storefront/pkg/ledger"
	"github.com/pluginverse/storefront/pkg/storage"
)

type testEnv struct {
	deposits *Service
	ledger   *ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.Open(storage.Config{
		Driver:       "sqlite3",
		DSN:          "file:" + t.Name() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ldg := ledger.NewService(db)
	return &testEnv{
		deposits: NewService(db, ldg),
		ledger:   ldg,
	}
}

func (e *testEnv) account(t *testing.T, username string) *ledger.Account {
	t.Helper()
	account, err := e.ledger.CreateAccount(context.Background(), username, username+"@example.com", auth.RoleStandard)
	require.NoError(t, err)
	return account
}

func TestSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, "alice")

	deposit, err := env.deposits.Submit(ctx, account.ID, 500, MethodUPI, "X123")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, deposit.Status)
	assert.Equal(t, int64(500), deposit.Amount)
	assert.Nil(t, deposit.DecidedBy)

	// Submission never credits the ledger
	got, err := env.ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Balance)
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, "bob")

	_, err := env.deposits.Submit(ctx, account.ID, 0, MethodUPI, "ref")
	assert.ErrorIs(t, err, errdefs.ErrInvalidAmount)

	_, err = env.deposits.Submit(ctx, account.ID, -10, MethodUPI, "ref")
	assert.ErrorIs(t, err, errdefs.ErrInvalidAmount)

	_, err = env.deposits.Submit(ctx, account.ID, 100, Method("paypal"), "ref")
	assert.ErrorIs(t, err, errdefs.ErrInvalidMethod)

	_, err = env.deposits.Submit(ctx, account.ID, 100, MethodJazzcash, "")
	assert.Error(t, err)

	_, err = env.deposits.Submit(ctx, "missing", 100, MethodEasypaisa, "ref")
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestApproveCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, "carol")

	deposit, err := env.deposits.Submit(ctx, account.ID, 500, MethodUPI, "X123")
	require.NoError(t, err)

	decided, err := env.deposits.Approve(ctx, deposit.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, "admin-1", *decided.DecidedBy)
	assert.NotNil(t, decided.DecidedAt)

	got, err := env.ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Balance)

	// Re-approval of a decided deposit never credits a second time
	_, err = env.deposits.Approve(ctx, deposit.ID, "admin-1")
	assert.ErrorIs(t, err, errdefs.ErrInvalidState)

	got, err = env.ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Balance)
}

func TestRejectHasNoLedgerEffect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, "dave")

	deposit, err := env.deposits.Submit(ctx, account.ID, 300, MethodJazzcash, "J9")
	require.NoError(t, err)

	decided, err := env.deposits.Reject(ctx, deposit.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, decided.Status)

	got, err := env.ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Balance)

	// Both terminal states refuse further transitions
	_, err = env.deposits.Approve(ctx, deposit.ID, "admin-1")
	assert.ErrorIs(t, err, errdefs.ErrInvalidState)
}

func TestRejectAfterApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, "eve")

	deposit, err := env.deposits.Submit(ctx, account.ID, 100, MethodUPI, "U1")
	require.NoError(t, err)

	_, err = env.deposits.Approve(ctx, deposit.ID, "admin-1")
	require.NoError(t, err)

	_, err = env.deposits.Reject(ctx, deposit.ID, "admin-2")
	assert.ErrorIs(t, err, errdefs.ErrInvalidState)
}

func TestDecideUnknownDeposit(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.deposits.Approve(context.Background(), "missing", "admin-1")
	assert.ErrorIs(t, err, errdefs.ErrNotFound)

	_, err = env.deposits.Reject(context.Background(), "missing", "admin-1")
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestConcurrentApprovals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, "frank")

	deposit, err := env.deposits.Submit(ctx, account.ID, 250, MethodEasypaisa, "E7")
	require.NoError(t, err)

	// Racing decisions on one deposit: exactly one wins, one credit only
	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.deposits.Approve(ctx, deposit.ID, "admin-1")
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, errdefs.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := env.ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.Balance)
}

func TestListPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, "grace")

	first, err := env.deposits.Submit(ctx, account.ID, 100, MethodUPI, "U1")
	require.NoError(t, err)
	second, err := env.deposits.Submit(ctx, account.ID, 200, MethodUPI, "U2")
	require.NoError(t, err)

	_, err = env.deposits.Reject(ctx, second.ID, "admin-1")
	require.NoError(t, err)

	pending, err := env.deposits.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	count, err := env.deposits.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListForAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mine := env.account(t, "heidi")
	other := env.account(t, "ivan")

	_, err := env.deposits.Submit(ctx, mine.ID, 100, MethodUPI, "U1")
	require.NoError(t, err)
	d2, err := env.deposits.Submit(ctx, mine.ID, 200, MethodUPI, "U2")
	require.NoError(t, err)
	_, err = env.deposits.Submit(ctx, other.ID, 300, MethodUPI, "U3")
	require.NoError(t, err)

	_, err = env.deposits.Approve(ctx, d2.ID, "admin-1")
	require.NoError(t, err)

	// All states, own account only
	mineList, err := env.deposits.ListForAccount(ctx, mine.ID)
	require.NoError(t, err)
	assert.Len(t, mineList, 2)
	for _, d := range mineList {
		assert.Equal(t, mine.ID, d.AccountID)
	}
}
