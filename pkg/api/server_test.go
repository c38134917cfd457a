package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluginverse/storefront/pkg/audit"
	"github.com/pluginverse/storefront/pkg/auth"
	"github.com/pluginverse/storefront/pkg/catalog"
	"github.com/pluginverse/storefront/pkg/deposits"
	"github.com/pluginverse/storefront/pkg/ledger"
	"github.com/pluginverse/storefront/pkg/middleware"
	"github.com/pluginverse/storefront/pkg/purchases"
	"github.com/pluginverse/storefront/pkg/settings"
	"github.com/pluginverse/storefront/pkg/storage"
)

type testServer struct {
	server    *Server
	ledger    *ledger.Service
	deposits  *deposits.Service
	catalog   *catalog.Service
	purchases *purchases.Service

	admin *ledger.Account
	user  *ledger.Account
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := storage.Open(storage.Config{
		Driver:       "sqlite3",
		DSN:          "file:" + t.Name() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs, err := storage.NewFilesystemBlobStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	ldg := ledger.NewService(db)
	cat := catalog.NewService(db, blobs)
	dep := deposits.NewService(db, ldg)
	pur := purchases.NewService(db, ldg, cat)
	set := settings.NewService(db)
	aud := audit.NewStore(db)
	require.NoError(t, set.Seed(ctx))

	ts := &testServer{
		server: NewServer(Deps{
			Ledger:    ldg,
			Deposits:  dep,
			Catalog:   cat,
			Purchases: pur,
			Settings:  set,
			Audit:     aud,
			Blobs:     blobs,
		}),
		ledger:    ldg,
		deposits:  dep,
		catalog:   cat,
		purchases: pur,
	}

	ts.admin, err = ldg.CreateAccount(ctx, "admin", "admin@example.com", auth.RoleAdmin)
	require.NoError(t, err)
	ts.user, err = ldg.CreateAccount(ctx, "user", "user@example.com", auth.RoleStandard)
	require.NoError(t, err)

	return ts
}

func (ts *testServer) request(t *testing.T, method, target string, body interface{}, as *ledger.Account) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set(middleware.HeaderAccountID, as.ID)
		req.Header.Set(middleware.HeaderAccountRole, string(as.Role))
	}

	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (ts *testServer) seedPlugin(t *testing.T, name string, price int64) *catalog.Plugin {
	t.Helper()
	plugin, err := ts.catalog.Create(context.Background(), &catalog.CreateRequest{
		Name:        name,
		Price:       price,
		ArtifactRef: "",
	})
	require.NoError(t, err)
	return plugin
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "GET", "/api/accounts/me", nil, ts.user)
	require.Equal(t, http.StatusOK, rec.Code)

	account := decode[ledger.Account](t, rec)
	assert.Equal(t, ts.user.ID, account.ID)
	assert.Equal(t, int64(0), account.Balance)
	assert.NotNil(t, account.Entitlements)
}

func TestGetMeUnauthenticated(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "GET", "/api/accounts/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminListAccounts(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "GET", "/api/admin/accounts", nil, ts.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := decode[[]*ledger.Account](t, rec)
	assert.Len(t, accounts, 2)

	// The shared gate rejects non-admins before any side effect
	rec = ts.request(t, "GET", "/api/admin/accounts", nil, ts.user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.request(t, "GET", "/api/admin/accounts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDepositLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "POST", "/api/deposits", map[string]interface{}{
		"amount": 500, "method": "upi", "txn_ref": "X123",
	}, ts.user)
	require.Equal(t, http.StatusCreated, rec.Code)
	deposit := decode[deposits.Deposit](t, rec)
	assert.Equal(t, deposits.StatusPending, deposit.Status)

	// Admin sees it pending
	rec = ts.request(t, "GET", "/api/admin/deposits/pending", nil, ts.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]*deposits.Deposit](t, rec)
	require.Len(t, pending, 1)

	// Approve credits the account
	rec = ts.request(t, "POST", "/api/admin/deposits/"+deposit.ID+"/approve", nil, ts.admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, "GET", "/api/accounts/me", nil, ts.user)
	account := decode[ledger.Account](t, rec)
	assert.Equal(t, int64(500), account.Balance)

	// Second approval conflicts and must not credit again
	rec = ts.request(t, "POST", "/api/admin/deposits/"+deposit.ID+"/approve", nil, ts.admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.request(t, "GET", "/api/accounts/me", nil, ts.user)
	account = decode[ledger.Account](t, rec)
	assert.Equal(t, int64(500), account.Balance)

	// History shows the decision
	rec = ts.request(t, "GET", "/api/deposits/my", nil, ts.user)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]*deposits.Deposit](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, deposits.StatusApproved, mine[0].Status)
}

func TestDepositValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "POST", "/api/deposits", map[string]interface{}{
		"amount": -5, "method": "upi", "txn_ref": "X",
	}, ts.user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, "POST", "/api/deposits", map[string]interface{}{
		"amount": 100, "method": "paypal", "txn_ref": "X",
	}, ts.user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, "POST", "/api/deposits", map[string]interface{}{
		"amount": 100, "method": "upi", "txn_ref": "",
	}, ts.user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDepositModerationRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "POST", "/api/deposits", map[string]interface{}{
		"amount": 100, "method": "upi", "txn_ref": "X",
	}, ts.user)
	require.Equal(t, http.StatusCreated, rec.Code)
	deposit := decode[deposits.Deposit](t, rec)

	rec = ts.request(t, "POST", "/api/admin/deposits/"+deposit.ID+"/approve", nil, ts.user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Still pending: the gate blocked the side effect
	got, err := ts.deposits.Get(context.Background(), deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, deposits.StatusPending, got.Status)
}

func TestRejectDeposit(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "POST", "/api/deposits", map[string]interface{}{
		"amount": 100, "method": "jazzcash", "txn_ref": "J1",
	}, ts.user)
	require.Equal(t, http.StatusCreated, rec.Code)
	deposit := decode[deposits.Deposit](t, rec)

	rec = ts.request(t, "POST", "/api/admin/deposits/"+deposit.ID+"/reject", nil, ts.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	decided := decode[deposits.Deposit](t, rec)
	assert.Equal(t, deposits.StatusRejected, decided.Status)

	rec = ts.request(t, "GET", "/api/accounts/me", nil, ts.user)
	account := decode[ledger.Account](t, rec)
	assert.Equal(t, int64(0), account.Balance)
}

func TestPublicCatalog(t *testing.T) {
	ts := newTestServer(t)
	plugin := ts.seedPlugin(t, "browsable", 30)

	// Anonymous browsing works
	rec := ts.request(t, "GET", "/api/plugins", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plugins := decode[[]*catalog.Plugin](t, rec)
	require.Len(t, plugins, 1)

	rec = ts.request(t, "GET", "/api/plugins/"+plugin.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[catalog.Plugin](t, rec)
	assert.Equal(t, "browsable", got.Name)

	rec = ts.request(t, "GET", "/api/plugins/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCreatePluginJSON(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "POST", "/api/admin/plugins", map[string]interface{}{
		"name": "created", "description": "d", "price": 45,
	}, ts.admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	plugin := decode[catalog.Plugin](t, rec)
	assert.Equal(t, int64(45), plugin.Price)
	assert.Equal(t, int64(0), plugin.Downloads)

	rec = ts.request(t, "POST", "/api/admin/plugins", map[string]interface{}{
		"name": "bad", "price": -1,
	}, ts.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, "POST", "/api/admin/plugins", map[string]interface{}{
		"name": "nope", "price": 10,
	}, ts.user)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCreatePluginMultipart(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "uploaded"))
	require.NoError(t, mw.WriteField("price", "15"))
	fw, err := mw.CreateFormFile("artifact", "uploaded.zip")
	require.NoError(t, err)
	_, err = fw.Write([]byte("zip-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/admin/plugins", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.HeaderAccountID, ts.admin.ID)
	req.Header.Set(middleware.HeaderAccountRole, string(ts.admin.Role))

	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	plugin := decode[catalog.Plugin](t, rec)
	assert.Equal(t, "uploaded", plugin.Name)
	assert.Equal(t, int64(15), plugin.Price)
	assert.NotEmpty(t, plugin.ArtifactRef)
}

func TestAdminUpdateAndDeletePlugin(t *testing.T) {
	ts := newTestServer(t)
	plugin := ts.seedPlugin(t, "mutable", 30)

	rec := ts.request(t, "PUT", "/api/admin/plugins/"+plugin.ID, map[string]interface{}{
		"price": 99,
	}, ts.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[catalog.Plugin](t, rec)
	assert.Equal(t, int64(99), updated.Price)
	assert.Equal(t, "mutable", updated.Name)

	rec = ts.request(t, "DELETE", "/api/admin/plugins/"+plugin.ID, nil, ts.admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.request(t, "GET", "/api/plugins/"+plugin.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.request(t, "DELETE", "/api/admin/plugins/"+plugin.ID, nil, ts.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchaseFlow(t *testing.T) {
	ts := newTestServer(t)
	plugin := ts.seedPlugin(t, "buyable", 60)
	require.NoError(t, ts.ledger.Credit(context.Background(), ts.user.ID, 100))

	rec := ts.request(t, "POST", "/api/plugins/"+plugin.ID+"/purchase", nil, ts.user)
	require.Equal(t, http.StatusOK, rec.Code)
	receipt := decode[purchases.Receipt](t, rec)
	assert.Equal(t, int64(60), receipt.Price)
	assert.Equal(t, int64(40), receipt.Balance)

	// Already owned on repeat
	rec = ts.request(t, "POST", "/api/plugins/"+plugin.ID+"/purchase", nil, ts.user)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Insufficient funds for a second plugin
	second := ts.seedPlugin(t, "too-dear", 60)
	rec = ts.request(t, "POST", "/api/plugins/"+second.ID+"/purchase", nil, ts.user)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = ts.request(t, "POST", "/api/plugins/missing/purchase", nil, ts.user)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.request(t, "POST", "/api/plugins/"+plugin.ID+"/purchase", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDownload(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	plugin, err := ts.catalog.Create(ctx, &catalog.CreateRequest{
		Name:  "downloadable",
		Price: 10,
		Artifact: &catalog.Upload{
			Filename:    "tool.zip",
			ContentType: "application/zip",
			Content:     bytes.NewReader([]byte("artifact-bytes")),
		},
	})
	require.NoError(t, err)
	require.NoError(t, ts.ledger.Credit(ctx, ts.user.ID, 10))

	// Not entitled before purchase
	rec := ts.request(t, "GET", "/api/plugins/"+plugin.ID+"/download", nil, ts.user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.request(t, "POST", "/api/plugins/"+plugin.ID+"/purchase", nil, ts.user)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, "GET", "/api/plugins/"+plugin.ID+"/download", nil, ts.user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "artifact-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tool.zip")
}

func TestPaymentSettings(t *testing.T) {
	ts := newTestServer(t)

	// Seeded defaults are publicly readable
	rec := ts.request(t, "GET", "/api/payment-settings", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	values := decode[settings.Settings](t, rec)
	assert.NotEmpty(t, values[deposits.MethodUPI])

	rec = ts.request(t, "PUT", "/api/admin/payment-settings", map[string]string{
		"upi": "shop@upi",
	}, ts.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	values = decode[settings.Settings](t, rec)
	assert.Equal(t, "shop@upi", values[deposits.MethodUPI])

	rec = ts.request(t, "PUT", "/api/admin/payment-settings", map[string]string{
		"upi": "evil@upi",
	}, ts.user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.request(t, "PUT", "/api/admin/payment-settings", map[string]string{
		"venmo": "x",
	}, ts.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditTrail(t *testing.T) {
	ts := newTestServer(t)
	plugin := ts.seedPlugin(t, "tracked", 10)

	rec := ts.request(t, "DELETE", "/api/admin/plugins/"+plugin.ID, nil, ts.admin)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.request(t, "GET", "/api/admin/audit", nil, ts.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]*audit.Entry](t, rec)
	require.NotEmpty(t, entries)
	assert.Equal(t, audit.ActionPluginDelete, entries[0].Action)
	assert.Equal(t, ts.admin.ID, entries[0].ActorID)

	rec = ts.request(t, "GET", "/api/admin/audit", nil, ts.user)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "GET", "/api/plugins", nil, nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "GET", "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
