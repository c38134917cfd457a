package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pluginverse/storefront/pkg/audit"
	"github.com/pluginverse/storefront/pkg/deposits"
	"github.com/pluginverse/storefront/pkg/httputil"
	"github.com/pluginverse/storefront/pkg/middleware"
	"github.com/pluginverse/storefront/pkg/observability"
)

// DepositHandlers serves the deposit workflow: user submissions and history,
// admin moderation
type DepositHandlers struct {
	deposits *deposits.Service
	audit    *audit.Store
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewDepositHandlers creates a new DepositHandlers
func NewDepositHandlers(svc *deposits.Service, auditStore *audit.Store, logger *observability.Logger, metrics *observability.Metrics) *DepositHandlers {
	return &DepositHandlers{deposits: svc, audit: auditStore, logger: logger, metrics: metrics}
}

// RegisterRoutes registers deposit routes
func (h *DepositHandlers) RegisterRoutes(authed, admin *mux.Router) {
	authed.HandleFunc("/deposits", h.submitDeposit).Methods("POST")
	authed.HandleFunc("/deposits/my", h.listMyDeposits).Methods("GET")

	admin.HandleFunc("/deposits/pending", h.listPending).Methods("GET")
	admin.HandleFunc("/deposits/{id}/approve", h.approveDeposit).Methods("POST")
	admin.HandleFunc("/deposits/{id}/reject", h.rejectDeposit).Methods("POST")
}

func (h *DepositHandlers) submitDeposit(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	var body struct {
		Amount int64  `json:"amount"`
		Method string `json:"method"`
		TxnRef string `json:"txn_ref"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if !httputil.RequirePositive(w, body.Amount, "amount") {
		return
	}
	if !httputil.RequireNonEmpty(w, body.TxnRef, "txn_ref") {
		return
	}

	deposit, err := h.deposits.Submit(r.Context(), identity.AccountID, body.Amount, deposits.Method(body.Method), body.TxnRef)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}

	h.metrics.DepositsTotal.WithLabelValues("submitted").Inc()
	httputil.WriteCreated(w, deposit)
}

func (h *DepositHandlers) listMyDeposits(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	list, err := h.deposits.ListForAccount(r.Context(), identity.AccountID)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (h *DepositHandlers) listPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.deposits.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	httputil.WriteSuccess(w, pending)
}

func (h *DepositHandlers) approveDeposit(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *DepositHandlers) rejectDeposit(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *DepositHandlers) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	identity := middleware.GetIdentity(r)

	var deposit *deposits.Deposit
	var err error
	if approve {
		deposit, err = h.deposits.Approve(r.Context(), id, identity.AccountID)
	} else {
		deposit, err = h.deposits.Reject(r.Context(), id, identity.AccountID)
	}
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}

	action := audit.ActionDepositReject
	outcome := "rejected"
	if approve {
		action = audit.ActionDepositApprove
		outcome = "approved"
		h.metrics.CoinsCreditedTotal.Add(float64(deposit.Amount))
	}
	h.metrics.DepositsTotal.WithLabelValues(outcome).Inc()

	detail := fmt.Sprintf("account=%s amount=%d method=%s", deposit.AccountID, deposit.Amount, deposit.Method)
	if err := h.audit.Record(r.Context(), identity.AccountID, action, "deposit", deposit.ID, detail); err != nil {
		h.logger.WithError(err).Warn("failed to record audit entry")
	}

	httputil.WriteSuccess(w, deposit)
}
