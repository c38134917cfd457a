package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pluginverse/storefront/pkg/httputil"
	"github.com/pluginverse/storefront/pkg/ledger"
	"github.com/pluginverse/storefront/pkg/middleware"
	"github.com/pluginverse/storefront/pkg/observability"
)

// AccountHandlers serves account state to its owner and listings to admins
type AccountHandlers struct {
	ledger *ledger.Service
}

// NewAccountHandlers creates a new AccountHandlers
func NewAccountHandlers(ledger *ledger.Service) *AccountHandlers {
	return &AccountHandlers{ledger: ledger}
}

// RegisterRoutes registers account routes
func (h *AccountHandlers) RegisterRoutes(authed, admin *mux.Router) {
	authed.HandleFunc("/accounts/me", h.getMe).Methods("GET")
	admin.HandleFunc("/accounts", h.listAccounts).Methods("GET")
}

func (h *AccountHandlers) getMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	account, err := h.ledger.GetAccount(r.Context(), identity.AccountID)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	httputil.WriteSuccess(w, account)
}

func (h *AccountHandlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.ListAccounts(r.Context())
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	httputil.WriteSuccess(w, accounts)
}
