package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pluginverse/storefront/pkg/audit"
	"github.com/pluginverse/storefront/pkg/httputil"
	"github.com/pluginverse/storefront/pkg/observability"
)

// AuditHandlers exposes the moderation audit trail to administrators
type AuditHandlers struct {
	audit  *audit.Store
	logger *observability.Logger
}

// NewAuditHandlers creates a new AuditHandlers
func NewAuditHandlers(store *audit.Store, logger *observability.Logger) *AuditHandlers {
	return &AuditHandlers{audit: store, logger: logger}
}

// RegisterRoutes registers audit routes
func (h *AuditHandlers) RegisterRoutes(admin *mux.Router) {
	admin.HandleFunc("/audit", h.listEntries).Methods("GET")
}

func (h *AuditHandlers) listEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteValidationError(w, "limit must be an integer")
		return
	}

	entries, err := h.audit.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	httputil.WriteSuccess(w, entries)
}
