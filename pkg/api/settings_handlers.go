package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pluginverse/storefront/pkg/audit"
	"github.com/pluginverse/storefront/pkg/httputil"
	"github.com/pluginverse/storefront/pkg/middleware"
	"github.com/pluginverse/storefront/pkg/observability"
	"github.com/pluginverse/storefront/pkg/settings"
)

// SettingsHandlers serves the published payee identifiers
type SettingsHandlers struct {
	settings *settings.Service
	audit    *audit.Store
	logger   *observability.Logger
}

// NewSettingsHandlers creates a new SettingsHandlers
func NewSettingsHandlers(svc *settings.Service, auditStore *audit.Store, logger *observability.Logger) *SettingsHandlers {
	return &SettingsHandlers{settings: svc, audit: auditStore, logger: logger}
}

// RegisterRoutes registers settings routes
func (h *SettingsHandlers) RegisterRoutes(public, admin *mux.Router) {
	public.HandleFunc("/payment-settings", h.getSettings).Methods("GET")
	admin.HandleFunc("/payment-settings", h.updateSettings).Methods("PUT")
}

func (h *SettingsHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	httputil.WriteSuccess(w, values)
}

func (h *SettingsHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	var values settings.Settings
	if !httputil.ParseJSONOrError(w, r, &values) {
		return
	}
	if len(values) == 0 {
		httputil.WriteValidationError(w, "no settings provided")
		return
	}

	updated, err := h.settings.Update(r.Context(), values)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}

	identity := middleware.GetIdentity(r)
	if err := h.audit.Record(r.Context(), identity.AccountID, audit.ActionSettingsUpdate, "settings", "payment", ""); err != nil {
		h.logger.WithError(err).Warn("failed to record audit entry")
	}

	httputil.WriteSuccess(w, updated)
}
