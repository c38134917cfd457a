package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/mux"

	"github.com/pluginverse/storefront/pkg/errdefs"
	"github.com/pluginverse/storefront/pkg/httputil"
	"github.com/pluginverse/storefront/pkg/middleware"
	"github.com/pluginverse/storefront/pkg/observability"
	"github.com/pluginverse/storefront/pkg/purchases"
	"github.com/pluginverse/storefront/pkg/storage"
)

// PurchaseHandlers serves purchases and entitlement-gated downloads
type PurchaseHandlers struct {
	purchases *purchases.Service
	blobs     storage.BlobStore
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewPurchaseHandlers creates a new PurchaseHandlers
func NewPurchaseHandlers(svc *purchases.Service, blobs storage.BlobStore, logger *observability.Logger, metrics *observability.Metrics) *PurchaseHandlers {
	return &PurchaseHandlers{purchases: svc, blobs: blobs, logger: logger, metrics: metrics}
}

// RegisterRoutes registers purchase routes
func (h *PurchaseHandlers) RegisterRoutes(authed *mux.Router) {
	authed.HandleFunc("/plugins/{id}/purchase", h.purchase).Methods("POST")
	authed.HandleFunc("/plugins/{id}/download", h.download).Methods("GET")
}

func (h *PurchaseHandlers) purchase(w http.ResponseWriter, r *http.Request) {
	pluginID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	identity := middleware.GetIdentity(r)

	receipt, err := h.purchases.Purchase(r.Context(), identity.AccountID, pluginID)
	if err != nil {
		h.metrics.PurchasesTotal.WithLabelValues(purchaseOutcome(err)).Inc()
		if errdefs.IsFatal(err) {
			h.metrics.FatalInconsistencies.Inc()
		}
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}

	h.metrics.PurchasesTotal.WithLabelValues("success").Inc()
	h.metrics.CoinsDebitedTotal.Add(float64(receipt.Price))
	httputil.WriteSuccess(w, receipt)
}

func (h *PurchaseHandlers) download(w http.ResponseWriter, r *http.Request) {
	pluginID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	identity := middleware.GetIdentity(r)

	ref, err := h.purchases.AuthorizeDownload(r.Context(), identity.AccountID, pluginID)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	if ref == "" {
		httputil.WriteNotFoundError(w, "plugin has no artifact")
		return
	}
	h.metrics.DownloadsAuthorized.Inc()

	rc, err := h.blobs.Get(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(ref)))
	if _, err := io.Copy(w, rc); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("artifact stream interrupted")
	}
}

func purchaseOutcome(err error) string {
	switch {
	case errors.Is(err, errdefs.ErrAlreadyOwned):
		return "already_owned"
	case errors.Is(err, errdefs.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, errdefs.ErrNotFound):
		return "not_found"
	case errdefs.IsFatal(err):
		return "fatal"
	default:
		return "error"
	}
}

// downloadName derives a user-facing filename from an opaque blob reference.
// Filesystem refs look like "artifacts/<uuid>_<name>", S3 refs like
// "s3://bucket/artifacts/<uuid>_<name>".
func downloadName(ref string) string {
	base := path.Base(ref)
	if i := strings.Index(base, "_"); i >= 0 && i+1 < len(base) {
		return base[i+1:]
	}
	return base
}
