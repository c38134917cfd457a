package api

import (
	"errors"
	"net/http"

	"github.com/pluginverse/storefront/pkg/errdefs"
	"github.com/pluginverse/storefront/pkg/httputil"
	"github.com/pluginverse/storefront/pkg/observability"
)

// writeServiceError translates the engine's error taxonomy into an HTTP
// response. Fatal inconsistencies are logged and returned with a distinct
// code so they are never confused with an ordinary user error.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error) {
	if errdefs.IsFatal(err) {
		logger.WithError(err).
			WithField("path", r.URL.Path).
			WithField("request_id", httputil.RequestIDFromContext(r.Context())).
			Error("fatal inconsistency")
		httputil.WriteErrorCode(w, http.StatusInternalServerError, "internal inconsistency, contact support", "fatal")
		return
	}

	switch {
	case errors.Is(err, errdefs.ErrInvalidAmount), errors.Is(err, errdefs.ErrInvalidMethod):
		httputil.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, errdefs.ErrUnauthenticated):
		httputil.WriteUnauthorized(w, err.Error())
	case errors.Is(err, errdefs.ErrInsufficientFunds):
		httputil.WriteError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, errdefs.ErrForbidden), errors.Is(err, errdefs.ErrNotEntitled):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, errdefs.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, errdefs.ErrInvalidState), errors.Is(err, errdefs.ErrConflict), errors.Is(err, errdefs.ErrAlreadyOwned):
		httputil.WriteConflict(w, err.Error())
	default:
		logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		httputil.WriteInternalError(w, err)
	}
}
