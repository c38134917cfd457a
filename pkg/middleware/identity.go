package middleware

import (
	"context"
	"net/http"

	"github.com/pluginverse/storefront/pkg/auth"
	"github.com/pluginverse/storefront/pkg/contextkeys"
	"github.com/pluginverse/storefront/pkg/httputil"
)

const (
	// HeaderAccountID carries the validated account id from the auth layer
	HeaderAccountID = "X-Account-ID"
	// HeaderAccountRole carries the validated role from the auth layer
	HeaderAccountRole = "X-Account-Role"
)

// Identity lifts the upstream-validated identity headers into the request
// context. Requests without an account id pass through anonymously; handlers
// that need an identity use RequireIdentity or GetIdentity.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := r.Header.Get(HeaderAccountID)
		if accountID == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity := &auth.Identity{
			AccountID: accountID,
			Role:      auth.ParseRole(r.Header.Get(HeaderAccountRole)),
		}

		ctx := context.WithValue(r.Context(), contextkeys.IdentityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity extracts the identity from the request, or nil when anonymous
func GetIdentity(r *http.Request) *auth.Identity {
	identity, ok := r.Context().Value(contextkeys.IdentityKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireIdentity rejects anonymous requests with 401
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r) == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin is the shared moderation gate: every admin operation passes
// through here, and a non-admin caller is rejected before any side effect.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !identity.IsAdmin() {
			httputil.WriteForbidden(w, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
