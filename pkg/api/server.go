package api

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/pluginverse/storefront/pkg/audit"
	"github.com/pluginverse/storefront/pkg/catalog"
	"github.com/pluginverse/storefront/pkg/deposits"
	"github.com/pluginverse/storefront/pkg/httputil"
	"github.com/pluginverse/storefront/pkg/ledger"
	"github.com/pluginverse/storefront/pkg/middleware"
	"github.com/pluginverse/storefront/pkg/observability"
	"github.com/pluginverse/storefront/pkg/purchases"
	"github.com/pluginverse/storefront/pkg/settings"
	"github.com/pluginverse/storefront/pkg/storage"
)

// Catalog is the read/write catalog surface the handlers consume. Both the
// plain catalog service and its cache layer satisfy it.
type Catalog interface {
	Create(ctx context.Context, req *catalog.CreateRequest) (*catalog.Plugin, error)
	Get(ctx context.Context, id string) (*catalog.Plugin, error)
	List(ctx context.Context, req *catalog.ListRequest) ([]*catalog.Plugin, error)
	Update(ctx context.Context, id string, req *catalog.UpdateRequest) (*catalog.Plugin, error)
	Delete(ctx context.Context, id string) error
}

// Deps holds everything the API server needs
type Deps struct {
	Ledger    *ledger.Service
	Deposits  *deposits.Service
	Catalog   Catalog
	Purchases *purchases.Service
	Settings  *settings.Service
	Audit     *audit.Store
	Blobs     storage.BlobStore
	Logger    *observability.Logger
	Metrics   *observability.Metrics
}

// Server is the storefront HTTP API
type Server struct {
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates the API server and registers all routes
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, os.Stderr)
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics(nil)
	}

	s := &Server{
		router:  mux.NewRouter(),
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}

	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(middleware.Identity)
	s.router.Use(httputil.LoggingMiddleware(deps.Logger))
	s.router.Use(httputil.RecoveryMiddleware(deps.Logger))

	public := s.router.PathPrefix("/api").Subrouter()

	authed := s.router.PathPrefix("/api").Subrouter()
	authed.Use(middleware.RequireIdentity)

	admin := s.router.PathPrefix("/api/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)

	NewAccountHandlers(deps.Ledger).RegisterRoutes(authed, admin)
	NewCatalogHandlers(deps.Catalog, deps.Blobs, deps.Audit, deps.Logger).RegisterRoutes(public, admin)
	NewDepositHandlers(deps.Deposits, deps.Audit, deps.Logger, deps.Metrics).RegisterRoutes(authed, admin)
	NewPurchaseHandlers(deps.Purchases, deps.Blobs, deps.Logger, deps.Metrics).RegisterRoutes(authed)
	NewSettingsHandlers(deps.Settings, deps.Audit, deps.Logger).RegisterRoutes(public, admin)
	NewAuditHandlers(deps.Audit, deps.Logger).RegisterRoutes(admin)

	return s
}

// Router exposes the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
