package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pluginverse/storefront/pkg/api"
	"github.com/pluginverse/storefront/pkg/audit"
	"github.com/pluginverse/storefront/pkg/auth"
	"github.com/pluginverse/storefront/pkg/catalog"
	"github.com/pluginverse/storefront/pkg/config"
	"github.com/pluginverse/storefront/pkg/deposits"
	"github.com/pluginverse/storefront/pkg/ledger"
	"github.com/pluginverse/storefront/pkg/observability"
	"github.com/pluginverse/storefront/pkg/purchases"
	"github.com/pluginverse/storefront/pkg/settings"
	"github.com/pluginverse/storefront/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("driver", cfg.Storage.Driver).
		WithField("blob_backend", cfg.Storage.BlobBackend).
		Info("starting storefront")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if providers != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("tracer shutdown failed")
			}
		}()
	}

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	blobs, err := storage.NewBlobStore(cfg.Storage)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics(nil)

	ledgerSvc := ledger.NewService(db)
	catalogSvc := catalog.NewService(db, blobs)
	depositSvc := deposits.NewService(db, ledgerSvc)
	purchaseSvc := purchases.NewService(db, ledgerSvc, catalogSvc)
	settingsSvc := settings.NewService(db)
	auditStore := audit.NewStore(db)

	var apiCatalog api.Catalog = catalogSvc
	var cache *catalog.Cache
	if cfg.Storage.CacheEnabled {
		cache, err = catalog.NewCache(catalogSvc, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, metrics)
		if err != nil {
			return fmt.Errorf("failed to initialize catalog cache: %w", err)
		}
		defer cache.Close()
		apiCatalog = cache
		purchaseSvc.SetInvalidator(cache)
		logger.WithField("redis", cfg.Storage.RedisAddr).Info("catalog cache enabled")
	}

	if err := seed(ctx, cfg, ledgerSvc, settingsSvc, logger); err != nil {
		return err
	}

	server := api.NewServer(api.Deps{
		Ledger:    ledgerSvc,
		Deposits:  depositSvc,
		Catalog:   apiCatalog,
		Purchases: purchaseSvc,
		Settings:  settingsSvc,
		Audit:     auditStore,
		Blobs:     blobs,
		Logger:    logger,
		Metrics:   metrics,
	})

	var apiHandler http.Handler = metrics.InstrumentHandler("/api", server)
	if providers != nil {
		apiHandler = otelhttp.NewHandler(apiHandler, "storefront.api")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(db, redisClient(cache))
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      healthMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sweeper := startStatsSweep(ctx, depositSvc, catalogSvc, metrics, logger)
	defer sweeper.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown failed")
		}
		return nil
	})

	return g.Wait()
}

// seed installs default payment settings and the administrator account when
// they are absent
func seed(ctx context.Context, cfg *config.Config, ledgerSvc *ledger.Service, settingsSvc *settings.Service, logger *observability.Logger) error {
	if err := settingsSvc.Seed(ctx); err != nil {
		return err
	}

	if cfg.AdminEmail == "" {
		return nil
	}
	if _, err := ledgerSvc.GetAccountByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	}

	account, err := ledgerSvc.CreateAccount(ctx, cfg.AdminUsername, cfg.AdminEmail, auth.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}
	logger.WithField("account_id", account.ID).Info("seeded administrator account")
	return nil
}

// startStatsSweep refreshes the pending-deposit and catalog gauges every
// minute
func startStatsSweep(ctx context.Context, depositSvc *deposits.Service, catalogSvc *catalog.Service, metrics *observability.Metrics, logger *observability.Logger) *cron.Cron {
	sweep := func() {
		if pending, err := depositSvc.PendingCount(ctx); err == nil {
			metrics.DepositsPending.Set(float64(pending))
		} else {
			logger.WithError(err).Warn("pending deposit sweep failed")
		}

		if plugins, downloads, err := catalogSvc.Stats(ctx); err == nil {
			metrics.CatalogPlugins.Set(float64(plugins))
			metrics.CatalogDownloadsTotal.Set(float64(downloads))
		} else {
			logger.WithError(err).Warn("catalog stats sweep failed")
		}
	}

	c := cron.New()
	if _, err := c.AddFunc("* * * * *", sweep); err != nil {
		logger.WithError(err).Warn("failed to schedule stats sweep")
		return c
	}
	c.Start()
	sweep()
	return c
}

func redisClient(cache *catalog.Cache) *redis.Client {
	if cache == nil {
		return nil
	}
	return cache.Client()
}
