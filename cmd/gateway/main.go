// Package main implements the gateway's entry point: the metadata store,
// service actor runtime, handler registry, compilation pipeline, request
// router and admin API are wired together and served on two independent
// HTTP listeners (public gateway traffic and administrative CRUD).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nativegate/gateway/config"
	"github.com/nativegate/gateway/internal/adminapi"
	"github.com/nativegate/gateway/internal/compiler"
	"github.com/nativegate/gateway/internal/metadata"
	"github.com/nativegate/gateway/internal/middleware"
	"github.com/nativegate/gateway/internal/registry"
	"github.com/nativegate/gateway/internal/router"
	"github.com/nativegate/gateway/internal/services"
	"github.com/nativegate/gateway/internal/workers"

	_ "github.com/nativegate/gateway/internal/services/cache"
	_ "github.com/nativegate/gateway/internal/services/document"
	_ "github.com/nativegate/gateway/internal/services/mail"
	_ "github.com/nativegate/gateway/internal/services/objectstore"
	_ "github.com/nativegate/gateway/internal/services/sqldb"
)

// workerPoolSize bounds the number of concurrent blocking handler/service
// calls (§5's "dedicated blocking pool").
const workerPoolSize = 64

func main() {
	// PHASE 1: Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// PHASE 2: Metadata store (migrates up on open)
	store, err := metadata.Open(cfg.Metadata.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open metadata store", zap.Error(err))
	}
	defer store.Close()

	// PHASE 3: Repository layer over the metadata store
	domainRepo := metadata.NewDomainRepository(store)
	collectionRepo := metadata.NewCollectionRepository(store)
	endpointRepo := metadata.NewEndpointRepository(store)
	serviceRepo := metadata.NewServiceRepository(store)
	bindingRepo := metadata.NewEndpointServiceRepository(store)

	// PHASE 4: Service Actor Runtime — reactivate every service marked
	// enabled before the last shutdown, since task state lives only in
	// process memory (§4.3).
	serviceRuntime := services.NewRuntime()
	enabledServices, err := serviceRepo.ListEnabled()
	if err != nil {
		logger.Fatal("Failed to list enabled services", zap.Error(err))
	}
	for _, svc := range enabledServices {
		if err := serviceRuntime.Activate(svc); err != nil {
			logger.Error("failed to reactivate service on boot",
				zap.String("service_id", svc.ID.String()), zap.Error(err))
		}
	}

	// PHASE 5: Bounded worker pool shared by handler execution and, later,
	// any blocking service calls that route through it (§5).
	pool := workers.New(workerPoolSize)

	// PHASE 6: Handler Registry (wazero runtime, host module, reap loop).
	reg, err := registry.New(ctx, cfg.Artifact.Root, pool, logger)
	if err != nil {
		logger.Fatal("Failed to initialize handler registry", zap.Error(err))
	}
	defer reg.Close(ctx)

	// PHASE 7: Reload every compiled, enabled endpoint's artifact, since the
	// registry's active set is in-memory only.
	compiledEnabled, err := endpointRepo.ListCompiledEnabled()
	if err != nil {
		logger.Fatal("Failed to list compiled endpoints", zap.Error(err))
	}
	for _, ep := range compiledEnabled {
		if _, err := reg.Load(ctx, ep.ID); err != nil {
			logger.Warn("failed to load handler on boot, disabling endpoint",
				zap.String("endpoint_id", ep.ID.String()), zap.Error(err))
			if disableErr := endpointRepo.SetEnabled(ep.ID, false); disableErr != nil {
				logger.Error("failed to disable endpoint after boot load failure",
					zap.String("endpoint_id", ep.ID.String()), zap.Error(disableErr))
			}
		}
	}

	// PHASE 8: Compilation pipeline.
	pipeline := compiler.New(cfg.Artifact.WorkDir, cfg.Artifact.Root, cfg.Artifact.SDKPath, logger)

	// PHASE 9: Request router (public gateway surface).
	gatewayRouter := router.New(endpointRepo, bindingRepo, serviceRuntime, reg, logger)

	// PHASE 10: Admin API (CRUD + lifecycle actions).
	adminRouter := adminapi.NewRouter(
		adminapi.NewDomainHandler(domainRepo),
		adminapi.NewCollectionHandler(collectionRepo),
		adminapi.NewServiceHandler(serviceRepo, serviceRuntime),
		adminapi.NewEndpointHandler(endpointRepo, pipeline, reg, logger),
	)

	// PHASE 11: Two independent HTTP listeners — the public gateway surface
	// must never share a mux with the administrative CRUD surface. Both get
	// the same CORS policy, wrapped around each handler independently since
	// router.Router is a bare http.Handler rather than a chi mux.
	cors := middleware.NewCORSMiddleware()
	gatewayServer := &http.Server{Addr: cfg.GatewayAddr(), Handler: cors(gatewayRouter)}
	adminServer := &http.Server{Addr: cfg.AdminAddr(), Handler: cors(adminRouter)}

	go func() {
		logger.Info("starting gateway server", zap.String("addr", cfg.GatewayAddr()))
		if err := gatewayServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("gateway server failed", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("starting admin server", zap.String("addr", cfg.AdminAddr()))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("admin server failed", zap.Error(err))
		}
	}()

	// PHASE 12: Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := gatewayServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway server forced to shutdown", zap.Error(err))
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server forced to shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
