// Command turnsyncd runs the turn-sync daemon: the REST request surface
// (C3), its Redis-backed session store (C1), the pure transition engine
// (C2), the WebSocket push gateway (C4), the durable audit pipeline
// (C5), and the server clock oracle (C6).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/api"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/audit"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/clockoracle"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/config"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/logging"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/metrics"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/middleware"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/platform/database"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/platform/migrations"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/pushgateway"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/ratelimit"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/store"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/syncengine"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "turnsyncd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New("turnsyncd", cfg.LogLevel, cfg.LogFormat)
	m := metrics.New("turnsyncd")
	shutdown := middleware.NewGracefulShutdown()

	hotStore, err := store.New(store.Config{
		Address:   cfg.HotStoreAddress,
		KeyPrefix: cfg.KeyPrefix,
		TTL:       time.Duration(cfg.SessionTTLSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("building hot store: %w", err)
	}
	shutdown.OnShutdown(func() {
		if err := hotStore.Close(); err != nil {
			logger.WithError(err).Warn("closing hot store")
		}
	})

	var auditStore *audit.Store
	if cfg.DurableStoreDSN != "" {
		if err := migrations.Apply(cfg.DurableStoreDSN); err != nil {
			return fmt.Errorf("applying durable store migrations: %w", err)
		}

		dbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := database.Open(dbCtx, cfg.DurableStoreDSN)
		cancel()
		if err != nil {
			return fmt.Errorf("opening durable store: %w", err)
		}
		shutdown.OnShutdown(func() {
			if err := db.Close(); err != nil {
				logger.WithError(err).Warn("closing durable store pool")
			}
		})
		auditStore = audit.NewStore(db)
	} else {
		logger.Warn("DURABLE_STORE_DSN unset, audit events will be dropped")
	}

	var auditWriter audit.Writer
	if auditStore != nil {
		auditWriter = auditStore
	} else {
		auditWriter = audit.NoopWriter{}
	}

	auditQueue := audit.NewRedisQueue(hotStore.Client(), cfg.KeyPrefix)
	auditPipeline := audit.New(auditWriter, logger, m, audit.Config{
		Queue:         auditQueue,
		RetryAttempts: cfg.AuditRetryAttempts,
		BackoffBaseMs: cfg.AuditBackoffBaseMs,
	})
	shutdown.OnShutdown(func() {
		auditPipeline.Close(false)
	})

	digest := audit.NewDigest(auditPipeline, "")
	digest.Start()
	shutdown.OnShutdown(digest.Stop)

	clock := clockoracle.New()
	engine := syncengine.New(hotStore, cfg.VersionConflictRetryMax)
	switchLimiter := ratelimit.NewSwitchLimiter(hotStore, cfg.RateLimitSwitchPerSecond)

	gatewayCtx, cancelGateway := context.WithCancel(context.Background())
	gateway := pushgateway.New(hotStore, logger, time.Duration(cfg.HeartbeatIntervalMs)*time.Millisecond)
	gateway.Run(gatewayCtx)
	shutdown.OnShutdown(cancelGateway)

	handlers := api.NewHandlers(engine, clock, auditPipeline, switchLimiter, logger, m)

	healthChecker := middleware.NewHealthChecker()
	healthChecker.RegisterCheck("hot_store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return hotStore.Ping(ctx)
	})
	if auditStore != nil {
		healthChecker.RegisterCheck("durable_store", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return auditStore.Ping(ctx)
		})
	}

	callerLimiter := middleware.NewCallerRateLimiter(cfg.RateLimitGeneralPerMinute)
	cleanupStop := make(chan struct{})
	callerLimiter.StartCleanup(5*time.Minute, cleanupStop)
	shutdown.OnShutdown(func() { close(cleanupStop) })

	router := api.NewRouter(api.RouterConfig{
		Handlers:         handlers,
		Logger:           logger,
		Metrics:          m,
		HealthChecker:    healthChecker,
		CallerLimiter:    callerLimiter,
		RequestTimeout:   10 * time.Second,
		BodyLimitBytes:   1 << 20,
		CORS:             middleware.CORSConfig{AllowedOrigins: []string{"*"}},
		WebSocketHandler: gateway.HandleWS,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ListenPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	shutdown.OnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGraceMs)*time.Millisecond)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("http server shutdown")
		}
	})

	go func() {
		logger.WithField("addr", srv.Addr).Info("turnsyncd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	shutdown.ListenForSignals()
	shutdown.Wait()
	return nil
}
