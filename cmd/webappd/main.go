package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gajeshbhat/snapcraft.io/internal/config"
	"github.com/gajeshbhat/snapcraft.io/internal/dashboard"
	"github.com/gajeshbhat/snapcraft.io/internal/flash"
	"github.com/gajeshbhat/snapcraft.io/internal/logging"
	"github.com/gajeshbhat/snapcraft.io/internal/observability"
	"github.com/gajeshbhat/snapcraft.io/internal/session"
	"github.com/gajeshbhat/snapcraft.io/internal/webapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	var store session.Store
	if cfg.DatabaseURL != "" {
		store, err = session.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("session store init failed", zap.Error(err))
		}
		logger.Info("session store: postgres")
	} else {
		store = session.NewMemoryStore()
		logger.Info("session store: in-memory")
	}
	defer store.Close()

	sessions := session.NewManager(store, cfg.SessionTTL)
	flashes := flash.NewStore(cfg.FlashMaxAge, cfg.FlashMaxPerSession, metrics)
	account := dashboard.NewClient(cfg.DashboardAPIURL, cfg.UpstreamTimeout)

	srv := webapp.New(cfg, sessions, flashes, account, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: srv.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, cfg.SessionJanitorInterval, func(dropped int) {
		if dropped > 0 {
			metrics.SessionEvents.WithLabelValues("expired").Add(float64(dropped))
			logger.Info("janitor sweep", zap.Int("dropped", dropped))
		}
	})

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}
