package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jbily/BANKS-MO/configs"
	"github.com/jbily/BANKS-MO/internal/cards"
	"github.com/jbily/BANKS-MO/internal/handlers"
	"github.com/jbily/BANKS-MO/internal/ledger"
	"github.com/jbily/BANKS-MO/internal/logger"
	"github.com/jbily/BANKS-MO/internal/metrics"
	"github.com/jbily/BANKS-MO/internal/routes"
	"github.com/jbily/BANKS-MO/internal/seed"
	"github.com/jbily/BANKS-MO/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	configs.LoadConfig()
	cfg := configs.AppConfig

	pg, err := store.Open(store.Config{
		DSN:      cfg.DB.DSN,
		LockWait: time.Duration(cfg.DB.LockWaitMS) * time.Millisecond,
	}, logger.Log)
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := pg.Migrate(); err != nil {
		logger.Log.Fatal("failed to run migrations", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	obs := metrics.New(registry)

	ledgerSvc := ledger.NewService(pg, ledger.Config{
		CountWithdrawalsAgainstLimits: cfg.Ledger.CountWithdrawalsAgainstLimits,
	}, logger.Log, obs)
	cardSvc := cards.NewService(pg, cards.Config{}, logger.Log, obs)

	if cfg.Seed.Enabled {
		seed.Run(context.Background(), pg, ledgerSvc, cardSvc)
	}

	h := handlers.New(ledgerSvc, cardSvc, pg, cfg.JWT.Secret,
		time.Duration(cfg.JWT.TTLHours)*time.Hour, logger.Log)
	router := routes.NewRoutes(h, cfg.JWT.Secret, registry)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("graceful shutdown failed", zap.Error(err))
	}

	if err := pg.Close(); err != nil {
		logger.Log.Error("db close failed", zap.Error(err))
	} else {
		logger.Log.Info("db closed")
	}

	logger.Log.Info("server stopped")
}
