package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/mealplan/internal/config"
	"github.com/dukerupert/mealplan/internal/database"
	"github.com/dukerupert/mealplan/internal/logging"
	"github.com/dukerupert/mealplan/internal/middleware"
	"github.com/dukerupert/mealplan/internal/notify"
	"github.com/dukerupert/mealplan/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, server.Config{
		CronAuth: middleware.CronAuth{
			Header: cfg.CronHeader,
			Secret: cfg.CronSecret,
		},
		CronRateLimit: cfg.CronRateLimit,
		BatchLimit:    cfg.BatchLimit,
	}, logger)

	if cfg.CronSecret == "" {
		logger.Warn("MEALPLAN_CRON_SECRET not set, /tick and /cleanup accept unauthenticated requests")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runner *notify.Runner
	if cfg.RunnerEnabled {
		var opts []notify.Option
		if cfg.LeaseEnabled {
			holder := uuid.NewString()
			opts = append(opts, notify.WithLease(srv.LeaseStore(), holder, cfg.LeaseTTL))
			logger.Info("runner lease enabled", "holder", holder, "ttl", cfg.LeaseTTL)
		}

		runner, err = notify.NewRunner(srv.Job(), srv.Cleanup(), notify.RunnerConfig{
			TickSpec:    cfg.TickSpec,
			CleanupSpec: cfg.CleanupSpec,
			BatchLimit:  cfg.BatchLimit,
		}, logger.With("component", "runner"), opts...)
		if err != nil {
			logger.Error("failed to create runner", "error", err)
			os.Exit(1)
		}
		if err := runner.Start(ctx); err != nil {
			logger.Error("failed to start runner", "error", err)
			os.Exit(1)
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// /tick runs the batch synchronously.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Background rate limiter cleanup
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup(10 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("mealplan notifier starting", "addr", ":"+cfg.Port, "runner", cfg.RunnerEnabled)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if runner != nil {
		runner.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
