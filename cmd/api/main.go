package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/propertyledger-backend/api/routes"
	"github.com/angelmondragon/propertyledger-backend/internal/app"
	"github.com/angelmondragon/propertyledger-backend/pkg/config"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
	"github.com/angelmondragon/propertyledger-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	rt, err := app.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap runtime", err)
		os.Exit(1)
	}
	defer rt.Close()

	params := routes.RouterParams{
		Config:      cfg,
		Logger:      logg,
		DB:          rt.DB,
		Gatherer:    rt.Registry,
		HTTPMetrics: metrics.NewHTTPMetrics(rt.Registry),
		Contracts:   rt.Services.Contracts,
		Resolver:    rt.Services.Resolver,
		Invoices:    rt.Services.Invoices,
		Payments:    rt.Services.Payments,
		Importer:    rt.Services.Importer,
	}
	// Typed-nil guards: only hand over Redis when it was actually opened.
	if rt.Redis != nil {
		params.Redis = rt.Redis
		params.Idempotency = redis.IdempotencyStore(rt.Redis)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
