package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/charterops/internal/app"
	"github.com/JonMunkholm/charterops/internal/config"
	"github.com/JonMunkholm/charterops/internal/etl"
	"github.com/JonMunkholm/charterops/internal/logging"
	"github.com/JonMunkholm/charterops/internal/metrics"
	"github.com/JonMunkholm/charterops/internal/web"
)

func main() {
	// Load .env file if it exists; real environment variables win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	var (
		recorder       etl.Recorder
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		m := metrics.NewMetrics(cfg.Metrics.Namespace)
		recorder, metricsHandler = m, m.Handler()
	}

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, slog.Default(), recorder)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	server := web.NewServer(a.Module, cfg, metricsHandler)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if st := a.Module.Gate().Status(); st.Busy {
			slog.Info("waiting for import to finish", "holder", st.Holder, "since", st.Since)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		a.Close()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
