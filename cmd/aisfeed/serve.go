package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kentaroh-toyoda/ai-security-feed/api"
	"github.com/kentaroh-toyoda/ai-security-feed/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service exposing resolve, run, health and metrics",
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	parts := buildEngine(cfg)
	defer parts.close()

	deps := api.Deps{
		Dispatcher: parts.dispatcher,
		Metrics:    parts.metrics,
		Webhook:    cfg.Webhook,
		StartTime:  time.Now(),
	}
	if parts.pool != nil {
		deps.Pool = parts.pool
	}
	router := api.NewRouter(deps, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("aisfeed stopped")
	return nil
}
