package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmorgan81/chatbot/internal/api"
	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/dmorgan81/chatbot/internal/inject"
	"github.com/dmorgan81/chatbot/internal/log"
	"github.com/samber/do"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.New(os.Stderr, slog.LevelInfo).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, log.ParseLevel(cfg.LogLevel))
	ctx, stop := signal.NotifyContext(log.NewContext(context.Background(), logger), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	injector := inject.Setup(ctx, cfg)
	defer func() { _ = injector.Shutdown() }()

	server, err := do.Invoke[*api.Server](injector)
	if err != nil {
		logger.Error("wiring failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Routes(logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Proxy.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}
