package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/dmorgan81/chatbot/internal/handler"
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

	ctx := log.NewContext(context.Background(), log.New(os.Stderr, log.ParseLevel(cfg.LogLevel)))
	injector := inject.Setup(ctx, cfg)
	handler := do.MustInvoke[*handler.Handler](injector)
	lambda.StartWithOptions(handler.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
		_ = injector.Shutdown()
	}))
}
