package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"taskdesk/internal/app"
	"taskdesk/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	application := app.New(cfg)
	if err := application.Init(ctx); err != nil {
		log.Fatalf("initializing app: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("running app: %v", err)
	}
}
