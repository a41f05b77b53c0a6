package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"canvasbridge/internal/bridge"
	"canvasbridge/internal/config"
	"canvasbridge/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := bridge.New(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close() //nolint:errcheck

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	logger.Info("canvas bridge listening",
		logging.String("addr", cfg.BindAddress()),
		logging.String("comfy_url", cfg.Comfy.URL))

	<-ctx.Done()
	logger.Info("canvasbridged shutting down")
	d.Stop()
}
