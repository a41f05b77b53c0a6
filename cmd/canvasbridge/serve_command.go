package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"canvasbridge/internal/bridge"
	"canvasbridge/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("prepare directories: %w", err)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			d, err := bridge.New(cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close() //nolint:errcheck

			if err := d.Start(signalCtx); err != nil {
				return err
			}
			logger.Info("canvas bridge listening",
				logging.String("addr", cfg.BindAddress()),
				logging.String("comfy_url", cfg.Comfy.URL))

			<-signalCtx.Done()
			d.Stop()
			return nil
		},
	}
}
