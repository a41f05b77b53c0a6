package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var urlFlag string
	var configFlag string

	ctx := newCommandContext(&urlFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "canvasbridge",
		Short:         "Canvas bridge CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "", "Bridge base URL (defaults to the configured bind address)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newOpenCommand(ctx))
	rootCmd.AddCommand(newPushInputCommand(ctx))
	rootCmd.AddCommand(newPullCommand(ctx))
	rootCmd.AddCommand(newPushOutputCommand(ctx))
	rootCmd.AddCommand(newTriggerCommand(ctx))
	rootCmd.AddCommand(newStoreTriggerCommand(ctx))
	rootCmd.AddCommand(newShutdownCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
