package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var debugFlag bool

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hud-live",
		Short:         "Live voice/video HUD engine: assistant and interpreter modes over the Gemini Live API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "verbose logging")
	cmd.AddCommand(runCmd())
	cmd.AddCommand(devicesCmd())
	return cmd
}

func newLogger() (*zap.Logger, error) {
	if debugFlag {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
