package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var configPath string

	rootCmd := &cobra.Command{
		Use:           "reconcile",
		Short:         "Re-verify order payments against the payment gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(sweepCmd(&configPath))
	rootCmd.AddCommand(orderCmd(&configPath))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
