package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// catalogsync export
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON snapshot of the stored catalog to the configured disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, bootOptions{exporter: true})
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.exporter.Export(ctx, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d products to %s\n", info.Count, info.URL)
		return nil
	},
}
