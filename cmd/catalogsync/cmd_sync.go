package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/catalogsync/app/services"
)

// catalogsync sync
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the remote catalog and upsert it into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, bootOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.syncer.Sync(ctx)
		if err != nil {
			return fmt.Errorf("sync failed (%s): %w", services.ErrorKind(err), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d products (run %s, %s)\n", res.Count, res.RunID, res.Duration().Round(time.Millisecond))
		return nil
	},
}
