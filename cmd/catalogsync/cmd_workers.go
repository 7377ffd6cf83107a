package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/catalogsync/app/jobs"
	"github.com/shashiranjanraj/catalogsync/config"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/schedule"
)

var queueWorkersFlag int

// catalogsync queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the queue worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, bootOptions{queue: true})
		if err != nil {
			return err
		}
		defer a.Close()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = config.QueueWorkers()
		}

		fmt.Printf("Queue worker started (%d workers, %s driver). Press Ctrl+C to stop.\n", workers, config.QueueDriver())
		a.queue.StartWorkers(ctx, workers)

		<-ctx.Done()
		a.queue.Wait()
		fmt.Println("Queue worker stopped.")
		return nil
	},
}

// catalogsync schedule:run
var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Start the task scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, bootOptions{queue: true})
		if err != nil {
			return err
		}
		defer a.Close()

		s := schedule.New()
		if err := jobs.Schedule(s, a.queue, config.SyncSchedule()); err != nil {
			return err
		}

		// A memory queue lives and dies with this process, so it needs its
		// own worker.
		if config.QueueDriver() == "memory" {
			logger.Warn("schedule: memory queue driver, running a worker in-process")
			a.queue.StartWorkers(ctx, 1)
		}

		fmt.Println("Registered scheduled tasks:")
		for _, t := range s.List() {
			fmt.Println("  •", t)
		}
		fmt.Println("Scheduler started. Press Ctrl+C to stop.")
		s.Start(ctx)

		<-ctx.Done()
		s.Wait()
		a.queue.Wait()
		fmt.Println("Scheduler stopped.")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 0, "Number of concurrent workers (default QUEUE_WORKERS)")
}
