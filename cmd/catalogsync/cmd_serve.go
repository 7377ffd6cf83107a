package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/catalogsync/app/controllers"
	"github.com/shashiranjanraj/catalogsync/app/jobs"
	"github.com/shashiranjanraj/catalogsync/app/routes"
	"github.com/shashiranjanraj/catalogsync/app/services"
	"github.com/shashiranjanraj/catalogsync/config"
	"github.com/shashiranjanraj/catalogsync/internal/kernel"
	"github.com/shashiranjanraj/catalogsync/internal/server"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/middleware"
	"github.com/shashiranjanraj/catalogsync/pkg/schedule"
	"github.com/shashiranjanraj/catalogsync/pkg/sse"
	"github.com/shashiranjanraj/catalogsync/pkg/ws"
)

var (
	serveNoWorker   bool
	serveNoSchedule bool
)

// catalogsync serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API with queue workers and the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, bootOptions{queue: true})
		if err != nil {
			return err
		}
		defer a.Close()

		hub := ws.NewHub()
		go hub.Run(ctx)
		ws.Bridge(a.bus, hub, services.EventSynced, services.EventSyncFailed)
		broker := sse.NewBroker()
		sse.Bridge(a.bus, broker, services.EventSynced, services.EventSyncFailed)
		go func() {
			<-ctx.Done()
			broker.Close()
		}()

		limiter := middleware.NewRateLimiter(config.RateLimitPerMinute())
		go limiter.Cleanup(ctx)

		schema, err := controllers.CatalogSchema(a.query)
		if err != nil {
			return fmt.Errorf("graphql: %w", err)
		}

		if !serveNoWorker {
			a.queue.StartWorkers(ctx, config.QueueWorkers())
			defer a.queue.Wait()
		}
		if !serveNoSchedule {
			s := schedule.New()
			if err := jobs.Schedule(s, a.queue, config.SyncSchedule()); err != nil {
				return err
			}
			s.Start(ctx)
			defer s.Wait()
		}

		k := kernel.NewHTTPKernel(kernel.Deps{
			Controllers: routes.Controllers{
				Products: controllers.NewProductController(a.query),
				Catalog:  controllers.NewCatalogController(a.syncer, a.queue),
				Health:   controllers.NewHealthController(a.repo, a.syncer),
			},
			Schema:      &schema,
			Hub:         hub,
			Events:      broker,
			RateLimiter: limiter,
			CORSOrigins: config.CORSAllowedOrigins(),
		})

		err = server.Start(ctx, ":"+config.AppPort(), k.Handler())
		stop()
		logger.Info("serve: stopped")
		return err
	},
}

// catalogsync route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := controllers.CatalogSchema(services.NewCatalogQuery(nil))
		if err != nil {
			return err
		}
		k := kernel.NewHTTPKernel(kernel.Deps{
			Controllers: routes.Controllers{
				Products: &controllers.ProductController{},
				Catalog:  &controllers.CatalogController{},
				Health:   &controllers.HealthController{},
			},
			Schema: &schema,
			Hub:    ws.NewHub(),
			Events: sse.NewBroker(),
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range k.Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "Do not run queue workers in this process")
	serveCmd.Flags().BoolVar(&serveNoSchedule, "no-schedule", false, "Do not run the scheduler in this process")
}
