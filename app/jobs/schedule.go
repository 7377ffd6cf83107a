package jobs

import (
	"context"

	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/queue"
	"github.com/shashiranjanraj/catalogsync/pkg/schedule"
)

// Dispatcher queues jobs; *queue.Manager satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) error
}

// Schedule registers the periodic catalog sync on s. spec is "@every <d>",
// "@hourly", "@daily" or a 5-field cron expression. Each tick queues a
// SyncCatalogJob rather than syncing inline, so the queue's retry policy
// and failure records apply to scheduled runs too.
func Schedule(s *schedule.Scheduler, q Dispatcher, spec string) error {
	sc, err := s.Spec(spec)
	if err != nil {
		return err
	}
	sc.Name(SyncCatalogJobName).WithoutOverlapping().Run(func(ctx context.Context) {
		if err := q.Dispatch(ctx, NewSyncCatalogJob(nil, "schedule")); err != nil {
			logger.WithCtx(ctx).Error("schedule: queue catalog sync", "error", err)
		}
	})
	return nil
}
