// Package jobs holds the queue jobs of the application.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/shashiranjanraj/catalogsync/app/services"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/queue"
)

// SyncCatalogJobName is the queue registry name of SyncCatalogJob.
const SyncCatalogJobName = "catalog:sync"

// Syncer runs one catalog sync.
type Syncer interface {
	Sync(ctx context.Context) (services.SyncResult, error)
}

// SyncCatalogJob is the queued form of a catalog sync. Only the trigger
// metadata travels through the queue; the syncer is injected by the factory
// registered with the worker's queue.Manager.
type SyncCatalogJob struct {
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requested_at"`
	RequestID   string    `json:"request_id,omitempty"`

	syncer Syncer
}

func NewSyncCatalogJob(syncer Syncer, trigger string) *SyncCatalogJob {
	return &SyncCatalogJob{syncer: syncer, Trigger: trigger, RequestedAt: time.Now().UTC()}
}

func (j *SyncCatalogJob) JobName() string { return SyncCatalogJobName }

// Handle runs the sync. A sync already in flight counts as done: the
// running one fetches the same full catalog.
func (j *SyncCatalogJob) Handle(ctx context.Context) error {
	log := logger.WithCtx(ctx).With("job", SyncCatalogJobName, "trigger", j.Trigger, "request_id", j.RequestID)

	res, err := j.syncer.Sync(ctx)
	if errors.Is(err, services.ErrSyncInProgress) {
		log.Info("job: sync already running, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("job: sync done", "run_id", res.RunID, "count", res.Count,
		"queued_for", res.StartedAt.Sub(j.RequestedAt).Round(time.Millisecond))
	return nil
}

// Register wires SyncCatalogJob into q, injecting syncer into every
// decoded job.
func Register(q *queue.Manager, syncer Syncer) {
	q.Register(SyncCatalogJobName, func() queue.Job { return &SyncCatalogJob{syncer: syncer} })
}
