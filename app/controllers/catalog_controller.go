package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/shashiranjanraj/catalogsync/app/jobs"
	"github.com/shashiranjanraj/catalogsync/app/repositories"
	"github.com/shashiranjanraj/catalogsync/app/services"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/queue"
	"github.com/shashiranjanraj/catalogsync/pkg/reqid"
	"github.com/shashiranjanraj/catalogsync/pkg/response"
)

// SyncRunner is the part of services.SyncService the HTTP layer drives.
type SyncRunner interface {
	Sync(ctx context.Context) (services.SyncResult, error)
	Status() services.SyncStatus
}

// Dispatcher queues jobs; *queue.Manager satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) error
}

type CatalogController struct {
	syncer SyncRunner
	queue  Dispatcher
}

// NewCatalogController builds the controller. q may be nil, in which case
// asynchronous sync requests are refused.
func NewCatalogController(syncer SyncRunner, q Dispatcher) *CatalogController {
	return &CatalogController{syncer: syncer, queue: q}
}

// Sync runs a catalog sync. By default it blocks until the run finishes;
// with ?async=true it queues a SyncCatalogJob and answers 202.
func (c *CatalogController) Sync(w http.ResponseWriter, r *http.Request) {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		c.dispatch(w, r)
		return
	}

	res, err := c.syncer.Sync(r.Context())
	if err != nil {
		status := SyncErrorStatus(err)
		kind := services.ErrorKind(err)
		log := logger.WithCtx(r.Context())
		if status >= http.StatusInternalServerError {
			log.Error("catalog: sync failed", "kind", kind, "error", err)
		} else {
			log.Warn("catalog: sync rejected", "kind", kind, "error", err)
		}
		response.ErrorWithDetails(w, status, err.Error(), map[string]string{"kind": kind})
		return
	}

	response.Success(w, map[string]interface{}{
		"count":       res.Count,
		"run_id":      res.RunID,
		"duration_ms": res.Duration().Milliseconds(),
	})
}

func (c *CatalogController) dispatch(w http.ResponseWriter, r *http.Request) {
	if c.queue == nil {
		response.Error(w, http.StatusServiceUnavailable, "Queue not configured")
		return
	}
	job := jobs.NewSyncCatalogJob(nil, "http")
	job.RequestID = reqid.FromCtx(r.Context())
	if err := c.queue.Dispatch(r.Context(), job); err != nil {
		logger.WithCtx(r.Context()).Error("catalog: dispatch sync", "error", err)
		response.Error(w, http.StatusServiceUnavailable, "Could not queue sync")
		return
	}
	response.Accepted(w, "Sync queued", map[string]string{
		"job":        jobs.SyncCatalogJobName,
		"request_id": job.RequestID,
	})
}

// Status reports the pipeline state with the last result and failure.
func (c *CatalogController) Status(w http.ResponseWriter, r *http.Request) {
	response.Success(w, c.syncer.Status())
}

// SyncErrorStatus maps a sync error to its HTTP status.
func SyncErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repositories.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
