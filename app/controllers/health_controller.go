package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/shashiranjanraj/catalogsync/app/services"
	"github.com/shashiranjanraj/catalogsync/pkg/response"
)

// ProductCounter is satisfied by *repositories.ProductRepository.
type ProductCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StateReporter is satisfied by *services.SyncService.
type StateReporter interface {
	State() services.State
}

type HealthController struct {
	store   ProductCounter
	syncer  StateReporter
	started time.Time
}

func NewHealthController(store ProductCounter, syncer StateReporter) *HealthController {
	return &HealthController{store: store, syncer: syncer, started: time.Now()}
}

// Show answers 200 while the process is up. The store is reported, not
// required: an empty or missing catalog is a normal state before the first
// sync.
func (c *HealthController) Show(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	store := "ok"
	count, err := c.store.Count(ctx)
	if err != nil {
		store = "unavailable"
	}
	response.Success(w, map[string]interface{}{
		"status":     "ok",
		"store":      store,
		"products":   count,
		"sync_state": c.syncer.State(),
		"uptime":     time.Since(c.started).Round(time.Second).String(),
	})
}
