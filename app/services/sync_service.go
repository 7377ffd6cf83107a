package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/pkg/event"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/metrics"
)

// Event names fired on the bus after every run.
const (
	EventSynced     = "catalog.synced"
	EventSyncFailed = "catalog.sync_failed"
)

// Fetcher obtains the remote catalog.
type Fetcher interface {
	Fetch(ctx context.Context) ([]CatalogRecord, error)
}

// CatalogStore is the write side of the product repository.
type CatalogStore interface {
	EnsureSchema(ctx context.Context) error
	UpsertBatch(ctx context.Context, products []models.Product) (int, error)
}

// SyncLocker serializes runs across processes that share a store. Acquire
// reports false when another run holds the lease.
type SyncLocker interface {
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, owner string) error
}

const (
	syncLockName       = "catalog:sync"
	defaultSyncLockTTL = 10 * time.Minute
)

// State is the pipeline's current phase.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateValidating State = "validating"
	StatePersisting State = "persisting"
	StateFailed     State = "failed"
)

// SyncResult describes a successful run. Count is the number of distinct
// products written.
type SyncResult struct {
	RunID      string    `json:"run_id"`
	Count      int       `json:"count"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is how long the run took.
func (r SyncResult) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// SyncFailure describes a failed run.
type SyncFailure struct {
	RunID string    `json:"run_id"`
	Kind  string    `json:"kind"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// SyncStatus is a point-in-time view of the pipeline.
type SyncStatus struct {
	State       State        `json:"state"`
	LastResult  *SyncResult  `json:"last_result,omitempty"`
	LastFailure *SyncFailure `json:"last_failure,omitempty"`
}

// SyncService runs fetch → validate → persist. At most one run is in flight
// per service, and per store when a SyncLocker is set; a second caller gets
// ErrSyncInProgress straight away.
type SyncService struct {
	fetcher Fetcher
	store   CatalogStore
	bus     *event.Bus
	log     *slog.Logger
	locker  SyncLocker
	lockTTL time.Duration

	running sync.Mutex

	mu          sync.RWMutex
	state       State
	lastResult  *SyncResult
	lastFailure *SyncFailure
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithEventBus publishes EventSynced and EventSyncFailed on b.
func WithEventBus(b *event.Bus) SyncOption { return func(s *SyncService) { s.bus = b } }

func WithSyncLogger(l *slog.Logger) SyncOption { return func(s *SyncService) { s.log = l } }

// WithSyncLock holds a lease from l for the whole run, fetch through commit.
// ttl must outlast the slowest run; a crashed holder blocks syncs until it
// expires.
func WithSyncLock(l SyncLocker, ttl time.Duration) SyncOption {
	return func(s *SyncService) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func NewSyncService(fetcher Fetcher, store CatalogStore, opts ...SyncOption) *SyncService {
	s := &SyncService{
		fetcher: fetcher,
		store:   store,
		log:     logger.L,
		lockTTL: defaultSyncLockTTL,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync fetches the full remote catalog and upserts it in one transaction.
// On any error the store keeps its previous contents. The returned error is
// a *FetchError, *ValidationError, *repositories.StorageError or
// ErrSyncInProgress.
func (s *SyncService) Sync(ctx context.Context) (SyncResult, error) {
	start := time.Now()
	if !s.running.TryLock() {
		metrics.RecordSync(ErrorKind(ErrSyncInProgress), 0, start)
		return SyncResult{}, ErrSyncInProgress
	}
	defer s.running.Unlock()

	runID := uuid.NewString()
	log := s.log
	if l, ok := logger.FromCtx(ctx); ok {
		log = l
	}
	log = log.With("run_id", runID)

	if s.locker != nil {
		held, err := s.locker.Acquire(ctx, syncLockName, runID, s.lockTTL)
		if err != nil {
			return SyncResult{}, s.fail(log, runID, start, err)
		}
		if !held {
			metrics.RecordSync(ErrorKind(ErrSyncInProgress), 0, start)
			log.Info("sync: skipped, another process is syncing")
			return SyncResult{}, ErrSyncInProgress
		}
		defer s.releaseLock(log, runID)
	}
	log.Info("sync: started")

	s.setState(StateFetching)
	records, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return SyncResult{}, s.fail(log, runID, start, err)
	}

	s.setState(StateValidating)
	products, err := Validate(records)
	if err != nil {
		return SyncResult{}, s.fail(log, runID, start, err)
	}

	s.setState(StatePersisting)
	if err := s.store.EnsureSchema(ctx); err != nil {
		return SyncResult{}, s.fail(log, runID, start, err)
	}
	count, err := s.store.UpsertBatch(ctx, products)
	if err != nil {
		return SyncResult{}, s.fail(log, runID, start, err)
	}

	result := SyncResult{RunID: runID, Count: count, StartedAt: start, FinishedAt: time.Now()}
	s.mu.Lock()
	s.state = StateIdle
	s.lastResult = &result
	s.mu.Unlock()

	metrics.RecordSync("success", count, start)
	log.Info("sync: finished", "count", count, "duration", result.Duration())
	if s.bus != nil {
		s.bus.FireAsync(EventSynced, result)
	}
	return result, nil
}

func (s *SyncService) fail(log *slog.Logger, runID string, start time.Time, err error) error {
	kind := ErrorKind(err)
	failure := SyncFailure{RunID: runID, Kind: kind, Error: err.Error(), At: time.Now()}

	s.mu.Lock()
	s.state = StateFailed
	s.lastFailure = &failure
	s.mu.Unlock()

	metrics.RecordSync(kind, 0, start)
	log.Error("sync: failed", "kind", kind, "error", err, "duration", time.Since(start))
	if s.bus != nil {
		s.bus.FireAsync(EventSyncFailed, failure)
	}

	s.setState(StateIdle)
	return err
}

// releaseLock runs after the caller's ctx may be gone.
func (s *SyncService) releaseLock(log *slog.Logger, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.locker.Release(ctx, syncLockName, runID); err != nil {
		log.Warn("sync: release lock", "error", err)
	}
}

func (s *SyncService) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State reports the current phase.
func (s *SyncService) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Status reports the current phase with the last result and failure.
func (s *SyncService) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SyncStatus{State: s.state}
	if s.lastResult != nil {
		r := *s.lastResult
		st.LastResult = &r
	}
	if s.lastFailure != nil {
		f := *s.lastFailure
		st.LastFailure = &f
	}
	return st
}
