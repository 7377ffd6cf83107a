// Package queue provides background job processing.
//
// Usage:
//
//	q := queue.New(queue.WithDriver(queue.NewMemoryDriver()), queue.WithMaxRetry(1))
//	jobs.Register(q, syncer)
//	q.StartWorkers(ctx, 1)
//
//	// the worker decodes the job and injects the registered syncer
//	q.Dispatch(ctx, jobs.NewSyncCatalogJob(nil, "http"))
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/metrics"
)

// Job is the interface every queued job must satisfy. The job value is
// JSON-encoded on dispatch and decoded into a fresh value from the
// registered factory before Handle runs.
type Job interface {
	Handle(ctx context.Context) error
}

// Named lets a job choose its registry name. Jobs that do not implement it
// are registered under their Go type name (fmt "%T").
type Named interface {
	JobName() string
}

// FailedJob holds information about a job that exhausted its attempts.
type FailedJob struct {
	Type     string
	Job      Job
	Err      error
	FailedAt time.Time
	Attempts int
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a payload is available or ctx is done. A nil payload
	// with a nil error means "nothing yet, poll again".
	Pop(ctx context.Context) ([]byte, error)
}

// DelayedDriver is implemented by drivers that can hold a job back natively.
type DelayedDriver interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

// ErrUnknownJob is returned by Dispatch for job types nobody registered.
var ErrUnknownJob = errors.New("queue: unknown job type")

// ------------------- Manager -------------------

// Manager is the queue hub: job registry, dispatch and workers.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	maxRetry int
	backoff  time.Duration
	db       *gorm.DB
	log      *slog.Logger
	wg       sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

func WithDriver(d Driver) Option { return func(m *Manager) { m.driver = d } }

// WithMaxRetry sets the total number of attempts per job (1 = no retry).
func WithMaxRetry(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxRetry = n
		}
	}
}

// WithBackoff sets the base wait between attempts; attempt n waits n*d.
func WithBackoff(d time.Duration) Option { return func(m *Manager) { m.backoff = d } }

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

func New(opts ...Option) *Manager {
	m := &Manager{
		driver:   NewMemoryDriver(),
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  time.Second,
		log:      logger.L,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register makes a job type available for decoding by name.
func (m *Manager) Register(name string, factory func() Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = factory
}

// ------------------- Dispatch -------------------

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func jobName(job Job) string {
	if n, ok := job.(Named); ok {
		return n.JobName()
	}
	return fmt.Sprintf("%T", job)
}

// Dispatch pushes job onto the queue immediately.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	env, err := m.encode(job)
	if err != nil {
		return err
	}
	return m.currentDriver().Push(ctx, env)
}

// DispatchAfter pushes job after delay. Drivers implementing DelayedDriver
// hold the job themselves; otherwise a goroutine waits and then pushes,
// giving up if ctx ends first.
func (m *Manager) DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	env, err := m.encode(job)
	if err != nil {
		return err
	}
	d := m.currentDriver()
	if dd, ok := d.(DelayedDriver); ok {
		return dd.PushDelayed(ctx, env, delay)
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if err := d.Push(ctx, env); err != nil {
			m.log.Error("queue: delayed dispatch failed", "type", jobName(job), "error", err)
		}
	}()
	return nil
}

func (m *Manager) encode(job Job) ([]byte, error) {
	typeName := jobName(job)

	m.mu.RLock()
	_, known := m.registry[typeName]
	m.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, typeName)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %s: %w", typeName, err)
	}
	env, err := json.Marshal(envelope{Type: typeName, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return env, nil
}

func (m *Manager) currentDriver() Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driver
}

// ------------------- Worker -------------------

// StartWorkers launches n workers that process jobs until ctx is cancelled.
// Wait blocks until they have all returned.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.work(ctx)
		}()
	}
	m.log.Info("queue: workers started", "count", n)
}

// Wait blocks until every worker started by StartWorkers has stopped.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		raw, err := m.currentDriver().Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn("queue: pop failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if raw == nil {
			continue
		}
		m.process(ctx, raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m.log.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		m.log.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, job); err != nil {
			m.log.Error("queue: unmarshal payload", "type", env.Type, "error", err)
			return
		}
	}

	m.runWithRetry(ctx, job, env.Type)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, typeName string) {
	start := time.Now()
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= m.maxRetry; attempt++ {
		attempts = attempt
		if err := m.handle(ctx, job); err != nil {
			lastErr = err
			m.log.Warn("queue: job failed", "type", typeName, "attempt", attempt, "error", err)
			if attempt == m.maxRetry {
				break
			}
			select {
			case <-ctx.Done():
				m.persistFailed(job, typeName, lastErr, attempts)
				metrics.RecordQueueJob(typeName, "failed", start)
				return
			case <-time.After(time.Duration(attempt) * m.backoff):
			}
			continue
		}
		m.log.Info("queue: job processed", "type", typeName, "attempt", attempt)
		metrics.RecordQueueJob(typeName, "success", start)
		return
	}

	m.persistFailed(job, typeName, lastErr, attempts)
	metrics.RecordQueueJob(typeName, "failed", start)
	m.log.Error("queue: job exhausted retries", "type", typeName, "attempts", attempts, "error", lastErr)
}

// handle runs one attempt and turns a panic into an error.
func (m *Manager) handle(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("queue: job panicked: %v", rec)
		}
	}()
	return job.Handle(ctx)
}

// FailedJobs returns a snapshot of the failures seen by this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}
