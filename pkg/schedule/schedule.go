// Package schedule provides a cron-style task scheduler.
//
// Usage:
//
//	s := schedule.New()
//	s.Every(5).Minutes().Name("cleanup").Run(cleanup)
//	s.Cron("0 * * * *").WithoutOverlapping().Run(syncCatalog)
//
//	sched, _ := s.Spec(config.SyncSchedule()) // "@every 1h", "@daily", "*/15 * * * *"
//	sched.Name("catalog:sync").Run(syncCatalog)
//
//	s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/catalogsync/pkg/logger"
)

// Task is the function signature for a scheduled task. ctx is cancelled
// when the scheduler stops.
type Task func(ctx context.Context)

type entry struct {
	id         string
	interval   time.Duration
	cronExpr   string // "" unless using Cron()
	task       Task
	lastRun    time.Time
	running    bool
	noOverlap  bool
	beforeHook Task
	afterHook  Task
	mu         sync.Mutex
}

// Scheduler owns a set of entries and the loop that dispatches them.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	log     *slog.Logger
	tick    time.Duration
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.log = l } }

// WithTick changes how often due entries are checked (default 1s).
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{log: logger.L, tick: time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule is a fluent builder for a single entry before it is registered.
type Schedule struct {
	s *Scheduler
	e *entry
}

// ------------------- Builders -------------------

// EveryMinute schedules the task to run every 60 seconds.
func (s *Scheduler) EveryMinute() *Schedule { return s.Every(1).Minutes() }

// Every starts a fluent builder with n units.
func (s *Scheduler) Every(n int) *FreqBuilder { return &FreqBuilder{s: s, n: n} }

// Hourly schedules the task to run every hour.
func (s *Scheduler) Hourly() *Schedule { return s.Every(1).Hours() }

// Daily schedules the task to run every 24 hours.
func (s *Scheduler) Daily() *Schedule { return s.Every(24).Hours() }

// Interval schedules the task to run every d.
func (s *Scheduler) Interval(d time.Duration) *Schedule {
	return &Schedule{s: s, e: &entry{interval: d}}
}

// Cron schedules using a 5-field cron expression (min hour dom mon dow).
// The expression is not validated; use Spec or ParseCron for that.
func (s *Scheduler) Cron(expr string) *Schedule {
	return &Schedule{s: s, e: &entry{cronExpr: expr}}
}

// Spec builds a schedule from a string: "@every <duration>", "@hourly",
// "@daily", or a 5-field cron expression.
func (s *Scheduler) Spec(spec string) (*Schedule, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "@hourly":
		return s.Cron("0 * * * *"), nil
	case spec == "@daily" || spec == "@midnight":
		return s.Cron("0 0 * * *"), nil
	case strings.HasPrefix(spec, "@every "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "@every ")))
		if err != nil {
			return nil, fmt.Errorf("schedule: %q: %w", spec, err)
		}
		if d < time.Second {
			return nil, fmt.Errorf("schedule: %q: interval must be at least 1s", spec)
		}
		return s.Interval(d), nil
	}
	if err := ParseCron(spec); err != nil {
		return nil, err
	}
	return s.Cron(spec), nil
}

// FreqBuilder picks the unit for Every(n).
type FreqBuilder struct {
	s *Scheduler
	n int
}

func (f *FreqBuilder) Seconds() *Schedule { return f.s.Interval(time.Duration(f.n) * time.Second) }
func (f *FreqBuilder) Minutes() *Schedule { return f.s.Interval(time.Duration(f.n) * time.Minute) }
func (f *FreqBuilder) Hours() *Schedule   { return f.s.Interval(time.Duration(f.n) * time.Hour) }

// ------------------- Schedule chainable options -------------------

// WithoutOverlapping prevents a new run if the previous one is still executing.
func (sc *Schedule) WithoutOverlapping() *Schedule {
	sc.e.noOverlap = true
	return sc
}

// Before registers a hook that fires before the task.
func (sc *Schedule) Before(fn Task) *Schedule {
	sc.e.beforeHook = fn
	return sc
}

// After registers a hook that fires after the task (always, even on panic).
func (sc *Schedule) After(fn Task) *Schedule {
	sc.e.afterHook = fn
	return sc
}

// Name gives the entry a human-readable identifier for logging.
func (sc *Schedule) Name(id string) *Schedule {
	sc.e.id = id
	return sc
}

// Run registers the task with the scheduler.
func (sc *Schedule) Run(fn Task) {
	sc.e.task = fn
	sc.s.mu.Lock()
	defer sc.s.mu.Unlock()
	if sc.e.id == "" {
		sc.e.id = fmt.Sprintf("task-%d", len(sc.s.entries)+1)
	}
	sc.s.entries = append(sc.s.entries, sc.e)
}

// ------------------- Scheduler loop -------------------

// Start runs the scheduler loop in the background until ctx is cancelled.
// Interval entries run once immediately and then every interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	s.log.Info("schedule: scheduler started", "entries", len(s.List()))
}

// Wait blocks until the loop and every dispatched task have returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.dispatchDue(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("schedule: scheduler stopped")
			return
		case now := <-ticker.C:
			s.dispatchDue(ctx, now)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	current := make([]*entry, len(s.entries))
	copy(current, s.entries)
	s.mu.Unlock()

	for _, e := range current {
		if isDue(e, now) {
			s.dispatch(ctx, e, now)
		}
	}
}

func isDue(e *entry, now time.Time) bool {
	e.mu.Lock()
	last := e.lastRun
	e.mu.Unlock()

	if e.cronExpr != "" {
		// a matching minute fires once
		if !last.IsZero() && last.Truncate(time.Minute).Equal(now.Truncate(time.Minute)) {
			return false
		}
		return matchCron(e.cronExpr, now)
	}
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= e.interval
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if e.noOverlap && e.running {
		e.mu.Unlock()
		s.log.Warn("schedule: skipping overlapping task", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				s.log.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
			if e.afterHook != nil {
				e.afterHook(ctx)
			}
		}()

		if e.beforeHook != nil {
			e.beforeHook(ctx)
		}
		s.log.Info("schedule: running task", "id", e.id)
		e.task(ctx)
	}()
}

// List returns the registered entries for display.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		freq := e.cronExpr
		if freq == "" {
			freq = "every " + e.interval.String()
		}
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, freq))
	}
	return out
}

// ------------------- Minimal cron parser -------------------
// Supports 5-field cron: minute hour dom month dow
// Each field: * | n | */step | a-b | a-b/step, comma-separated lists allowed.

var cronBounds = [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}

// ParseCron reports whether expr is a valid 5-field expression.
func ParseCron(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Errorf("schedule: cron %q: want 5 fields, got %d", expr, len(fields))
	}
	for i, f := range fields {
		for _, part := range strings.Split(f, ",") {
			if _, _, _, err := parsePart(part, cronBounds[i][0], cronBounds[i][1]); err != nil {
				return fmt.Errorf("schedule: cron %q: field %d: %w", expr, i+1, err)
			}
		}
	}
	return nil
}

func matchCron(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	vals := [5]int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, f := range fields {
		if !matchField(f, vals[i], cronBounds[i][0], cronBounds[i][1]) {
			return false
		}
	}
	return true
}

func matchField(field string, val, min, max int) bool {
	for _, part := range strings.Split(field, ",") {
		lo, hi, step, err := parsePart(part, min, max)
		if err != nil {
			continue
		}
		if val >= lo && val <= hi && (val-lo)%step == 0 {
			return true
		}
	}
	return false
}

func parsePart(part string, min, max int) (lo, hi, step int, err error) {
	step = 1
	if i := strings.IndexByte(part, '/'); i >= 0 {
		step, err = strconv.Atoi(part[i+1:])
		if err != nil || step <= 0 {
			return 0, 0, 0, fmt.Errorf("bad step in %q", part)
		}
		part = part[:i]
	}

	switch {
	case part == "*":
		lo, hi = min, max
	case strings.Contains(part, "-"):
		bounds := strings.SplitN(part, "-", 2)
		if lo, err = strconv.Atoi(bounds[0]); err != nil {
			return 0, 0, 0, fmt.Errorf("bad range %q", part)
		}
		if hi, err = strconv.Atoi(bounds[1]); err != nil {
			return 0, 0, 0, fmt.Errorf("bad range %q", part)
		}
	default:
		if lo, err = strconv.Atoi(part); err != nil {
			return 0, 0, 0, fmt.Errorf("bad value %q", part)
		}
		hi = lo
		if step > 1 {
			hi = max
		}
	}

	if lo < min || hi > max || lo > hi {
		return 0, 0, 0, fmt.Errorf("%q out of range %d-%d", part, min, max)
	}
	return lo, hi, step, nil
}
