package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalogsync/pkg/database"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/queue"
)

// ─── Job types ────────────────────────────────────────────────────────────────

type echoJob struct {
	Val  string `json:"val"`
	seen chan string
}

func (j *echoJob) JobName() string { return "test:echo" }

func (j *echoJob) Handle(ctx context.Context) error {
	j.seen <- j.Val
	return nil
}

type failJob struct {
	attempts *atomic.Int32
	panics   bool
}

func (j *failJob) Handle(ctx context.Context) error {
	j.attempts.Add(1)
	if j.panics {
		panic("boom")
	}
	return errors.New("always fails")
}

func newManager(t *testing.T, opts ...queue.Option) (*queue.Manager, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	opts = append([]queue.Option{queue.WithBackoff(time.Millisecond), queue.WithLogger(logger.Discard())}, opts...)
	m := queue.New(opts...)
	t.Cleanup(func() {
		cancel()
		m.Wait()
	})
	return m, ctx
}

// ─── Tests ────────────────────────────────────────────────────────────────────

func TestDispatchAndProcess(t *testing.T) {
	m, ctx := newManager(t)
	seen := make(chan string, 1)
	m.Register("test:echo", func() queue.Job { return &echoJob{seen: seen} })
	m.StartWorkers(ctx, 2)

	require.NoError(t, m.Dispatch(ctx, &echoJob{Val: "hello"}))

	select {
	case v := <-seen:
		assert.Equal(t, "hello", v)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestDispatch_UnknownJob(t *testing.T) {
	m, ctx := newManager(t)
	err := m.Dispatch(ctx, &echoJob{})
	assert.ErrorIs(t, err, queue.ErrUnknownJob)
}

func TestFailedJob_RetriedThenPersisted(t *testing.T) {
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "q.db")})
	require.NoError(t, err)
	defer database.Close(db)

	m, ctx := newManager(t, queue.WithMaxRetry(2))
	require.NoError(t, m.UseDB(db))

	attempts := &atomic.Int32{}
	m.Register("*queue_test.failJob", func() queue.Job { return &failJob{attempts: attempts} })
	m.StartWorkers(ctx, 1)

	require.NoError(t, m.Dispatch(ctx, &failJob{attempts: &atomic.Int32{}}))

	require.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), attempts.Load())

	failed := m.FailedJobs()[0]
	assert.Equal(t, "*queue_test.failJob", failed.Type)
	assert.Equal(t, 2, failed.Attempts)

	require.Eventually(t, func() bool {
		rows, err := m.StoredFailedJobs(10)
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)
	rows, _ := m.StoredFailedJobs(10)
	assert.Equal(t, "always fails", rows[0].Error)
}

func TestPanickingJobIsRecorded(t *testing.T) {
	m, ctx := newManager(t, queue.WithMaxRetry(1))
	attempts := &atomic.Int32{}
	m.Register("*queue_test.failJob", func() queue.Job { return &failJob{attempts: attempts, panics: true} })
	m.StartWorkers(ctx, 1)

	require.NoError(t, m.Dispatch(ctx, &failJob{attempts: &atomic.Int32{}}))

	require.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, m.FailedJobs()[0].Err.Error(), "panicked")
}

func TestDispatchAfter_MemoryDriver(t *testing.T) {
	m, ctx := newManager(t)
	seen := make(chan string, 1)
	m.Register("test:echo", func() queue.Job { return &echoJob{seen: seen} })
	m.StartWorkers(ctx, 1)

	require.NoError(t, m.DispatchAfter(ctx, &echoJob{Val: "later"}, 20*time.Millisecond))

	select {
	case v := <-seen:
		assert.Equal(t, "later", v)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed job was not processed")
	}
}

func TestMemoryDriver_Full(t *testing.T) {
	d := queue.NewMemoryDriver()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, d.Push(ctx, []byte("x")))
	}
	assert.ErrorIs(t, d.Push(ctx, []byte("x")), queue.ErrQueueFull)
	assert.Equal(t, 1000, d.Len())
}
