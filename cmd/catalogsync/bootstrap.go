package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalogsync/app/jobs"
	"github.com/shashiranjanraj/catalogsync/app/repositories"
	"github.com/shashiranjanraj/catalogsync/app/services"
	"github.com/shashiranjanraj/catalogsync/config"
	"github.com/shashiranjanraj/catalogsync/pkg/cache"
	"github.com/shashiranjanraj/catalogsync/pkg/database"
	"github.com/shashiranjanraj/catalogsync/pkg/event"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/queue"
	"github.com/shashiranjanraj/catalogsync/pkg/storage"
)

// application is the explicitly wired object graph every command shares.
type application struct {
	db       *gorm.DB
	repo     *repositories.ProductRepository
	bus      *event.Bus
	syncer   *services.SyncService
	query    *services.CatalogQuery
	queue    *queue.Manager
	exporter *services.SnapshotExporter

	closers []func() error
}

type bootOptions struct {
	queue    bool
	exporter bool
}

func bootstrap(ctx context.Context, opts bootOptions) (*application, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &application{bus: event.New()}

	db, err := database.Open(database.FromEnv())
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() error { return database.Close(db) })

	a.repo = repositories.NewProductRepository(db)
	fetcher := services.NewCatalogFetcher(config.CatalogURL(), config.CatalogRatePerMinute(),
		services.WithFetchTimeout(config.CatalogTimeout()))
	a.syncer = services.NewSyncService(fetcher, a.repo,
		services.WithEventBus(a.bus),
		services.WithSyncLock(repositories.NewLockRepository(db), config.SyncLockTTL()))
	if err := a.bootCache(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if opts.queue {
		if err := a.bootQueue(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if opts.exporter || config.SnapshotEnabled() {
		disk, err := storage.Open(ctx, config.StorageDefault())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.exporter = services.NewSnapshotExporter(a.repo, disk,
			services.WithSnapshotDir(config.SnapshotDir()),
			services.WithSnapshotKeep(config.SnapshotKeep()))
		if config.SnapshotEnabled() {
			a.exporter.Listen(a.bus)
		}
	}
	return a, nil
}

// checkCacheLayout rejects a process-local cache when syncs can run in
// another process. Only the bus of the syncing process invalidates the
// cache, so a memory cache needs the memory queue, which keeps queued and
// scheduled syncs inside serve.
func checkCacheLayout(cacheDriver, queueDriver string) error {
	if cacheDriver == "memory" && queueDriver != "memory" {
		return fmt.Errorf("cache: CACHE_DRIVER=memory requires QUEUE_DRIVER=memory (got %q); use CACHE_DRIVER=redis when workers run in separate processes", queueDriver)
	}
	return nil
}

// bootCache puts a read-through cache in front of the repository for the
// query side. Sync always writes straight to the repository.
func (a *application) bootCache(ctx context.Context) error {
	if err := checkCacheLayout(config.CacheDriver(), config.QueueDriver()); err != nil {
		return err
	}

	var store cache.Store
	switch config.CacheDriver() {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
		})
		rs := cache.NewRedisStore(rdb, "catalogsync:cache:")
		if err := rs.Ping(ctx); err != nil {
			rdb.Close()
			return fmt.Errorf("cache: redis %s: %w", config.RedisAddr(), err)
		}
		a.closers = append(a.closers, rdb.Close)
		store = rs
	case "memory":
		store = cache.NewMemoryStore()
	default:
		a.query = services.NewCatalogQuery(a.repo)
		return nil
	}

	cached := services.NewCachedReader(a.repo, store, config.CacheTTL())
	cached.Listen(a.bus)
	a.query = services.NewCatalogQuery(cached)
	return nil
}

func (a *application) bootQueue(ctx context.Context) error {
	opts := []queue.Option{queue.WithMaxRetry(config.QueueMaxRetry())}

	if config.QueueDriver() == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
		})
		driver := queue.NewRedisDriver(rdb)
		if err := driver.Ping(ctx); err != nil {
			driver.Close()
			return fmt.Errorf("queue: redis %s: %w", config.RedisAddr(), err)
		}
		a.closers = append(a.closers, driver.Close)
		opts = append(opts, queue.WithDriver(driver))
	}

	a.queue = queue.New(opts...)
	if err := a.queue.UseDB(a.db); err != nil {
		return err
	}
	jobs.Register(a.queue, a.syncer)
	return nil
}

// Close waits for in-flight event listeners, then releases resources in
// reverse order of acquisition.
func (a *application) Close() {
	a.bus.Wait()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("shutdown: release resources", "error", err)
	}
}
