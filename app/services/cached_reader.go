package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/pkg/cache"
	"github.com/shashiranjanraj/catalogsync/pkg/event"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
)

const catalogCacheKey = "products:all"

// CachedReader is a read-through cache in front of a ProductReader. Only
// successful reads are cached, so a store that comes back after being
// unavailable is seen on the next request.
type CachedReader struct {
	next  ProductReader
	store cache.Store
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedReader(next ProductReader, store cache.Store, ttl time.Duration) *CachedReader {
	return &CachedReader{next: next, store: store, ttl: ttl, log: logger.L}
}

// ReadAll serves the cached catalog, filling it from the store on a miss.
// Cache errors are logged and fall through to the store.
func (c *CachedReader) ReadAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	hit, err := c.store.Get(ctx, catalogCacheKey, &products)
	if err != nil {
		c.log.Warn("cache: read catalog", "error", err)
	}
	if hit {
		if products == nil {
			products = []models.Product{}
		}
		return products, nil
	}

	products, err = c.next.ReadAll(ctx)
	if err != nil {
		return products, err
	}
	if err := c.store.Set(ctx, catalogCacheKey, products, c.ttl); err != nil {
		c.log.Warn("cache: store catalog", "error", err)
	}
	return products, nil
}

// FindByID always asks the store.
func (c *CachedReader) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	return c.next.FindByID(ctx, id)
}

// Invalidate drops the cached catalog.
func (c *CachedReader) Invalidate(ctx context.Context) error {
	return c.store.Del(ctx, catalogCacheKey)
}

// Listen invalidates the cache after every successful sync on bus.
func (c *CachedReader) Listen(bus *event.Bus) {
	bus.Listen(EventSynced, func(interface{}) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Invalidate(ctx); err != nil {
			c.log.Warn("cache: invalidate catalog", "error", err)
		}
	})
}
