package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/pkg/metrics"
)

const defaultBatchSize = 100

// ProductRepository is the catalog store: one table of products keyed by
// upstream id.
type ProductRepository struct {
	db        *gorm.DB
	batchSize int
}

// Option tunes a ProductRepository.
type Option func(*ProductRepository)

// WithBatchSize sets how many rows go into one INSERT statement. All
// statements of an UpsertBatch still share one transaction.
func WithBatchSize(n int) Option {
	return func(r *ProductRepository) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewProductRepository(db *gorm.DB, opts ...Option) *ProductRepository {
	r := &ProductRepository{db: db, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureSchema creates the products table if it does not exist yet.
func (r *ProductRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return unavailable("ensure schema", errors.New("no database handle"))
	}
	if err := r.db.WithContext(ctx).AutoMigrate(&models.Product{}); err != nil {
		return unavailable("ensure schema", err)
	}
	return nil
}

// UpsertBatch writes products in a single transaction, replacing every
// column of rows whose id already exists. Duplicate ids in the input
// collapse to their last occurrence. Either every row applies or none do.
// It returns the number of distinct ids written.
func (r *ProductRepository) UpsertBatch(ctx context.Context, products []models.Product) (int, error) {
	if r.db == nil {
		return 0, unavailable("upsert", errors.New("no database handle"))
	}
	defer metrics.ObserveDBQuery("upsert", time.Now())

	rows := dedupByID(products)
	if len(rows) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, unavailable("upsert: begin", tx.Error)
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(&rows, r.batchSize).Error
	if err != nil {
		tx.Rollback()
		return 0, writeFailed("upsert", err)
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return 0, writeFailed("upsert: commit", err)
	}

	return len(rows), nil
}

// ReadAll returns every stored product. When the table is missing or the
// database cannot be reached it returns an empty slice together with an
// error matching ErrStorageUnavailable, so callers can render "no data".
func (r *ProductRepository) ReadAll(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	if r.db == nil {
		return products, unavailable("read all", errors.New("no database handle"))
	}
	defer metrics.ObserveDBQuery("select", time.Now())

	db := r.db.WithContext(ctx)
	if !db.Migrator().HasTable(&models.Product{}) {
		return products, unavailable("read all", fmt.Errorf("table %q does not exist", models.Product{}.TableName()))
	}

	if err := db.Order("id").Find(&products).Error; err != nil {
		return []models.Product{}, unavailable("read all", err)
	}
	return products, nil
}

// FindByID returns a single product or ErrProductNotFound.
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	if r.db == nil {
		return nil, unavailable("find", errors.New("no database handle"))
	}
	defer metrics.ObserveDBQuery("select", time.Now())

	db := r.db.WithContext(ctx)
	if !db.Migrator().HasTable(&models.Product{}) {
		return nil, unavailable("find", fmt.Errorf("table %q does not exist", models.Product{}.TableName()))
	}

	var p models.Product
	err := db.Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, unavailable("find", err)
	}
	return &p, nil
}

// Count returns the number of stored products.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, unavailable("count", errors.New("no database handle"))
	}
	db := r.db.WithContext(ctx)
	if !db.Migrator().HasTable(&models.Product{}) {
		return 0, unavailable("count", fmt.Errorf("table %q does not exist", models.Product{}.TableName()))
	}

	var n int64
	if err := db.Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// dedupByID keeps the last occurrence of every id, in first-seen order.
func dedupByID(products []models.Product) []models.Product {
	index := make(map[int64]int, len(products))
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if i, ok := index[p.ID]; ok {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
