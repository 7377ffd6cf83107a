package repositories_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/app/repositories"
	"github.com/shashiranjanraj/catalogsync/pkg/database"
)

func str(s string) *string   { return &s }
func num(f float64) *float64 { return &f }

func openDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}

func newRepo(t *testing.T, opts ...repositories.Option) (*repositories.ProductRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.db")
	db := openDB(t, path)
	return repositories.NewProductRepository(db, opts...), path
}

func seed(t *testing.T, repo *repositories.ProductRepository, products ...models.Product) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.EnsureSchema(ctx))
	_, err := repo.UpsertBatch(ctx, products)
	require.NoError(t, err)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))

	products, err := repo.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestUpsertBatch_ReplacesByID(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	seed(t, repo, models.Product{ID: 1, Title: str("Shirt"), Price: num(9.99), Description: str("cotton")})

	n, err := repo.UpsertBatch(ctx, []models.Product{{ID: 1, Title: str("Shirt"), Price: num(12.00)}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	products, err := repo.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 12.00, *products[0].Price)
	assert.Nil(t, products[0].Description, "absent fields overwrite the previous value")
}

func TestUpsertBatch_DedupsInputLastWins(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.EnsureSchema(ctx))

	n, err := repo.UpsertBatch(ctx, []models.Product{
		{ID: 1, Title: str("first")},
		{ID: 2, Title: str("other")},
		{ID: 1, Title: str("last")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	p, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "last", p.TitleOrEmpty())
}

func TestUpsertBatch_Empty(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.EnsureSchema(ctx))

	n, err := repo.UpsertBatch(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertBatch_RollsBackOnMidBatchFailure(t *testing.T) {
	repo, path := newRepo(t, repositories.WithBatchSize(2))
	ctx := context.Background()
	seed(t, repo, models.Product{ID: 1, Title: str("Shirt"), Price: num(9.99)})

	db := openDB(t, path)
	var calls atomic.Int32
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_second_chunk", func(tx *gorm.DB) {
		if calls.Add(1) == 2 {
			tx.AddError(errors.New("disk I/O error"))
		}
	}))
	failing := repositories.NewProductRepository(db, repositories.WithBatchSize(2))

	_, err := failing.UpsertBatch(ctx, []models.Product{
		{ID: 1, Price: num(99)},
		{ID: 2}, {ID: 3}, {ID: 4}, {ID: 5},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, repositories.ErrStorageWrite)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))

	products, err := repo.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 9.99, *products[0].Price)
}

func TestUpsertBatch_ClosedDatabaseIsUnavailable(t *testing.T) {
	repo, path := newRepo(t)
	ctx := context.Background()
	seed(t, repo, models.Product{ID: 7, Title: str("Ring")})

	db := openDB(t, path)
	require.NoError(t, database.Close(db))

	_, err := repositories.NewProductRepository(db).UpsertBatch(ctx, []models.Product{{ID: 7, Title: str("changed")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, repositories.ErrStorageUnavailable)

	var se *repositories.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, repositories.KindUnavailable, se.Kind)

	p, err := repo.FindByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Ring", p.TitleOrEmpty())
}

func TestReadAll_MissingTable(t *testing.T) {
	repo, _ := newRepo(t)

	products, err := repo.ReadAll(context.Background())
	assert.NotNil(t, products)
	assert.Empty(t, products)
	assert.ErrorIs(t, err, repositories.ErrStorageUnavailable)
}

func TestReadAll_NilHandle(t *testing.T) {
	repo := repositories.NewProductRepository(nil)

	products, err := repo.ReadAll(context.Background())
	assert.Empty(t, products)
	assert.ErrorIs(t, err, repositories.ErrStorageUnavailable)
}

func TestFindByID_NotFound(t *testing.T) {
	repo, _ := newRepo(t)
	seed(t, repo, models.Product{ID: 1})

	_, err := repo.FindByID(context.Background(), 42)
	assert.ErrorIs(t, err, repositories.ErrProductNotFound)
}
