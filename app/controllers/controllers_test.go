package controllers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalogsync/app/controllers"
	"github.com/shashiranjanraj/catalogsync/app/jobs"
	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/app/repositories"
	"github.com/shashiranjanraj/catalogsync/app/services"
	gql "github.com/shashiranjanraj/catalogsync/pkg/graphql"
	"github.com/shashiranjanraj/catalogsync/pkg/queue"
)

// ─── fakes ────────────────────────────────────────────────────────────────────

type fakeReader struct {
	products []models.Product
	err      error
}

func (r fakeReader) ReadAll(ctx context.Context) ([]models.Product, error) {
	if r.err != nil {
		return []models.Product{}, r.err
	}
	return r.products, nil
}

func (r fakeReader) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, p := range r.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, repositories.ErrProductNotFound
}

func (r fakeReader) Count(ctx context.Context) (int64, error) {
	return int64(len(r.products)), r.err
}

type fakeSyncer struct {
	err error
}

func (f fakeSyncer) Sync(ctx context.Context) (services.SyncResult, error) {
	if f.err != nil {
		return services.SyncResult{}, f.err
	}
	now := time.Now()
	return services.SyncResult{RunID: "run-1", Count: 20, StartedAt: now, FinishedAt: now}, nil
}

func (f fakeSyncer) Status() services.SyncStatus { return services.SyncStatus{State: services.StateIdle} }

func (f fakeSyncer) State() services.State { return services.StateIdle }

type fakeDispatcher struct {
	jobs []queue.Job
	err  error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, job queue.Job) error {
	d.jobs = append(d.jobs, job)
	return d.err
}

func str(s string) *string   { return &s }
func num(f float64) *float64 { return &f }

func catalog() []models.Product {
	return []models.Product{
		{ID: 1, Title: str("Mens Cotton Shirt"), Price: num(9.99), Category: str("men's clothing")},
		{ID: 2, Title: str("Gold Ring"), Price: num(168), Category: str("jewelery")},
		{ID: 3, Title: str("Silver Ring"), Price: num(10.99), Category: str("jewelery")},
	}
}

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func serve(t *testing.T, h http.Handler, method, target string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func productRoutes(reader fakeReader) http.Handler {
	c := controllers.NewProductController(services.NewCatalogQuery(reader))
	r := chi.NewRouter()
	r.Get("/api/products", c.Index)
	r.Get("/api/products/stats", c.Stats)
	r.Get("/api/products/categories", c.Categories)
	r.Get("/api/products/{id}", c.Show)
	return r
}

// ─── products ─────────────────────────────────────────────────────────────────

func TestProducts_IndexFilters(t *testing.T) {
	h := productRoutes(fakeReader{products: catalog()})

	code, env := serve(t, h, http.MethodGet, "/api/products?q=ring&max_price=50&category=jewelery")
	require.Equal(t, http.StatusOK, code)

	var view services.CatalogView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.True(t, view.Available)
	require.Len(t, view.Products, 1)
	assert.Equal(t, int64(3), view.Products[0].ID)
}

func TestProducts_IndexRejectsBadQuery(t *testing.T) {
	h := productRoutes(fakeReader{products: catalog()})

	code, env := serve(t, h, http.MethodGet, "/api/products?min_price=cheap")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "min_price")

	code, env = serve(t, h, http.MethodGet, "/api/products?min_price=20&max_price=10")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "min_price")
}

func TestProducts_IndexDegradesWhenStoreUnavailable(t *testing.T) {
	unavailable := &repositories.StorageError{Kind: repositories.KindUnavailable, Op: "read all", Err: errors.New("no table")}
	h := productRoutes(fakeReader{err: unavailable})

	code, env := serve(t, h, http.MethodGet, "/api/products")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"products":[],"total":0,"available":false}`, string(env.Data))
}

func TestProducts_Show(t *testing.T) {
	h := productRoutes(fakeReader{products: catalog()})

	code, env := serve(t, h, http.MethodGet, "/api/products/2")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"title":"Gold Ring"`)

	code, _ = serve(t, h, http.MethodGet, "/api/products/99")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = serve(t, h, http.MethodGet, "/api/products/abc")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	unavailable := &repositories.StorageError{Kind: repositories.KindUnavailable, Op: "find", Err: errors.New("locked")}
	code, _ = serve(t, productRoutes(fakeReader{err: unavailable}), http.MethodGet, "/api/products/1")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestProducts_StatsAndCategories(t *testing.T) {
	h := productRoutes(fakeReader{products: catalog()})

	code, env := serve(t, h, http.MethodGet, "/api/products/stats?category=jewelery")
	require.Equal(t, http.StatusOK, code)
	var stats services.CatalogStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 10.99, stats.Prices.Min)

	code, env = serve(t, h, http.MethodGet, "/api/products/categories")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["jewelery","men's clothing"]`, string(env.Data))
}

// ─── catalog ──────────────────────────────────────────────────────────────────

func TestCatalog_SyncBlocking(t *testing.T) {
	c := controllers.NewCatalogController(fakeSyncer{}, nil)

	code, env := serve(t, http.HandlerFunc(c.Sync), http.MethodPost, "/api/catalog/sync")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"count":20`)
	assert.Contains(t, string(env.Data), `"run_id":"run-1"`)
}

func TestCatalog_SyncErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind string
	}{
		{services.ErrSyncInProgress, http.StatusConflict, "busy"},
		{&services.FetchError{Kind: services.FetchTimeout, URL: "u", Err: context.DeadlineExceeded}, http.StatusBadGateway, "fetch_error:timeout"},
		{&services.ValidationError{Reason: services.ReasonMissingID, Index: 5}, http.StatusUnprocessableEntity, "validation_error"},
		{&repositories.StorageError{Kind: repositories.KindUnavailable, Op: "begin", Err: errors.New("x")}, http.StatusServiceUnavailable, "storage_unavailable"},
		{&repositories.StorageError{Kind: repositories.KindWrite, Op: "upsert", Err: errors.New("x")}, http.StatusInternalServerError, "storage_write"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			c := controllers.NewCatalogController(fakeSyncer{err: tc.err}, nil)
			code, env := serve(t, http.HandlerFunc(c.Sync), http.MethodPost, "/api/catalog/sync")
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.kind, env.Errors["kind"])
		})
	}
}

func TestCatalog_SyncAsync(t *testing.T) {
	d := &fakeDispatcher{}
	c := controllers.NewCatalogController(fakeSyncer{}, d)

	code, env := serve(t, http.HandlerFunc(c.Sync), http.MethodPost, "/api/catalog/sync?async=true")
	require.Equal(t, http.StatusAccepted, code)
	assert.Contains(t, string(env.Data), jobs.SyncCatalogJobName)
	require.Len(t, d.jobs, 1)
	assert.Equal(t, "http", d.jobs[0].(*jobs.SyncCatalogJob).Trigger)

	code, _ = serve(t, http.HandlerFunc(controllers.NewCatalogController(fakeSyncer{}, nil).Sync), http.MethodPost, "/?async=1")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = serve(t, http.HandlerFunc(controllers.NewCatalogController(fakeSyncer{}, &fakeDispatcher{err: queue.ErrQueueFull}).Sync), http.MethodPost, "/?async=true")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestCatalog_Status(t *testing.T) {
	c := controllers.NewCatalogController(fakeSyncer{}, nil)
	code, env := serve(t, http.HandlerFunc(c.Status), http.MethodGet, "/api/catalog/status")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"state":"idle"}`, string(env.Data))
}

// ─── health ───────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	c := controllers.NewHealthController(fakeReader{products: catalog()}, fakeSyncer{})
	code, env := serve(t, http.HandlerFunc(c.Show), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"store":"ok"`)
	assert.Contains(t, string(env.Data), `"products":3`)

	c = controllers.NewHealthController(fakeReader{err: repositories.ErrStorageUnavailable}, fakeSyncer{})
	code, env = serve(t, http.HandlerFunc(c.Show), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"store":"unavailable"`)
}

// ─── graphql ──────────────────────────────────────────────────────────────────

func TestCatalogSchema(t *testing.T) {
	schema, err := controllers.CatalogSchema(services.NewCatalogQuery(fakeReader{products: catalog()}))
	require.NoError(t, err)
	h := gql.Handler(schema)

	query := `{"query":"{ products(search: \"ring\", maxPrice: 50) { total available products { id title price } } product(id: 1) { title description } missing: product(id: 42) { id } categories }"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(query)))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t, `{"data":{
		"products":{"total":1,"available":true,"products":[{"id":3,"title":"Silver Ring","price":10.99}]},
		"product":{"title":"Mens Cotton Shirt","description":null},
		"missing":null,
		"categories":["jewelery","men's clothing"]
	}}`, rec.Body.String())
}

func TestCatalogSchema_Stats(t *testing.T) {
	schema, err := controllers.CatalogSchema(services.NewCatalogQuery(fakeReader{products: catalog()}))
	require.NoError(t, err)

	query := `{"query":"{ stats(categories: [\"jewelery\"]) { total categories { category count share } prices { min max } } }"}`
	rec := httptest.NewRecorder()
	gql.Handler(schema).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(query)))

	assert.JSONEq(t, `{"data":{"stats":{
		"total":2,
		"categories":[{"category":"jewelery","count":2,"share":1}],
		"prices":{"min":10.99,"max":168}
	}}}`, rec.Body.String())
}
