package kernel_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalogsync/app/controllers"
	"github.com/shashiranjanraj/catalogsync/app/repositories"
	"github.com/shashiranjanraj/catalogsync/app/routes"
	"github.com/shashiranjanraj/catalogsync/app/services"
	"github.com/shashiranjanraj/catalogsync/internal/kernel"
	"github.com/shashiranjanraj/catalogsync/pkg/database"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/middleware"
	"github.com/shashiranjanraj/catalogsync/pkg/sse"
)

func newKernel(t *testing.T, catalogURL string) *kernel.HTTPKernel {
	t.Helper()
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "products.db")})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	repo := repositories.NewProductRepository(db)
	syncer := services.NewSyncService(services.NewCatalogFetcher(catalogURL, 0), repo, services.WithSyncLogger(logger.Discard()))
	query := services.NewCatalogQuery(repo)
	schema, err := controllers.CatalogSchema(query)
	require.NoError(t, err)

	return kernel.NewHTTPKernel(kernel.Deps{
		Controllers: routes.Controllers{
			Products: controllers.NewProductController(query),
			Catalog:  controllers.NewCatalogController(syncer, nil),
			Health:   controllers.NewHealthController(repo, syncer),
		},
		Schema:      &schema,
		RateLimiter: middleware.NewRateLimiter(1000),
		CORSOrigins: []string{"*"},
	})
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	h.ServeHTTP(rec, req)
	return rec
}

func TestKernel_SyncThenRead(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"title":"Shirt","price":9.99,"category":"clothing"},{"id":2,"title":"Ring","price":168,"category":"jewelery"}]`))
	}))
	defer upstream.Close()
	h := newKernel(t, upstream.URL).Handler()

	rec := do(h, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":false`)

	rec = do(h, http.MethodPost, "/api/catalog/sync", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(h, http.MethodGet, "/api/products?q=shirt", "")
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(h, http.MethodGet, "/api/products/2", "")
	assert.Contains(t, rec.Body.String(), `"title":"Ring"`)

	rec = do(h, http.MethodPost, "/graphql", `{"query":"{ categories }"}`)
	assert.JSONEq(t, `{"data":{"categories":["clothing","jewelery"]}}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/health", "")
	assert.Contains(t, rec.Body.String(), `"products":2`)

	rec = do(h, http.MethodGet, "/api/catalog/status", "")
	assert.Contains(t, rec.Body.String(), `"state":"idle"`)
}

func TestKernel_UpstreamFailureIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	rec := do(newKernel(t, upstream.URL).Handler(), http.MethodPost, "/api/catalog/sync", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"fetch_error:http_status"`)
}

func TestKernel_OperationalEndpoints(t *testing.T) {
	k := newKernel(t, "http://127.0.0.1:1")
	h := k.Handler()

	rec := do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalogsync_")

	rec = do(h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":404`)

	rec = do(h, http.MethodDelete, "/api/products", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	names := map[string]bool{}
	for _, r := range k.Routes() {
		names[r.Name] = true
	}
	for _, want := range []string{"health", "metrics", "graphql", "products.index", "products.show", "products.stats", "catalog.sync", "catalog.status"} {
		assert.True(t, names[want], want)
	}
}

func TestKernel_EventStreamThroughMiddleware(t *testing.T) {
	broker := sse.NewBroker()
	k := kernel.NewHTTPKernel(kernel.Deps{
		Controllers: routes.Controllers{
			Products: &controllers.ProductController{},
			Catalog:  &controllers.CatalogController{},
			Health:   &controllers.HealthController{},
		},
		Events:      broker,
		RateLimiter: middleware.NewRateLimiter(1000),
	})
	srv := httptest.NewServer(k.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/catalog", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.Eventually(t, func() bool { return broker.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, broker.PublishJSON("catalog.synced", map[string]int{"count": 1}))

	line, err := bufio.NewReader(res.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: catalog.synced\n", line)
}
