// Package kernel assembles the HTTP handler: global middleware, operational
// endpoints and the application routes.
package kernel

import (
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/catalogsync/app/routes"
	gql "github.com/shashiranjanraj/catalogsync/pkg/graphql"
	"github.com/shashiranjanraj/catalogsync/pkg/metrics"
	"github.com/shashiranjanraj/catalogsync/pkg/middleware"
	"github.com/shashiranjanraj/catalogsync/pkg/reqid"
	"github.com/shashiranjanraj/catalogsync/pkg/response"
	"github.com/shashiranjanraj/catalogsync/pkg/router"
	"github.com/shashiranjanraj/catalogsync/pkg/sse"
	"github.com/shashiranjanraj/catalogsync/pkg/ws"
)

// Deps is everything the kernel mounts. Schema, Hub and Events are optional.
type Deps struct {
	Controllers routes.Controllers
	Schema      *graphql.Schema
	Hub         *ws.Hub
	Events      *sse.Broker
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
}

type HTTPKernel struct {
	router *router.Router
}

func NewHTTPKernel(d Deps) *HTTPKernel {
	r := router.New()

	// Global middleware stack (outermost → innermost):
	//  1. Prometheus metrics, outermost for accurate total latency
	//  2. Recovery
	//  3. Request ID, before anything logs
	//  4. Logger
	//  5. CORS
	//  6. Rate limiter
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	if len(d.CORSOrigins) > 0 {
		r.Use(middleware.CORS(middleware.DefaultCORSOptions(d.CORSOrigins)))
	}
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { response.MethodNotAllowed(w) })

	r.Get("/metrics", "metrics", metrics.Handler())
	if d.Schema != nil {
		r.Get("/graphql", "graphql.get", gql.Handler(*d.Schema))
		r.Post("/graphql", "graphql", gql.Handler(*d.Schema))
	}
	if d.Hub != nil {
		r.Get("/ws/catalog", "ws.catalog", ws.Handler(d.Hub))
	}
	if d.Events != nil {
		r.Get("/events/catalog", "sse.catalog", sse.Handler(d.Events))
	}

	routes.RegisterAPI(r, d.Controllers)
	return &HTTPKernel{router: r}
}

func (k *HTTPKernel) Handler() http.Handler { return k.router.Handler() }

// Routes lists the mounted routes for route:list.
func (k *HTTPKernel) Routes() []router.Route { return k.router.Routes() }
