// Package routes registers the application's HTTP routes.
package routes

import (
	"github.com/shashiranjanraj/catalogsync/app/controllers"
	"github.com/shashiranjanraj/catalogsync/pkg/router"
)

// Controllers holds the handlers RegisterAPI mounts.
type Controllers struct {
	Products *controllers.ProductController
	Catalog  *controllers.CatalogController
	Health   *controllers.HealthController
}

func RegisterAPI(r *router.Router, c Controllers) {
	r.Get("/health", "health", c.Health.Show)

	api := r.Group("/api")

	products := api.Group("/products")
	products.Get("/", "products.index", c.Products.Index)
	products.Get("/stats", "products.stats", c.Products.Stats)
	products.Get("/categories", "products.categories", c.Products.Categories)
	products.Get("/{id}", "products.show", c.Products.Show)

	catalog := api.Group("/catalog")
	catalog.Post("/sync", "catalog.sync", c.Catalog.Sync)
	catalog.Get("/status", "catalog.status", c.Catalog.Status)
}
