package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/catalogsync/app/repositories"
	"github.com/shashiranjanraj/catalogsync/app/services"
	"github.com/shashiranjanraj/catalogsync/pkg/bind"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/response"
)

// ProductQuery is the query string accepted by the product listing and
// stats endpoints.
type ProductQuery struct {
	Search     string   `query:"q"         validate:"max=200"`
	MinPrice   *float64 `query:"min_price" validate:"nullable,gte=0"`
	MaxPrice   *float64 `query:"max_price" validate:"nullable,gte=0"`
	Categories []string `query:"category"  validate:"max=200"`
}

// Filter converts the query into a services.ProductFilter.
func (q ProductQuery) Filter() services.ProductFilter {
	return services.ProductFilter{
		Search:     q.Search,
		MinPrice:   q.MinPrice,
		MaxPrice:   q.MaxPrice,
		Categories: q.Categories,
	}
}

type ProductController struct {
	query *services.CatalogQuery
}

func NewProductController(query *services.CatalogQuery) *ProductController {
	return &ProductController{query: query}
}

func (c *ProductController) bindFilter(w http.ResponseWriter, r *http.Request) (services.ProductFilter, bool) {
	var q ProductQuery
	if errs := bind.Query(r, &q); errs != nil {
		response.ValidationError(w, errs)
		return services.ProductFilter{}, false
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		response.ValidationError(w, map[string]string{"min_price": "The min_price must not be greater than max_price."})
		return services.ProductFilter{}, false
	}
	return q.Filter(), true
}

// Index lists products matching the query. An unreadable store answers 200
// with an empty list and "available": false.
func (c *ProductController) Index(w http.ResponseWriter, r *http.Request) {
	f, ok := c.bindFilter(w, r)
	if !ok {
		return
	}
	view, err := c.query.List(r.Context(), f)
	if err != nil {
		c.serverError(w, r, "list products", err)
		return
	}
	response.Success(w, view)
}

// Show returns one product by id.
func (c *ProductController) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.ValidationError(w, map[string]string{"id": "The id must be an integer."})
		return
	}

	p, err := c.query.Get(r.Context(), id)
	switch {
	case errors.Is(err, repositories.ErrProductNotFound):
		response.NotFound(w)
	case errors.Is(err, repositories.ErrStorageUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "Catalog store unavailable")
	case err != nil:
		c.serverError(w, r, "show product", err)
	default:
		response.Success(w, p)
	}
}

// Stats returns category counts and price statistics for the query.
func (c *ProductController) Stats(w http.ResponseWriter, r *http.Request) {
	f, ok := c.bindFilter(w, r)
	if !ok {
		return
	}
	stats, err := c.query.Stats(r.Context(), f)
	if err != nil {
		c.serverError(w, r, "product stats", err)
		return
	}
	response.Success(w, stats)
}

// Categories lists the distinct categories in the store.
func (c *ProductController) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := c.query.Categories(r.Context())
	if err != nil {
		c.serverError(w, r, "list categories", err)
		return
	}
	response.Success(w, cats)
}

func (c *ProductController) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger.WithCtx(r.Context()).Error("products: "+op, "error", err)
	response.Error(w, http.StatusInternalServerError, "Internal Server Error")
}
