package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/app/repositories"
	"github.com/shashiranjanraj/catalogsync/pkg/collection"
)

// ProductReader is the read side of the product repository.
type ProductReader interface {
	ReadAll(ctx context.Context) ([]models.Product, error)
	FindByID(ctx context.Context, id int64) (*models.Product, error)
}

// ProductFilter narrows a product list. Zero values mean "no constraint".
type ProductFilter struct {
	Search     string
	MinPrice   *float64
	MaxPrice   *float64
	Categories []string
}

// CategoryCount is the number of products in one category and their share
// of the filtered set.
type CategoryCount struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Share    float64 `json:"share"`
}

// PriceStats summarises prices over products that have one.
type PriceStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// CatalogView is a filtered product list. Available is false when the store
// could not be read; Products is then empty.
type CatalogView struct {
	Products  []models.Product `json:"products"`
	Total     int              `json:"total"`
	Available bool             `json:"available"`
}

// CatalogStats is the aggregate view behind the dashboard charts.
type CatalogStats struct {
	Total      int             `json:"total"`
	Categories []CategoryCount `json:"categories"`
	Prices     PriceStats      `json:"prices"`
	Available  bool            `json:"available"`
}

// CatalogQuery serves read-only views over the stored catalog.
type CatalogQuery struct {
	reader ProductReader
}

func NewCatalogQuery(reader ProductReader) *CatalogQuery {
	return &CatalogQuery{reader: reader}
}

// List returns the products matching f. An unavailable store yields an empty
// view with Available=false and no error.
func (q *CatalogQuery) List(ctx context.Context, f ProductFilter) (CatalogView, error) {
	all, ok, err := q.readAll(ctx)
	if err != nil {
		return CatalogView{Products: []models.Product{}}, err
	}
	filtered := Filter(all, f)
	return CatalogView{Products: filtered, Total: len(filtered), Available: ok}, nil
}

// Stats aggregates the products matching f.
func (q *CatalogQuery) Stats(ctx context.Context, f ProductFilter) (CatalogStats, error) {
	all, ok, err := q.readAll(ctx)
	if err != nil {
		return CatalogStats{Categories: []CategoryCount{}}, err
	}
	filtered := Filter(all, f)
	return CatalogStats{
		Total:      len(filtered),
		Categories: CategoryCounts(filtered),
		Prices:     Prices(filtered),
		Available:  ok,
	}, nil
}

// Categories lists the distinct categories in the store, sorted.
func (q *CatalogQuery) Categories(ctx context.Context) ([]string, error) {
	all, _, err := q.readAll(ctx)
	if err != nil {
		return []string{}, err
	}
	names := collection.Unique(collection.Map(all, models.Product.CategoryOrEmpty))
	return collection.SortBy(names, func(a, b string) bool { return a < b }), nil
}

// Get returns one product. Errors come straight from the store.
func (q *CatalogQuery) Get(ctx context.Context, id int64) (*models.Product, error) {
	return q.reader.FindByID(ctx, id)
}

func (q *CatalogQuery) readAll(ctx context.Context) ([]models.Product, bool, error) {
	all, err := q.reader.ReadAll(ctx)
	if errors.Is(err, repositories.ErrStorageUnavailable) {
		return []models.Product{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return all, true, nil
}

// Filter applies f to products. Search is a case-insensitive substring
// match on the title. Price bounds are inclusive; products without a price
// are dropped only when a bound is set. Categories is a set membership test.
func Filter(products []models.Product, f ProductFilter) []models.Product {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	cats := make(map[string]struct{}, len(f.Categories))
	for _, c := range f.Categories {
		cats[c] = struct{}{}
	}

	out := collection.Filter(products, func(p models.Product) bool {
		if search != "" && !strings.Contains(strings.ToLower(p.TitleOrEmpty()), search) {
			return false
		}
		if f.MinPrice != nil && (p.Price == nil || *p.Price < *f.MinPrice) {
			return false
		}
		if f.MaxPrice != nil && (p.Price == nil || *p.Price > *f.MaxPrice) {
			return false
		}
		if len(cats) > 0 {
			if _, ok := cats[p.CategoryOrEmpty()]; !ok {
				return false
			}
		}
		return true
	})
	if out == nil {
		return []models.Product{}
	}
	return out
}

// CategoryCounts counts products per category, largest first, ties by
// name. Products without a category count under "".
func CategoryCounts(products []models.Product) []CategoryCount {
	groups := collection.GroupBy(products, models.Product.CategoryOrEmpty)
	counts := make([]CategoryCount, 0, len(groups))
	for name, members := range groups {
		counts = append(counts, CategoryCount{
			Category: name,
			Count:    len(members),
			Share:    math.Round(float64(len(members))/float64(len(products))*1000) / 1000,
		})
	}
	return collection.SortBy(counts, func(a, b CategoryCount) bool {
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
}

// Prices computes min, max and mean over products that carry a price.
func Prices(products []models.Product) PriceStats {
	priced := collection.Filter(products, func(p models.Product) bool { return p.Price != nil })
	if len(priced) == 0 {
		return PriceStats{}
	}
	stats := PriceStats{Count: len(priced), Min: math.Inf(1), Max: math.Inf(-1)}
	for _, p := range priced {
		stats.Min = math.Min(stats.Min, *p.Price)
		stats.Max = math.Max(stats.Max, *p.Price)
	}
	stats.Mean = collection.Sum(priced, func(p models.Product) float64 { return *p.Price }) / float64(len(priced))
	return stats
}
