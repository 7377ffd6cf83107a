package controllers

import (
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/app/repositories"
	"github.com/shashiranjanraj/catalogsync/app/services"
	gql "github.com/shashiranjanraj/catalogsync/pkg/graphql"
)

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Product",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"title":       &graphql.Field{Type: graphql.String},
		"price":       &graphql.Field{Type: graphql.Float},
		"category":    &graphql.Field{Type: graphql.String},
		"description": &graphql.Field{Type: graphql.String},
		"image":       &graphql.Field{Type: graphql.String},
	},
})

var productListType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ProductList",
	Fields: graphql.Fields{
		"total":     &graphql.Field{Type: graphql.Int},
		"available": &graphql.Field{Type: graphql.Boolean},
		"products":  &graphql.Field{Type: graphql.NewList(productType)},
	},
})

var categoryCountType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CategoryCount",
	Fields: graphql.Fields{
		"category": &graphql.Field{Type: graphql.String},
		"count":    &graphql.Field{Type: graphql.Int},
		"share":    &graphql.Field{Type: graphql.Float},
	},
})

var priceStatsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PriceStats",
	Fields: graphql.Fields{
		"count": &graphql.Field{Type: graphql.Int},
		"min":   &graphql.Field{Type: graphql.Float},
		"max":   &graphql.Field{Type: graphql.Float},
		"mean":  &graphql.Field{Type: graphql.Float},
	},
})

var catalogStatsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CatalogStats",
	Fields: graphql.Fields{
		"total":      &graphql.Field{Type: graphql.Int},
		"available":  &graphql.Field{Type: graphql.Boolean},
		"categories": &graphql.Field{Type: graphql.NewList(categoryCountType)},
		"prices":     &graphql.Field{Type: priceStatsType},
	},
})

var filterArgs = graphql.FieldConfigArgument{
	"search":     &graphql.ArgumentConfig{Type: graphql.String},
	"minPrice":   &graphql.ArgumentConfig{Type: graphql.Float},
	"maxPrice":   &graphql.ArgumentConfig{Type: graphql.Float},
	"categories": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
}

// CatalogSchema builds the read-only GraphQL schema over query:
//
//	products(search, minPrice, maxPrice, categories) { total available products { id title price } }
//	product(id) { ... }
//	categories
//	stats(...) { total categories { category count share } prices { min max mean } }
func CatalogSchema(query *services.CatalogQuery) (graphql.Schema, error) {
	root := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"products": &graphql.Field{
				Type: productListType,
				Args: filterArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					view, err := query.List(p.Context, filterFromArgs(p.Args))
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"total":     view.Total,
						"available": view.Available,
						"products":  productMaps(view.Products),
					}, nil
				},
			},
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(int)
					prod, err := query.Get(p.Context, int64(id))
					if errors.Is(err, repositories.ErrProductNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return productMap(*prod), nil
				},
			},
			"categories": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return query.Categories(p.Context)
				},
			},
			"stats": &graphql.Field{
				Type: catalogStatsType,
				Args: filterArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					st, err := query.Stats(p.Context, filterFromArgs(p.Args))
					if err != nil {
						return nil, err
					}
					cats := make([]interface{}, len(st.Categories))
					for i, c := range st.Categories {
						cats[i] = map[string]interface{}{"category": c.Category, "count": c.Count, "share": c.Share}
					}
					return map[string]interface{}{
						"total":      st.Total,
						"available":  st.Available,
						"categories": cats,
						"prices": map[string]interface{}{
							"count": st.Prices.Count,
							"min":   st.Prices.Min,
							"max":   st.Prices.Max,
							"mean":  st.Prices.Mean,
						},
					}, nil
				},
			},
		},
	})
	return gql.NewSchema(root)
}

func filterFromArgs(args map[string]interface{}) services.ProductFilter {
	var f services.ProductFilter
	if s, ok := args["search"].(string); ok {
		f.Search = s
	}
	if v, ok := args["minPrice"].(float64); ok {
		f.MinPrice = &v
	}
	if v, ok := args["maxPrice"].(float64); ok {
		f.MaxPrice = &v
	}
	if list, ok := args["categories"].([]interface{}); ok {
		for _, c := range list {
			if s, ok := c.(string); ok {
				f.Categories = append(f.Categories, s)
			}
		}
	}
	return f
}

func productMaps(products []models.Product) []interface{} {
	out := make([]interface{}, len(products))
	for i, p := range products {
		out[i] = productMap(p)
	}
	return out
}

// productMap flattens optional fields so absent values resolve to null.
func productMap(p models.Product) map[string]interface{} {
	m := map[string]interface{}{"id": int(p.ID)}
	put := func(key string, s *string) {
		if s != nil {
			m[key] = *s
		} else {
			m[key] = nil
		}
	}
	put("title", p.Title)
	put("category", p.Category)
	put("description", p.Description)
	put("image", p.Image)
	if p.Price != nil {
		m["price"] = *p.Price
	} else {
		m["price"] = nil
	}
	return m
}
