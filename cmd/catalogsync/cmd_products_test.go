package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/app/services"
)

func TestPrintProducts(t *testing.T) {
	title, cat, price := "Shirt", "clothing", 9.99
	var buf bytes.Buffer
	require.NoError(t, printProducts(&buf, []models.Product{
		{ID: 1, Title: &title, Category: &cat, Price: &price},
		{ID: 2},
	}, 5))

	out := buf.String()
	assert.Contains(t, out, "ID  PRICE  CATEGORY  TITLE")
	assert.Contains(t, out, "1   9.99   clothing  Shirt")
	assert.Contains(t, out, "2   -")
	assert.Contains(t, out, "2 of 5 products")
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printStats(&buf, services.CatalogStats{
		Total:      3,
		Available:  true,
		Categories: []services.CategoryCount{{Category: "jewelery", Count: 2, Share: 0.667}, {Category: "clothing", Count: 1, Share: 0.333}},
		Prices:     services.PriceStats{Count: 3, Min: 9.99, Max: 168, Mean: 62.99},
	}))
	assert.Contains(t, buf.String(), "66.7%")
	assert.Contains(t, buf.String(), "min 9.99, max 168.00, mean 62.99")

	buf.Reset()
	require.NoError(t, printStats(&buf, services.CatalogStats{}))
	assert.Contains(t, buf.String(), "unavailable")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"sync", "serve", "queue:work", "schedule:run", "products", "export", "route:list"} {
		assert.True(t, names[want], want)
	}
}
