package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/app/services"
	"github.com/shashiranjanraj/catalogsync/pkg/collection"
)

var (
	productsLimit      int
	productsSearch     string
	productsCategories []string
	productsStats      bool
)

// catalogsync products
var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Print the stored catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := bootstrap(ctx, bootOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		f := services.ProductFilter{Search: productsSearch, Categories: productsCategories}
		out := cmd.OutOrStdout()
		if productsStats {
			stats, err := a.query.Stats(ctx, f)
			if err != nil {
				return err
			}
			return printStats(out, stats)
		}

		view, err := a.query.List(ctx, f)
		if err != nil {
			return err
		}
		if !view.Available {
			fmt.Fprintln(out, "No data: the catalog store is unavailable. Run `catalogsync sync` first.")
			return nil
		}
		return printProducts(out, collection.Take(view.Products, productsLimit), view.Total)
	},
}

func printProducts(out io.Writer, products []models.Product, total int) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRICE\tCATEGORY\tTITLE")
	for _, p := range products {
		price := "-"
		if p.Price != nil {
			price = fmt.Sprintf("%.2f", *p.Price)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, price, p.CategoryOrEmpty(), p.TitleOrEmpty())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%d of %d products\n", len(products), total)
	return err
}

func printStats(out io.Writer, stats services.CatalogStats) error {
	if !stats.Available {
		_, err := fmt.Fprintln(out, "No data: the catalog store is unavailable.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tCOUNT\tSHARE")
	for _, c := range stats.Categories {
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", c.Category, c.Count, c.Share*100)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	p := stats.Prices
	_, err := fmt.Fprintf(out, "\n%d products, %d priced: min %.2f, max %.2f, mean %.2f\n", stats.Total, p.Count, p.Min, p.Max, p.Mean)
	return err
}

func init() {
	productsCmd.Flags().IntVarP(&productsLimit, "limit", "n", 20, "Maximum number of products to print")
	productsCmd.Flags().StringVarP(&productsSearch, "search", "q", "", "Case-insensitive title search")
	productsCmd.Flags().StringSliceVarP(&productsCategories, "category", "c", nil, "Only these categories (repeatable)")
	productsCmd.Flags().BoolVar(&productsStats, "stats", false, "Print category counts and price statistics instead")
}
