// Command catalogsync mirrors a remote product catalog into a relational
// store and serves it.
//
//	catalogsync sync            # one foreground sync
//	catalogsync serve           # HTTP API + queue workers + scheduler
//	catalogsync queue:work      # queue workers only
//	catalogsync schedule:run    # scheduler only
//	catalogsync products        # print the stored catalog
//	catalogsync export          # write a JSON snapshot
//	catalogsync route:list      # print the HTTP routes
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "catalogsync",
	Short:         "Product catalog sync pipeline",
	Long:          "catalogsync fetches a remote product catalog, upserts it into a relational store in one transaction and serves the result.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(scheduleRunCmd)

	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(exportCmd)
}
