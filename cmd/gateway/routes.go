package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the configured path-prefix routing table",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, r := range defaultRoutes {
			fmt.Printf("%-20s -> %s\n", r.Prefix, r.RoutingKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
}
