package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	timeout    int
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "placementctl",
		Short: "placementd - content-placement and cache CLI",
		Long:  `placementctl drives a placementd node's HTTP admin API: KV access, placement lookups, and cluster membership.`,
	}

	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:9000", "Server base URL")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 30, "Request timeout in seconds")

	rootCmd.AddCommand(kvCmd())
	rootCmd.AddCommand(placementCmd())
	rootCmd.AddCommand(clusterCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
