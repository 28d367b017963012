package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "recheckwatch",
	Short:   "Classify CI job failures against a bug catalog and report the result",
	Long:    `recheckwatch watches a Gerrit review feed for failed CI jobs, waits for their logs to be indexed, classifies the failure against a query catalog, and posts a review comment plus chat notifications.`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
