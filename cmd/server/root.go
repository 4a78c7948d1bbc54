package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "mall-admin",
	Short: "Administrative backend for the mall platform",
	Long: `mall-admin serves the admin API for currencies and the pivot rate,
events and their media, designer assignments and the category tree.

Configuration comes from the environment (and .env when present).`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (DEBUG, INFO, WARN, ERROR, OFF)")
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd, auditConsumerCmd)
}

// level prefers the flag over the configured value.
func level(configured string) string {
	if logLevel != "" {
		return logLevel
	}
	return configured
}
