// Package cli provides the command-line interface for ingestion-engine.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hou-dini/ingestion-engine/internal/config"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "ingestion-engine",
	Short: "Ingest posts from configured sources into durable storage",
	Long: "ingestion-engine reads subreddits, Hacker News listings and RSS feeds, normalizes every record into one post shape, " +
		"and saves one artifact per source to the configured sink.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("ingestion-engine %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", config.DefaultConfigDir, "config directory")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
