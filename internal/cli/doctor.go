package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/sink"
	"github.com/Hou-dini/ingestion-engine/internal/strategy"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, credentials and sink",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	counts := sourceCounts(cfg.Sources)
	printCheck(true, "config.yaml (%d sources%s)", len(cfg.Sources), formatCounts(counts))

	known := strategy.NewRegistry(cfg, strategy.Options{})

	// Reddit credentials
	if counts["reddit"] > 0 {
		switch {
		case config.IsPlaceholder(cfg.Reddit.ClientID) || config.IsPlaceholder(cfg.Reddit.ClientSecret):
			printCheck(false, "reddit credentials missing or placeholder (%s, %s)", cfg.Reddit.ClientIDEnv, cfg.Reddit.ClientSecretEnv)
			ok = false
		case cfg.Reddit.Username != "" && cfg.Reddit.Password != "":
			printCheck(true, "reddit credentials (password grant as %s)", cfg.Reddit.Username)
		default:
			printCheck(true, "reddit credentials (application-only)")
		}
	}

	// Unknown types are skipped at run time, not fatal.
	for _, t := range sortedTypes(counts) {
		if _, found := known.Lookup(t); !found {
			printInfo("no strategy for source type %q, %d sources will be skipped (known: %s)", t, counts[t], strings.Join(known.Types(), ", "))
		}
	}

	// Sink
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := sink.Open(ctx, cfg.Sink)
	if err != nil {
		printCheck(false, "%s sink: %v", cfg.Sink.Kind, err)
		ok = false
	} else {
		_ = s.Close()
		printCheck(true, "%s sink%s", cfg.Sink.Kind, sinkTarget(cfg.Sink))
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func sourceCounts(sources []config.SourceDescriptor) map[string]int {
	counts := make(map[string]int)
	for _, d := range sources {
		counts[d.Type]++
	}
	return counts
}

func sortedTypes(counts map[string]int) []string {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(counts))
	for _, t := range sortedTypes(counts) {
		parts = append(parts, fmt.Sprintf("%d %s", counts[t], t))
	}
	return ": " + strings.Join(parts, ", ")
}

func sinkTarget(cfg config.SinkConfig) string {
	switch cfg.Kind {
	case config.SinkFile:
		return " " + cfg.Dir
	case config.SinkSQLite:
		return " " + cfg.SQLite.Path
	case config.SinkGCS:
		return " gs://" + cfg.GCS.Bucket
	case config.SinkKafka:
		return " topic " + cfg.Kafka.Topic
	}
	return ""
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
