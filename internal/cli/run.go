package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/coordinator"
	"github.com/Hou-dini/ingestion-engine/internal/privacy"
	"github.com/Hou-dini/ingestion-engine/internal/sink"
	"github.com/Hou-dini/ingestion-engine/internal/strategy"
)

var runSkipPersist bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest every configured source once",
	Long: "run fetches all configured sources concurrently and saves one artifact per source that returned posts. " +
		"Per-source failures are reported but do not change the exit status.",
	RunE: runAction,
}

func init() {
	runCmd.Flags().BoolVar(&runSkipPersist, "skip-persist", false, "fetch and normalize without saving")
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var patterns []string
	if cfg.Privacy.Redact.Enabled {
		patterns = cfg.Privacy.Redact.Patterns
	}
	redactor, err := privacy.New(patterns)
	if err != nil {
		return fmt.Errorf("compile redact patterns: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var s sink.Sink
	if !runSkipPersist {
		s, err = sink.Open(ctx, cfg.Sink)
		if err != nil {
			return fmt.Errorf("open %s sink: %w", cfg.Sink.Kind, err)
		}
		defer func() { _ = s.Close() }()
	}

	registry := strategy.NewRegistry(cfg, strategy.Options{
		Out:      os.Stdout,
		Redactor: redactor,
	})

	start := time.Now()
	fmt.Printf("Ingesting %d sources\n", len(cfg.Sources))

	summary := coordinator.New(registry, s, coordinator.Options{
		SkipPersist: runSkipPersist,
		Out:         os.Stdout,
	}).Run(ctx, cfg.Sources)

	printSummary(summary, time.Since(start))
	return nil
}

func printSummary(summary coordinator.Summary, elapsed time.Duration) {
	fmt.Printf("Ingested %d posts from %d sources in %s", summary.Posts(), len(summary.Outcomes), elapsed.Round(time.Millisecond))
	fmt.Printf(" (%d saved, %d empty, %d skipped, %d failed",
		summary.Count(coordinator.StatusSaved),
		summary.Count(coordinator.StatusEmpty),
		summary.Count(coordinator.StatusSkipped),
		summary.Count(coordinator.StatusFailed))
	if n := summary.Count(coordinator.StatusIngested); n > 0 {
		fmt.Printf(", %d not persisted", n)
	}
	fmt.Println(")")

	for _, o := range summary.Outcomes {
		if o.Status != coordinator.StatusFailed {
			continue
		}
		reason := "unknown error"
		if o.Err != nil {
			reason = o.Err.Error()
		}
		fmt.Printf("  failed: %s %s: %s\n", o.Source.Type, o.Source.Name, reason)
	}
}
