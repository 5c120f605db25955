package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
	"github.com/Hou-dini/ingestion-engine/internal/sink"
)

var loadJSON bool

var loadCmd = &cobra.Command{
	Use:   "load [key]",
	Short: "Print a saved artifact, or list artifacts when no key is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  loadAction,
}

func init() {
	loadCmd.Flags().BoolVar(&loadJSON, "json", false, "print the stored JSON document")
	rootCmd.AddCommand(loadCmd)
}

// keyLister is implemented by sinks that can enumerate their artifacts.
type keyLister interface {
	Keys(ctx context.Context) ([]string, error)
}

var loadNow = time.Now

func loadAction(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := sink.Open(ctx, cfg.Sink)
	if err != nil {
		return fmt.Errorf("open %s sink: %w", cfg.Sink.Kind, err)
	}
	defer func() { _ = s.Close() }()

	if len(args) == 0 {
		return listArtifacts(ctx, s, cfg.Sink.Kind)
	}

	key := args[0]
	posts, err := s.Load(ctx, key)
	if errors.Is(err, sink.ErrLoadUnsupported) {
		return fmt.Errorf("%s sink is write-only", cfg.Sink.Kind)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}

	if loadJSON {
		data, err := model.EncodePosts(posts)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}

	printPosts(key, posts, loadNow())
	return nil
}

func listArtifacts(ctx context.Context, s sink.Sink, kind string) error {
	lister, ok := s.(keyLister)
	if !ok {
		return fmt.Errorf("%s sink cannot list artifacts; pass a key", kind)
	}
	keys, err := lister.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No artifacts saved yet.")
		return nil
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

func printPosts(key string, posts []model.Post, now time.Time) {
	fmt.Printf("%s: %s\n", key, pluralPosts(len(posts)))
	for _, p := range posts {
		fmt.Printf("\n  %s\n", p.Title)

		parts := []string{p.Author, humanize.RelTime(p.CreatedAt, now, "ago", "from now")}
		if score, ok := p.Metadata["score"].(int64); ok {
			parts = append(parts, "score "+humanize.Comma(score))
		}
		if n, ok := p.Metadata["num_comments"].(int64); ok {
			parts = append(parts, humanize.Comma(n)+" comments")
		} else if n, ok := p.Metadata["descendants"].(int64); ok {
			parts = append(parts, humanize.Comma(n)+" comments")
		}
		fmt.Printf("    %s\n", strings.Join(parts, " · "))

		if p.URL != "" {
			fmt.Printf("    %s\n", p.URL)
		}
	}
}

func pluralPosts(n int) string {
	if n == 1 {
		return "1 post"
	}
	return fmt.Sprintf("%d posts", n)
}
