// Package sink persists batches of posts under an artifact key.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
)

var (
	// ErrNotFound is returned by Load when no artifact exists under the key.
	ErrNotFound = errors.New("artifact not found")

	// ErrLoadUnsupported is returned by write-only sinks.
	ErrLoadUnsupported = errors.New("sink does not support load")
)

// Sink stores post batches. Implementations are safe for concurrent use.
type Sink interface {
	// Save stores posts under key, replacing any previous artifact.
	Save(ctx context.Context, posts []model.Post, key string) error

	// Load returns the posts saved under key, in saved order.
	Load(ctx context.Context, key string) ([]model.Post, error)

	Close() error
}

// Open builds the sink selected by cfg.Kind.
func Open(ctx context.Context, cfg config.SinkConfig) (Sink, error) {
	switch cfg.Kind {
	case config.SinkFile, "":
		return NewFile(cfg.Dir)
	case config.SinkSQLite:
		return NewSQLite(ctx, cfg.SQLite.Path)
	case config.SinkPostgres:
		return NewPostgres(ctx, cfg.Postgres.DSN)
	case config.SinkGCS:
		return NewGCS(ctx, cfg.GCS)
	case config.SinkKafka:
		return NewKafka(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("artifact key is required")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("artifact key %q must not contain path separators", key)
	}
	return nil
}
