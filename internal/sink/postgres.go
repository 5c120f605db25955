package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hou-dini/ingestion-engine/internal/model"
)

// PostgresSink stores each artifact as one JSONB document.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and creates the artifacts table if needed.
func NewPostgres(ctx context.Context, dsn string) (*PostgresSink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresSink{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS artifacts (
			key TEXT PRIMARY KEY,
			body JSONB NOT NULL,
			post_count INTEGER NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_saved_at ON artifacts (saved_at)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresSink) Save(ctx context.Context, posts []model.Post, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	body, err := model.EncodePosts(posts)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO artifacts (key, body, post_count, saved_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET
			body = EXCLUDED.body,
			post_count = EXCLUDED.post_count,
			saved_at = EXCLUDED.saved_at
	`, key, string(body), len(posts))
	if err != nil {
		return fmt.Errorf("insert artifact %s: %w", key, err)
	}
	return nil
}

func (s *PostgresSink) Load(ctx context.Context, key string) ([]model.Post, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var body string
	err := s.pool.QueryRow(ctx, "SELECT body::text FROM artifacts WHERE key = $1", key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return model.DecodePosts([]byte(body))
}

// Keys lists stored artifact keys, newest first.
func (s *PostgresSink) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT key FROM artifacts ORDER BY saved_at DESC, key ASC")
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	return keys, nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
