package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Hou-dini/ingestion-engine/internal/model"
)

// savedAtLayout is fixed width so saved_at sorts lexically.
const savedAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteSink stores artifacts as rows in a local SQLite database. Writes go
// through a single mutex-guarded path.
type SQLiteSink struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (and migrates) the database at path.
func NewSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the artifact under key with posts.
func (s *SQLiteSink) Save(ctx context.Context, posts []model.Post, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE artifact_key = ?", key); err != nil {
		return fmt.Errorf("clear posts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts (key, post_count, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			post_count = excluded.post_count,
			saved_at = excluded.saved_at
	`, key, len(posts), time.Now().UTC().Format(savedAtLayout)); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (
			artifact_key, position, id, source_id, title, content, author, url, created_at, ingested_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, p := range posts {
		metaJSON, err := model.EncodeMetadata(p.Metadata)
		if err != nil {
			return fmt.Errorf("post %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			key, i, p.ID, p.SourceID, p.Title, p.Content, p.Author, p.URL,
			model.FormatTime(p.CreatedAt), model.FormatTime(p.IngestedAt), string(metaJSON),
		); err != nil {
			return fmt.Errorf("insert post %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Load(ctx context.Context, key string) ([]model.Post, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT post_count FROM artifacts WHERE key = ?", key).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, title, content, author, url, created_at, ingested_at, metadata
		FROM posts
		WHERE artifact_key = ?
		ORDER BY position ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := make([]model.Post, 0, count)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// Keys lists stored artifact keys, newest first.
func (s *SQLiteSink) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM artifacts ORDER BY saved_at DESC, key ASC")
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (model.Post, error) {
	var (
		p                     model.Post
		createdAt, ingestedAt string
		metaJSON              string
	)
	if err := row.Scan(&p.ID, &p.SourceID, &p.Title, &p.Content, &p.Author, &p.URL, &createdAt, &ingestedAt, &metaJSON); err != nil {
		return model.Post{}, fmt.Errorf("scan post: %w", err)
	}

	var err error
	if p.CreatedAt, err = model.ParseTime(createdAt); err != nil {
		return model.Post{}, fmt.Errorf("parse created_at: %w", err)
	}
	if p.IngestedAt, err = model.ParseTime(ingestedAt); err != nil {
		return model.Post{}, fmt.Errorf("parse ingested_at: %w", err)
	}
	if p.Metadata, err = model.DecodeMetadata([]byte(metaJSON)); err != nil {
		return model.Post{}, err
	}
	return p, nil
}
