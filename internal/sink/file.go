package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Hou-dini/ingestion-engine/internal/model"
)

// FileSink writes one JSON document per artifact into a directory.
type FileSink struct {
	dir string
}

// NewFile creates dir if needed and returns a sink rooted there.
func NewFile(dir string) (*FileSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("sink dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sink dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Save writes the artifact through a temp file and rename, so readers never
// observe a partial document.
func (f *FileSink) Save(_ context.Context, posts []model.Post, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := model.EncodePosts(posts)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, filepath.Join(f.dir, key)); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (f *FileSink) Load(_ context.Context, key string) ([]model.Post, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(f.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return model.DecodePosts(data)
}

// Keys lists stored artifact keys, newest first.
func (f *FileSink) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read sink dir: %w", err)
	}

	type artifact struct {
		key     string
		modTime int64
	}
	var found []artifact
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, artifact{key: name, modTime: info.ModTime().UnixNano()})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].modTime != found[j].modTime {
			return found[i].modTime > found[j].modTime
		}
		return found[i].key < found[j].key
	})

	keys := make([]string, 0, len(found))
	for _, a := range found {
		keys = append(keys, a.key)
	}
	return keys, nil
}

func (f *FileSink) Close() error {
	return nil
}
