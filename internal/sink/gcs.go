package sink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
)

const jsonContentType = "application/json"

// objectStore is the slice of a bucket the GCS sink needs.
type objectStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Close() error
}

// GCSSink stores each artifact as one object in a Cloud Storage bucket.
type GCSSink struct {
	bucket string
	store  objectStore
}

// NewGCS connects to the configured bucket. Credentials come from
// cfg.CredentialsFile when set, otherwise from application default
// credentials.
func NewGCS(ctx context.Context, cfg config.GCSConfig) (*GCSSink, error) {
	if config.IsPlaceholder(cfg.Bucket) {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSSink{
		bucket: cfg.Bucket,
		store:  &gcsBucket{client: client, bucket: client.Bucket(cfg.Bucket)},
	}, nil
}

func (g *GCSSink) Save(ctx context.Context, posts []model.Post, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := model.EncodePosts(posts)
	if err != nil {
		return err
	}
	if err := g.store.Put(ctx, key, jsonContentType, data); err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", g.bucket, key, err)
	}
	return nil
}

func (g *GCSSink) Load(ctx context.Context, key string) ([]model.Post, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download gs://%s/%s: %w", g.bucket, key, err)
	}
	return model.DecodePosts(data)
}

func (g *GCSSink) Close() error {
	return g.store.Close()
}

type gcsBucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func (b *gcsBucket) Put(ctx context.Context, name, contentType string, data []byte) error {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBucket) Get(ctx context.Context, name string) ([]byte, error) {
	r, err := b.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func (b *gcsBucket) Close() error {
	return b.client.Close()
}
