package gcs

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/smallbiznis/royalti/internal/clock"
	"github.com/smallbiznis/royalti/internal/storage/domain"
	"google.golang.org/api/option"
)

type Config struct {
	Bucket          string
	CredentialsFile string
	Prefix          string
}

// Storage keeps uploads in a Google Cloud Storage bucket.
type Storage struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	clock  clock.Clock
}

func NewClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, domain.Unavailable("gcs client", err)
	}
	return client, nil
}

func New(client *storage.Client, cfg Config, clk clock.Clock) (*Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	return &Storage{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: strings.Trim(cfg.Prefix, "/"),
		clock:  clk,
	}, nil
}

func (s *Storage) Store(ctx context.Context, name string, r io.Reader) (domain.Object, error) {
	key := domain.ObjectKey(s.clock.Now(), name)
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType(name)
	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return domain.Object{}, domain.Unavailable("gcs write", err)
	}
	if err := w.Close(); err != nil {
		return domain.Object{}, domain.Unavailable("gcs close", err)
	}

	return domain.Object{Path: key, Name: path.Base(name), Size: size}, nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Unavailable("gcs open", err)
	}
	return r, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return domain.Unavailable("gcs delete", err)
	}
	return nil
}

func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.bucket.Object(key).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, domain.Unavailable("gcs attrs", err)
	}
}

// Close releases the underlying client.
func (s *Storage) Close() error {
	return s.client.Close()
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

var _ domain.Storage = (*Storage)(nil)
