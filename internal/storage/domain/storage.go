package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound    = errors.New("file_not_found")
	ErrUnavailable = errors.New("storage_unavailable")
)

// Object describes a stored upload.
type Object struct {
	Path string
	Name string
	Size int64
}

// Storage is the file collaborator used by ingestion. Paths returned by
// Store are opaque to callers and only meaningful to the same driver.
type Storage interface {
	Store(ctx context.Context, name string, r io.Reader) (Object, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// ObjectKey builds a unique, sortable key such as
// 2024/01/01HQ...-streaming-royalties.csv for an uploaded file name.
func ObjectKey(now time.Time, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	stem := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		stem = "report"
	}
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return fmt.Sprintf("%04d/%02d/%s-%s%s", now.Year(), int(now.Month()), strings.ToLower(id.String()), stem, ext)
}

// Unavailable wraps err so callers can classify storage failures.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
