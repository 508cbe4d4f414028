package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/smallbiznis/royalti/internal/clock"
	"github.com/smallbiznis/royalti/internal/storage/domain"
)

// Storage keeps uploads on the local filesystem under root.
type Storage struct {
	root  string
	clock clock.Clock
}

func New(root string, clk clock.Clock) (*Storage, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, domain.Unavailable("mkdir", err)
	}
	return &Storage{root: root, clock: clk}, nil
}

func (s *Storage) Store(ctx context.Context, name string, r io.Reader) (domain.Object, error) {
	if err := ctx.Err(); err != nil {
		return domain.Object{}, err
	}
	key := domain.ObjectKey(s.clock.Now(), name)
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return domain.Object{}, domain.Unavailable("mkdir", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return domain.Object{}, domain.Unavailable("create", err)
	}
	size, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return domain.Object{}, domain.Unavailable("write", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return domain.Object{}, domain.Unavailable("rename", err)
	}

	return domain.Object{Path: key, Name: filepath.Base(name), Size: size}, nil
}

func (s *Storage) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Unavailable("open", err)
	}
	return f, nil
}

func (s *Storage) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.Unavailable("delete", err)
	}
	return nil
}

func (s *Storage) Exists(_ context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, domain.Unavailable("stat", err)
	}
}

// resolve rejects keys that would escape root.
func (s *Storage) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(path)))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", domain.ErrNotFound
	}
	return filepath.Join(s.root, clean), nil
}

var _ domain.Storage = (*Storage)(nil)
