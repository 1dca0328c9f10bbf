// storefront/cartstore/file_cartstore.go

package cartstore

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FileCartStore keeps one file per key under a directory, the on-disk
// counterpart of a browser's local storage for single-process hosts.
type FileCartStore struct {
	dir string
	log logrus.FieldLogger
}

func NewFileCartStore(dir string, log logrus.FieldLogger) *FileCartStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileCartStore{
		dir: dir,
		log: log.WithField("component", "cartstore.file"),
	}
}

// Initialize creates the directory.
func (f *FileCartStore) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return errors.Wrapf(err, "cartstore: create %s", f.dir)
	}
	f.log.WithField("dir", f.dir).Info("FileCartStore initialized")
	return nil
}

func (f *FileCartStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "cartstore: read record")
	}
	return data, nil
}

// Set writes to a temporary file and renames it over the record, so a reader
// never sees a half-written cart.
func (f *FileCartStore) Set(ctx context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".cart-*")
	if err != nil {
		return errors.Wrap(err, "cartstore: create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "cartstore: write record")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "cartstore: close record")
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return errors.Wrap(err, "cartstore: replace record")
	}
	return nil
}

func (f *FileCartStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "cartstore: delete record")
	}
	return nil
}

// Ping reports whether the directory exists.
func (f *FileCartStore) Ping(ctx context.Context) bool {
	info, err := os.Stat(f.dir)
	return err == nil && info.IsDir()
}

// path escapes the key so separators such as ':' in session keys never reach
// the filesystem.
func (f *FileCartStore) path(key string) string {
	return filepath.Join(f.dir, url.QueryEscape(key)+".cart")
}
