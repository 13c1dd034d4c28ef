package store

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dmorgan81/chatbot/internal/log"
)

// FileStore keeps objects in a local directory. Its presigned URLs are
// file:// URLs and never expire; it exists for development and tests.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: abs}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Clean("/"+key))
}

func (s *FileStore) Stat(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	return stat(err, func(err error) bool { return errors.Is(err, fs.ErrNotExist) }, "stat", "", key)
}

func (s *FileStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error {
	log.FromContextOrDiscard(ctx).Info("writing", "file", s.path(key))

	// Write to a temp file first so a failed copy never leaves a partial
	// object under a content key.
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, verify(r, opts.SHA256)); err != nil {
		tmp.Close()
		return &Error{Op: "put", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *FileStore) PutFile(ctx context.Context, key, path string, opts PutOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	defer f.Close()
	return s.Put(ctx, key, f, opts)
}

func (s *FileStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(s.path(key))}
	return u.String(), nil
}
