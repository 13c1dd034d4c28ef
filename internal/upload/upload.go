// Package upload stores files under the SHA-256 of their content so that the
// same bytes are only ever uploaded once.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/dmorgan81/chatbot/internal/log"
	"github.com/dmorgan81/chatbot/internal/store"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const DefaultExpiry = 300 * time.Second

type Descriptor struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

type Error struct {
	Op     string
	Source string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("upload %s: %s: %v", e.Source, e.Op, e.Err)
	}
	return fmt.Sprintf("upload %s (%s): %s: %v", e.Source, e.Key, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Uploader struct {
	store       store.Store
	expiry      time.Duration
	contentType string
	concurrency int
}

func NewUploader(s store.Store, cfg config.UploadConfig) *Uploader {
	return &Uploader{
		store:       s,
		expiry:      lo.Ternary(cfg.URLExpiry > 0, cfg.URLExpiry, DefaultExpiry),
		contentType: cfg.ContentType,
		concurrency: max(cfg.Concurrency, 1),
	}
}

// Upload hashes src, puts it into the store unless an object with that hash
// already exists, and returns a presigned URL for it.
func (u *Uploader) Upload(ctx context.Context, src Source) (Descriptor, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("upload").With("source", src.Name())

	desc, err := u.upload(ctx, logger, src)
	if err != nil {
		logger.Error("upload failed", "error", err)
		return Descriptor{}, err
	}
	logger.Info("upload ready", "pathname", desc.Pathname, "content-type", desc.ContentType)
	return desc, nil
}

func (u *Uploader) upload(ctx context.Context, logger *slog.Logger, src Source) (Descriptor, error) {
	fail := func(op, key string, err error) (Descriptor, error) {
		return Descriptor{}, &Error{Op: op, Source: src.Name(), Key: key, Err: err}
	}

	d, err := hashSource(src)
	if err != nil {
		return fail("hash", "", err)
	}
	contentType := lo.Ternary(u.contentType != "", u.contentType, d.contentType())

	exists, err := u.store.Stat(ctx, d.key)
	if err != nil {
		return fail("stat", d.key, err)
	}

	if exists {
		logger.Info("object already exists, reusing", "key", d.key)
	} else {
		// The digest travels with the put so a source that changed since it
		// was hashed is rejected instead of stored under the old key.
		opts := store.PutOptions{Size: d.size, ContentType: contentType, SHA256: d.sum}
		switch s := src.(type) {
		case PathSource:
			err = u.store.PutFile(ctx, d.key, string(s), opts)
		case BytesSource:
			err = u.store.Put(ctx, d.key, bytes.NewReader(s.Data), opts)
		default:
			err = fmt.Errorf("unsupported source %T", src)
		}
		if err != nil {
			return fail("put", d.key, err)
		}
		logger.Info("object uploaded", "key", d.key, "size", d.size)
	}

	url, err := u.store.PresignGet(ctx, d.key, u.expiry)
	if err != nil {
		return fail("presign", d.key, err)
	}

	return Descriptor{
		URL:         url,
		Pathname:    "/" + d.key,
		ContentType: contentType,
	}, nil
}

// UploadAll uploads every source concurrently and returns the descriptors in
// input order. The first failure cancels the remaining uploads.
func (u *Uploader) UploadAll(ctx context.Context, srcs []Source) ([]Descriptor, error) {
	descs := make([]Descriptor, len(srcs))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(u.concurrency)
	for i, src := range srcs {
		i, src := i, src
		group.Go(func() error {
			d, err := u.Upload(ctx, src)
			if err != nil {
				return err
			}
			descs[i] = d
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return descs, nil
}
