package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/dmorgan81/chatbot/internal/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(cfg config.StoreConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Address(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Stat(ctx context.Context, key string) (bool, error) {
	log.FromContextOrDiscard(ctx).Debug("checking object", "bucket", s.bucket, "key", key)
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	return stat(err, isMinioNotFound, "stat", s.bucket, key)
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error {
	log.FromContextOrDiscard(ctx).Info("uploading to minio", "bucket", s.bucket, "key", key, "size", opts.Size)
	_, err := s.client.PutObject(ctx, s.bucket, key, verify(r, opts.SHA256), opts.Size, minio.PutObjectOptions{ContentType: opts.ContentType})
	if err != nil {
		return &Error{Op: "put", Bucket: s.bucket, Key: key, Err: err}
	}
	return nil
}

// PutFile streams the file through the digest check rather than handing the
// path to FPutObject, so a file rewritten after hashing fails the upload.
func (s *MinioStore) PutFile(ctx context.Context, key, path string, opts PutOptions) error {
	log.FromContextOrDiscard(ctx).Info("uploading file to minio", "bucket", s.bucket, "key", key, "path", path)
	f, err := os.Open(path)
	if err != nil {
		return &Error{Op: "put", Bucket: s.bucket, Key: key, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &Error{Op: "put", Bucket: s.bucket, Key: key, Err: err}
	}
	opts.Size = info.Size()
	return s.Put(ctx, key, f, opts)
}

func (s *MinioStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", &Error{Op: "presign", Bucket: s.bucket, Key: key, Err: err}
	}
	return u.String(), nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
