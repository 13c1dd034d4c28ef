package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/dmorgan81/chatbot/internal/log"
	"github.com/samber/lo"
)

type s3API interface {
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	_ s3API       = (*s3.Client)(nil)
	_ s3Presigner = (*s3.PresignClient)(nil)
)

// S3Store talks to any S3-compatible endpoint through the AWS SDK using
// path-style addressing.
type S3Store struct {
	client    s3API
	presigner s3Presigner
	bucket    string
}

func NewS3Store(ctx context.Context, cfg config.StoreConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.URL())
		o.UsePathStyle = true
	})
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

func (s *S3Store) Stat(ctx context.Context, key string) (bool, error) {
	log.FromContextOrDiscard(ctx).Debug("checking object", "bucket", s.bucket, "key", key)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return stat(err, isS3NotFound, "stat", s.bucket, key)
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error {
	log.FromContextOrDiscard(ctx).Info("uploading to s3", "bucket", s.bucket, "key", key, "size", opts.Size)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentType:   lo.Ternary(opts.ContentType != "", aws.String(opts.ContentType), nil),
		ContentLength: lo.Ternary(opts.Size >= 0, aws.Int64(opts.Size), nil),
	}
	// The server recomputes the digest and rejects the object with BadDigest
	// when the body it received does not match.
	if len(opts.SHA256) > 0 {
		in.ChecksumAlgorithm = s3types.ChecksumAlgorithmSha256
		in.ChecksumSHA256 = aws.String(base64.StdEncoding.EncodeToString(opts.SHA256))
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return &Error{Op: "put", Bucket: s.bucket, Key: key, Err: err}
	}
	return nil
}

func (s *S3Store) PutFile(ctx context.Context, key, path string, opts PutOptions) error {
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

func (s *S3Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", &Error{Op: "presign", Bucket: s.bucket, Key: key, Err: err}
	}
	return req.URL, nil
}

// isS3NotFound recognises the shapes a missing object takes in the SDK:
// the modelled NotFound/NoSuchKey types, a generic API error code, or a bare 404.
func isS3NotFound(err error) bool {
	var nf *s3types.NotFound
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
