// Package store puts objects into an S3-compatible bucket and hands out
// time-limited URLs for them.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"time"
)

// ErrChecksumMismatch is returned when the bytes written differ from the
// digest the caller asked for.
var ErrChecksumMismatch = errors.New("store: content does not match its sha256")

type Store interface {
	// Stat reports whether an object exists under key. A missing object
	// yields (false, nil); a failed lookup yields (false, *Error).
	Stat(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error
	PutFile(ctx context.Context, key, path string, opts PutOptions) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type PutOptions struct {
	// Size is -1 when unknown.
	Size        int64
	ContentType string
	// SHA256 is the raw digest the stored bytes must match. The put fails
	// with ErrChecksumMismatch, and nothing is stored, when they do not.
	SHA256 []byte
}

type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Bucket != "" {
		return fmt.Sprintf("store.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("store.%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// stat folds the two-state answer of a backend into the Stat contract.
func stat(err error, notFound func(error) bool, op, bucket, key string) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case notFound(err):
		return false, nil
	default:
		return false, &Error{Op: op, Bucket: bucket, Key: key, Err: err}
	}
}

// verify hashes r as it is read and fails the final read when the content
// does not match want. A nil want disables the check.
func verify(r io.Reader, want []byte) io.Reader {
	if len(want) == 0 {
		return r
	}
	return &verifyingReader{r: r, h: sha256.New(), want: want}
}

type verifyingReader struct {
	r    io.Reader
	h    hash.Hash
	want []byte
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	v.h.Write(p[:n])
	if err == io.EOF && !bytes.Equal(v.h.Sum(nil), v.want) {
		return n, ErrChecksumMismatch
	}
	return n, err
}
