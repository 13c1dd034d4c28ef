package store

import (
	"context"
	"crypto/sha256"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the handful of object calls MinioStore makes. HEAD replies
// with headStatus; PUT bodies are drained and recorded only when they arrive
// whole.
type fakeS3 struct {
	mu         sync.Mutex
	headStatus int
	heads      int
	puts       map[string]http.Header
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		f.heads++
		if f.headStatus == http.StatusOK {
			w.Header().Set("ETag", `"5d41402abc4b2a76b9719d911017c592"`)
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.Header().Set("Content-Type", "text/plain")
			w.Header().Set("Content-Length", "5")
		}
		w.WriteHeader(f.headStatus)
	case http.MethodPut:
		if _, err := io.Copy(io.Discard, r.Body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.puts[r.URL.Path] = r.Header.Clone()
		w.Header().Set("ETag", `"5d41402abc4b2a76b9719d911017c592"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeMinio(t *testing.T, headStatus int) (*MinioStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{headStatus: headStatus, puts: map[string]http.Header{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	s, err := NewMinioStore(config.StoreConfig{
		Endpoint:  host,
		Port:      p,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "uploads",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return s, fake
}

func TestMinioStore_Stat(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		s, _ := newFakeMinio(t, http.StatusOK)
		exists, err := s.Stat(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("not found", func(t *testing.T) {
		s, fake := newFakeMinio(t, http.StatusNotFound)
		exists, err := s.Stat(context.Background(), "k")
		require.NoError(t, err)
		assert.False(t, exists)
		fake.mu.Lock()
		defer fake.mu.Unlock()
		assert.Equal(t, 1, fake.heads)
	})

	t.Run("forbidden", func(t *testing.T) {
		s, _ := newFakeMinio(t, http.StatusForbidden)
		exists, err := s.Stat(context.Background(), "k")
		assert.False(t, exists)
		var storeErr *Error
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "stat", storeErr.Op)
		assert.Equal(t, "uploads", storeErr.Bucket)
	})

	// The client retries 5xx answers until the context gives up.
	t.Run("server error", func(t *testing.T) {
		s, fake := newFakeMinio(t, http.StatusInternalServerError)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		exists, err := s.Stat(ctx, "k")
		assert.False(t, exists)
		var storeErr *Error
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "stat", storeErr.Op)
		fake.mu.Lock()
		defer fake.mu.Unlock()
		assert.GreaterOrEqual(t, fake.heads, 1)
	})
}

func TestMinioStore_Put(t *testing.T) {
	s, fake := newFakeMinio(t, http.StatusNotFound)
	sum := sha256.Sum256([]byte("hello"))

	err := s.Put(context.Background(), "k", strings.NewReader("hello"), PutOptions{
		Size:        5,
		ContentType: "text/plain",
		SHA256:      sum[:],
	})
	require.NoError(t, err)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Contains(t, fake.puts, "/uploads/k")
	assert.Equal(t, "text/plain", fake.puts["/uploads/k"].Get("Content-Type"))
}

func TestMinioStore_PutFileRejectsChangedContent(t *testing.T) {
	s, fake := newFakeMinio(t, http.StatusNotFound)
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("goodbye"), 0o600))
	sum := sha256.Sum256([]byte("hello"))

	err := s.PutFile(context.Background(), "k", path, PutOptions{Size: 5, SHA256: sum[:]})
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "put", storeErr.Op)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.NotContains(t, fake.puts, "/uploads/k")
}

func TestMinioStore_PresignGet(t *testing.T) {
	s, err := NewMinioStore(config.StoreConfig{
		Endpoint:  "minio.internal",
		Port:      9000,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "uploads",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	raw, err := s.PresignGet(context.Background(), "abc", 300*time.Second)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "minio.internal:9000", u.Host)
	assert.Equal(t, "/uploads/abc", u.Path)
	q := u.Query()
	assert.Equal(t, "300", q.Get("X-Amz-Expires"))
	assert.Contains(t, q.Get("X-Amz-Credential"), "/us-east-1/s3/aws4_request")
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
}
