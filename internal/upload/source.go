package upload

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source is the content to upload: either a PathSource or a BytesSource.
type Source interface {
	// Name is a human-readable label used in logs.
	Name() string
	// Open returns a fresh reader over the full content. Each call starts
	// from the beginning.
	Open() (io.ReadCloser, error)

	isSource()
}

// PathSource is a file on the local disk.
type PathSource string

func (p PathSource) Name() string { return filepath.Base(string(p)) }

func (p PathSource) Open() (io.ReadCloser, error) { return os.Open(string(p)) }

func (PathSource) isSource() {}

// BytesSource is a file already held in memory, such as a multipart upload.
type BytesSource struct {
	Filename string
	Data     []byte
}

func (b BytesSource) Name() string { return b.Filename }

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

func (BytesSource) isSource() {}
