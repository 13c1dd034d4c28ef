package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how many leading bytes are kept for content-type detection.
const sniffLen = 3072

type digest struct {
	sum    []byte
	key    string
	size   int64
	header []byte
}

// hashSource streams src through SHA-256 and keeps the first sniffLen bytes.
func hashSource(src Source) (digest, error) {
	r, err := src.Open()
	if err != nil {
		return digest{}, err
	}
	defer r.Close()

	h := sha256.New()
	head := &headWriter{limit: sniffLen}
	n, err := io.Copy(io.MultiWriter(h, head), r)
	if err != nil {
		return digest{}, err
	}
	sum := h.Sum(nil)
	return digest{
		sum:    sum,
		key:    hex.EncodeToString(sum),
		size:   n,
		header: head.buf,
	}, nil
}

func (d digest) contentType() string {
	return mimetype.Detect(d.header).String()
}

type headWriter struct {
	buf   []byte
	limit int
}

func (w *headWriter) Write(p []byte) (int, error) {
	if room := w.limit - len(w.buf); room > 0 {
		w.buf = append(w.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}
