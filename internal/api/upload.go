package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dmorgan81/chatbot/internal/upload"
	"github.com/samber/lo"
)

// multipartMemory is how much of a form is held in memory before spilling to disk.
const multipartMemory = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil || r.ContentLength == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}
	if s.maxBytes > 0 {
		if r.ContentLength > s.maxBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}

	srcs := make([]upload.Source, 0, len(headers))
	for _, fh := range headers {
		src, err := readPart(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read "+fh.Filename)
			return
		}
		srcs = append(srcs, src)
	}

	if len(srcs) == 1 {
		desc, err := s.uploader.Upload(r.Context(), srcs[0])
		if err != nil {
			writeError(w, http.StatusInternalServerError, "upload failed")
			return
		}
		writeJSON(w, http.StatusOK, desc)
		return
	}

	descs, err := s.uploader.UploadAll(r.Context(), srcs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	writeJSON(w, http.StatusOK, descs)
}

func readPart(fh *multipart.FileHeader) (upload.Source, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return upload.BytesSource{Filename: lo.Ternary(fh.Filename != "", fh.Filename, "file"), Data: data}, nil
}
