package handler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/dmorgan81/chatbot/internal/log"
	"github.com/dmorgan81/chatbot/internal/upload"
	"github.com/samber/do"
)

var (
	ErrInvalidInput    = errors.New("exactly one of path or data is required")
	ErrPathOutsideRoot = errors.New("path is outside the upload root")
)

// Input is the Lambda event. Data is base64 in JSON.
type Input struct {
	Path string `json:"path,omitempty"`
	Name string `json:"name,omitempty"`
	Data []byte `json:"data,omitempty"`
}

func (i Input) toSource() (upload.Source, error) {
	switch {
	case i.Path != "" && len(i.Data) == 0:
		return upload.PathSource(i.Path), nil
	case i.Path == "" && len(i.Data) > 0:
		return upload.BytesSource{Filename: i.Name, Data: i.Data}, nil
	default:
		return nil, ErrInvalidInput
	}
}

type Output = upload.Descriptor

type Handler struct {
	uploader *upload.Uploader
	root     string
}

func NewHandler(i *do.Injector) (*Handler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &Handler{
		uploader: do.MustInvoke[*upload.Uploader](i),
		root:     cfg.Upload.PathRoot,
	}, nil
}

// confine resolves path, following symlinks, and rejects it unless it lies
// under the handler's root. An empty root rejects every path.
func (h *Handler) confine(path string) (string, error) {
	if h.root == "" {
		return "", ErrPathOutsideRoot
	}
	root, err := filepath.EvalSymlinks(h.root)
	if err != nil {
		return "", fmt.Errorf("resolve upload root: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}
	return resolved, nil
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("path", input.Path, "name", input.Name, "size", len(input.Data))
	log.Info("handling lambda invocation")

	src, err := input.toSource()
	if err != nil {
		return Output{}, err
	}
	if p, ok := src.(upload.PathSource); ok {
		resolved, err := h.confine(string(p))
		if err != nil {
			log.Warn("rejecting path", "root", h.root, "error", err)
			return Output{}, err
		}
		src = upload.PathSource(resolved)
	}
	return h.uploader.Upload(ctx, src)
}
