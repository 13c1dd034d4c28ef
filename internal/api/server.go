// Package api serves the upload and chat endpoints used by the chatbot front end.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/dmorgan81/chatbot/internal/llm"
	"github.com/dmorgan81/chatbot/internal/log"
	"github.com/dmorgan81/chatbot/internal/upload"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/do"
)

type Uploader interface {
	Upload(context.Context, upload.Source) (upload.Descriptor, error)
	UploadAll(context.Context, []upload.Source) ([]upload.Descriptor, error)
}

type Server struct {
	uploader     Uploader
	completer    llm.Completer
	defaultModel string
	maxBytes     int64
}

func NewServer(i *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &Server{
		uploader:     do.MustInvoke[*upload.Uploader](i),
		completer:    do.MustInvoke[*llm.Client](i),
		defaultModel: cfg.Model.DefaultModel,
		maxBytes:     cfg.Upload.MaxBytes,
	}, nil
}

// Routes builds the router. Every request carries logger, tagged with its
// request id, on its context.
func (s *Server) Routes(logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/files/upload", s.handleUpload)
		r.Post("/chat", s.handleChat)
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := logger.With("request-id", middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(log.NewContext(r.Context(), l)))
			l.Info("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
