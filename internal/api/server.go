// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/coursekit/coursekit/internal/artifact"
	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/extract"
	"github.com/coursekit/coursekit/internal/session"
	"github.com/coursekit/coursekit/internal/workflow"
)

// Server exposes the workflow engine over HTTP.
type Server struct {
	router chi.Router
	engine *workflow.Engine
	cfg    Config
}

// Config controls request handling limits.
type Config struct {
	MaxUploadBytes int64
}

// DefaultConfig returns the standard configuration used when no overrides
// are provided.
func DefaultConfig() Config {
	return Config{MaxUploadBytes: 50 << 20}
}

// Merge overlays non-zero configuration from the override onto the base.
func (c Config) Merge(override Config) Config {
	result := c
	if override.MaxUploadBytes > 0 {
		result.MaxUploadBytes = override.MaxUploadBytes
	}
	return result
}

func NewServer(engine *workflow.Engine, cfg *Config) *Server {
	configuration := DefaultConfig()
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	srv := &Server{
		router: chi.NewRouter(),
		engine: engine,
		cfg:    configuration,
	}
	srv.routes()
	common.Logger().Info("api: server ready")
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/upload", s.handleUpload)
			r.Post("/plan", s.handleGeneratePlan)
			r.Put("/plan", s.handleEditPlan)
			r.Post("/plan/approve", s.handleApprovePlan)
			r.Post("/generate", s.handleStartGeneration)
			r.Post("/generate/week", s.handleRegenerateWeek)
			r.Get("/status", s.handleStatus)
			r.Post("/export", s.handleExport)
			r.Get("/download", s.handleDownload)
		})
	})
	s.router.Get("/v1/logs", s.handleLogs)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders the failure as {"detail": reason} with the mapped
// status code.
func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

// statusForError maps the error taxonomy onto HTTP status codes: stage
// denials conflict, caller mistakes are bad requests, missing sessions are
// not found, and everything else is a server-side failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrStageDenied):
		return http.StatusConflict
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, artifact.ErrOutsideRoot):
		return http.StatusForbidden
	case errors.Is(err, extract.ErrIncomplete):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
