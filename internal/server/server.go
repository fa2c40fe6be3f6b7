package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ssd-technologies/cumulus/internal/notify"
	"github.com/ssd-technologies/cumulus/internal/ratelimit"
	"github.com/ssd-technologies/cumulus/internal/storage"
)

const defaultMaxUpload = 100 << 20 // 100 MB

// Server is the HTTP API in front of the storage engine. It serves a single
// tenant: every request acts as owner.
type Server struct {
	store     *storage.Store
	owner     int64
	hub       *notify.Hub
	log       *slog.Logger
	mux       *http.ServeMux
	handler   http.Handler
	maxUpload int64
	uploads   *ratelimit.Keyed

	reconcileEvery time.Duration
	sweepEvery     time.Duration
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithHub publishes change events to hub.
func WithHub(hub *notify.Hub) Option {
	return func(s *Server) {
		if hub != nil {
			s.hub = hub
		}
	}
}

// WithMaxUploadSize bounds the multipart body of an upload.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithUploadRate limits uploads per client IP. A zero rate disables the
// limit.
func WithUploadRate(rate int, window time.Duration) Option {
	return func(s *Server) {
		if rate > 0 && window > 0 {
			s.uploads = ratelimit.NewKeyed(rate, window)
		} else {
			s.uploads = nil
		}
	}
}

// WithWorkerIntervals sets how often StartWorkers reconciles quota and
// sweeps orphan blobs. Zero disables a worker.
func WithWorkerIntervals(reconcile, sweep time.Duration) Option {
	return func(s *Server) {
		s.reconcileEvery = reconcile
		s.sweepEvery = sweep
	}
}

// New creates a new Server with all routes registered.
func New(store *storage.Store, owner int64, opts ...Option) *Server {
	s := &Server{
		store:          store,
		owner:          owner,
		hub:            notify.NewHub(64),
		log:            slog.Default(),
		mux:            http.NewServeMux(),
		maxUpload:      defaultMaxUpload,
		uploads:        ratelimit.NewKeyed(30, time.Minute),
		reconcileEvery: 5 * time.Minute,
		sweepEvery:     10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.handler = s.requestLog(s.recoverer(s.mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Hub returns the change-event hub.
func (s *Server) Hub() *notify.Hub {
	return s.hub
}

// routes registers all HTTP routes on the server mux.
func (s *Server) routes() {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Usage
	s.mux.HandleFunc("GET /api/storage", s.handleStorageInfo)

	// Folders
	s.mux.HandleFunc("GET /api/folders", s.handleListFolders)
	s.mux.HandleFunc("POST /api/folders", s.handleCreateFolder)
	s.mux.HandleFunc("GET /api/folders/{id}", s.handleGetFolder)
	s.mux.HandleFunc("PUT /api/folders/{id}", s.handleUpdateFolder)
	s.mux.HandleFunc("DELETE /api/folders/{id}", s.handleDeleteFolder)

	// Files
	s.mux.HandleFunc("GET /api/files", s.handleListFiles)
	s.mux.HandleFunc("GET /api/files/recent", s.handleRecentFiles)
	s.mux.HandleFunc("POST /api/files", s.rateLimited(s.handleUploadFile))
	s.mux.HandleFunc("GET /api/files/{id}", s.handleGetFile)
	s.mux.HandleFunc("GET /api/files/{id}/download", s.handleDownloadFile)
	s.mux.HandleFunc("PUT /api/files/{id}", s.handleUpdateFile)
	s.mux.HandleFunc("DELETE /api/files/{id}", s.handleDeleteFile)

	// Live updates
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "cumulus",
	})
}

// handleStorageInfo handles GET /api/storage: usage for the owner.
func (s *Server) handleStorageInfo(w http.ResponseWriter, r *http.Request) {
	usage, err := s.store.Usage(s.owner)
	if err != nil {
		s.writeStoreError(w, r, err, "User or storage info")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) publish(typ string, id int64, folderID *int64) {
	s.hub.Publish(notify.Event{Type: typ, ID: id, FolderID: folderID})
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// optionalID parses an optional numeric query or form value. An empty
// value yields nil.
func optionalID(v string) (*int64, bool) {
	if v == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeStoreError maps engine errors onto HTTP responses. what names the
// resource in not-found messages, e.g. "file".
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, what string) {
	var qe *storage.QuotaError
	switch {
	case errors.As(err, &qe):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message":   "Not enough storage space",
			"required":  qe.Required,
			"available": qe.Available,
		})
	case errors.Is(err, storage.ErrBlobMissing):
		writeError(w, http.StatusNotFound, "File content not found")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, storage.ErrInvalidParent),
		errors.Is(err, storage.ErrCycle):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("storage operation failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
