// Package server exposes the fill engine over HTTP: upload a blank form,
// receive the filled copy in the same format.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cloneofkoha/form-filler/internal/audit"
	"github.com/cloneofkoha/form-filler/internal/common"
	"github.com/cloneofkoha/form-filler/internal/engine"
	"github.com/cloneofkoha/form-filler/internal/masterdata"
)

type Server struct {
	engine      *engine.Engine
	store       *masterdata.Store
	audit       *audit.Store
	maxFormSize int64
	logger      *slog.Logger
}

func New(eng *engine.Engine, store *masterdata.Store, auditStore *audit.Store, maxFormSize int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFormSize <= 0 {
		maxFormSize = 32 << 20
	}
	return &Server{
		engine:      eng,
		store:       store,
		audit:       auditStore,
		maxFormSize: maxFormSize,
		logger:      logger,
	}
}

// Router wires the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/master", s.handleMasterPreview)
	r.Post("/master/reload", s.handleMasterReload)
	r.Post("/fill", s.handleFill)
	r.Get("/jobs", s.handleJobs)
	return r
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)
	kind := "internal"
	switch {
	case status == http.StatusBadRequest:
		kind = "bad_request"
	case status == http.StatusNotFound:
		kind = "not_found"
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}
