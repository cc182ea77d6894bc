// Package server exposes the analysis service over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mapshock/internal/logging"
	"mapshock/internal/orchestrate"
	"mapshock/internal/protocol"
	"mapshock/internal/store"
)

// SessionReader exposes the persisted workflow history.
type SessionReader interface {
	Get(ctx context.Context, workflowID string) (*store.Session, error)
	Recent(ctx context.Context, limit int) ([]*store.Session, error)
}

// Server wires the engine and orchestrator to the network.
type Server struct {
	addr         string
	catalog      *protocol.Catalog
	orchestrator *orchestrate.Orchestrator
	sessions     SessionReader // nil when persistence is disabled
}

// New builds a server. sessions may be nil; the history endpoints then
// report the feature as unavailable.
func New(addr string, catalog *protocol.Catalog, orchestrator *orchestrate.Orchestrator, sessions SessionReader) *Server {
	return &Server{addr: addr, catalog: catalog, orchestrator: orchestrator, sessions: sessions}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/v1/catalog/{id}", s.handleCatalogRecord)
	mux.HandleFunc("POST /api/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/v1/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleSession)
	mux.HandleFunc("GET /ws/analyze", s.handleAnalyzeWS)
	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log := logging.Get(logging.CategoryServer)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"protocols": s.catalog.Len(),
	})
}

// catalogSummary is the list-view shape of a protocol record.
type catalogSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	PurposeTag        string `json:"purpose"`
	MinTier           int    `json:"min_tier"`
	MaxTier           int    `json:"max_tier"`
	MandatoryFromTier int    `json:"mandatory_from_tier,omitempty"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	records := s.catalog.All()
	summaries := make([]catalogSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, catalogSummary{
			ID:                rec.ID,
			Name:              rec.Name,
			PurposeTag:        rec.PurposeTag,
			MinTier:           rec.MinTier,
			MaxTier:           rec.MaxTier,
			MandatoryFromTier: rec.MandatoryFromTier,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"protocols":   summaries,
		"count":       len(summaries),
		"quarantined": len(s.catalog.Quarantined()),
	})
}

func (s *Server) handleCatalogRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "protocol not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// analyzeRequest is the POST /api/v1/analyze body.
type analyzeRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	res := s.orchestrator.Run(r.Context(), req.Query, nil)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session persistence is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := s.sessions.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session persistence is disabled")
		return
	}

	id := r.PathValue("id")
	sess, err := s.sessions.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found: "+id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryServer).Warnw("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
