package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/sawt/internal/coordinator"
	"github.com/soyeahso/sawt/internal/domain"
)

// maxBodyBytes bounds request bodies of the HTTP API.
const maxBodyBytes = 64 * 1024

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated RPC handler populates all fields.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]ErrorShape{"error": {Code: code, Message: message}})
}

// handleHealth returns the server health status. Only status is exposed
// publicly; detailed info is available via the authenticated RPC health method.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := coordinator.NewSessionID()
	sess, err := s.turns.Session(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("create session")
		writeError(w, http.StatusInternalServerError, "internal", "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.turns.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.Error().Err(err).Msg("get session")
		writeError(w, http.StatusInternalServerError, "internal", "could not load session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.turns.Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.log.Error().Err(err).Msg("reset session")
		writeError(w, http.StatusInternalServerError, "internal", "could not reset session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var p ChatSendParams
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be JSON with a message field")
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_params", "message is required")
		return
	}

	id := chi.URLParam(r, "id")
	res, err := s.chat(r.Context(), id, p.Message)
	if res == nil {
		status, shape := errorStatus(err)
		writeJSON(w, status, map[string]ErrorShape{"error": shape})
		return
	}

	status := http.StatusOK
	if err != nil && !domain.Recoverable(err) {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ChatResponse{TurnResult: res, DurationMs: res.Duration.Milliseconds()})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.orders.GetOrder(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no order "+id)
	case err != nil:
		s.log.Error().Err(err).Str("orderId", id).Msg("get order")
		writeError(w, http.StatusInternalServerError, "internal", "could not load order")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// errorStatus maps a turn error that produced no reply to an HTTP status.
func errorStatus(err error) (int, ErrorShape) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, ErrorShape{Code: "invalid_params", Message: err.Error()}
	case errors.Is(err, domain.ErrExternal):
		return http.StatusServiceUnavailable, ErrorShape{Code: "unavailable", Message: "service busy, retry shortly", Retryable: true}
	default:
		return http.StatusInternalServerError, ErrorShape{Code: "internal", Message: "turn failed"}
	}
}
