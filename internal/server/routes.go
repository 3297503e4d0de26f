package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/animus/internal/orchestrator"
)

// handleAssembleContext builds the bounded system prompt for one turn.
// The orchestrator never errors; malformed JSON is the only 400 here.
func (s *Server) handleAssembleContext(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.PersonaSlug == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "personaSlug and userId are required")
		return
	}

	result := s.orch.AssembleContext(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

// handleCompleteSession runs the idempotent end-of-session mutation.
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var data orchestrator.SessionData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	data.SessionID = sessionID

	result := s.orch.CompleteSession(r.Context(), data)
	writeJSON(w, http.StatusOK, result)
}

// handleListMemories is a debug listing of stored memories for an owner pair.
func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	personaID, err := strconv.ParseInt(r.URL.Query().Get("persona_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "persona_id is required")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	memories, err := s.db.ListMemories(personaID, userID, r.URL.Query().Get("election"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(memories),
		"memories": memories,
	})
}
