package server

import (
	"encoding/json"
	"net/http"

	"contact-metrics/storage"

	"github.com/go-chi/chi/v5"
)

// handleAgentHistory returns the persisted capacity rows of an agent
// GET /api/agents/{agentId}/history
func (s *Server) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}

	items, err := s.store.GetAgentHistory(r.Context(), agentID)
	if err != nil {
		s.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to get agent history")
		writeError(w, http.StatusInternalServerError, "failed to retrieve history")
		return
	}

	if items == nil {
		items = []storage.CapacityItem{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
