package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleInferenceStats(w http.ResponseWriter, r *http.Request) {
	if s.inference == nil {
		jsonError(w, "inference stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model": s.inference.Model(),
		"stats": s.inference.Stats().Snapshot(),
	})
}
