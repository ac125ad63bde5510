package api

import (
	"net/http"
)

// StatsProvider reports ingestion and solver counters keyed in snake_case.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatsHandler exposes the service counters the simulator polls while it
// waits for ingestion to settle.
type StatsHandler struct {
	provider StatsProvider
}

func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
