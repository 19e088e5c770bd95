package stats

import (
	"encoding/json"
	"net/http"

	"github.com/wavecare-ai/wavecare-voice/pkg/logging"
)

// Handler serves GET /api/v1/stats.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates the stats handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger.Component("stats")}
}

// Summary returns the dashboard aggregates.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.Summary(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}
