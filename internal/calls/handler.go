package calls

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/wavecare-ai/wavecare-voice/pkg/logging"
)

// Handler serves the dashboard's call history and live-call views.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a new calls handler
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// ListResponse is the response for listing calls
type ListResponse struct {
	Calls      []Session  `json:"calls"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes one page of results.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// List handles GET /api/v1/calls
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := 1, 10
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	sessions, total, err := h.store.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("failed to list calls", "error", err)
		http.Error(w, "failed to list calls", http.StatusInternalServerError)
		return
	}

	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Calls: sessions,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}

// Live handles GET /api/v1/calls/live. Reading through the store reaps stale
// sessions, so a lost terminal callback cannot pin the live view forever.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.FindCurrentLive(r.Context())
	if err != nil {
		h.logger.Error("failed to load live call", "error", err)
		http.Error(w, "failed to load live call", http.StatusInternalServerError)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
