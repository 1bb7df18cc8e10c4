package leads

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/convoleads/leadqual/pkg/logging"
)

// Handler handles HTTP requests for leads
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// GetLead handles GET /admin/leads/{leadID}.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		http.Error(w, "missing lead id", http.StatusBadRequest)
		return
	}

	lead, err := h.repo.Get(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			http.Error(w, "lead not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get lead", "lead_id", leadID, "error", err)
		http.Error(w, "failed to get lead", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, lead)
}

// Convert handles POST /admin/leads/{leadID}/convert. This is the external
// sales action behind the converted status; the scoring pipeline never sets
// it.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		http.Error(w, "missing lead id", http.StatusBadRequest)
		return
	}

	lead, err := h.repo.Convert(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			http.Error(w, "lead not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to convert lead", "lead_id", leadID, "error", err)
		http.Error(w, "failed to convert lead", http.StatusInternalServerError)
		return
	}

	h.logger.Info("lead converted", "lead_id", lead.ID)
	h.writeJSON(w, http.StatusOK, lead)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
