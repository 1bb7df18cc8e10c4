package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/convoleads/leadqual/internal/leads"
	"github.com/convoleads/leadqual/pkg/logging"
)

// Handler wires HTTP requests to the conversation orchestrator.
type Handler struct {
	orchestrator *Orchestrator
	logger       *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(orchestrator *Orchestrator, logger *logging.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// messageRequest is the inbound payload for POST /conversations/message.
type messageRequest struct {
	LeadID   string         `json:"leadId"`
	Message  string         `json:"message"`
	LeadInfo *leads.Profile `json:"leadInfo,omitempty"`
}

// Message handles POST /conversations/message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.orchestrator.HandleMessage(r.Context(), ExchangeRequest{
		LeadID:  req.LeadID,
		Message: req.Message,
		Profile: req.LeadInfo,
	})
	if err != nil {
		h.writeError(w, req.LeadID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Transcript handles GET /admin/leads/{leadID}/turns.
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		http.Error(w, "missing lead id", http.StatusBadRequest)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	turns, err := h.orchestrator.RecentTurns(r.Context(), leadID, limit)
	if err != nil {
		h.writeError(w, leadID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"leadId": leadID,
		"turns":  turns,
		"count":  len(turns),
	})
}

// writeError maps pipeline errors onto HTTP statuses. Internal faults get a
// generic message; upstream details never reach the caller.
func (h *Handler) writeError(w http.ResponseWriter, leadID string, err error) {
	switch {
	case errors.Is(err, ErrMissingLeadID), errors.Is(err, ErrEmptyMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, leads.ErrLeadNotFound):
		http.Error(w, "lead not found; include leadInfo with an email to create one", http.StatusNotFound)
	default:
		h.logger.Error("exchange failed", "lead_id", leadID, "error", err)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
