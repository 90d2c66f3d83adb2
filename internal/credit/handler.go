package credit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ronda-hq/ronda/internal/shared"
)

// Handler exposes credit scoring over HTTP.
type Handler struct {
	logger *slog.Logger
	scorer *Scorer
}

// NewHandler constructs a credit handler.
func NewHandler(logger *slog.Logger, scorer *Scorer) *Handler {
	return &Handler{logger: logger, scorer: scorer}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients/{id}/credit", h.score)
	r.Get("/clients/{id}/credit/eligibility", h.eligibility)
	r.Get("/clients/{id}/defaults", h.history)
}

func (h *Handler) score(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	report, err := h.scorer.Score(r.Context(), clientID)
	if err != nil {
		h.logger.Error("score client", slog.Int64("client_id", clientID), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) eligibility(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	eligibility, err := h.scorer.CanParticipate(r.Context(), clientID)
	if err != nil {
		h.logger.Error("eligibility check", slog.Int64("client_id", clientID), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, eligibility)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	records, err := h.scorer.History(r.Context(), clientID)
	if err != nil {
		h.logger.Error("default history", slog.Int64("client_id", clientID), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"client_id": clientID, "defaults": records})
}

func (h *Handler) clientID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
