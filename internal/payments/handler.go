package payments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ronda-hq/ronda/internal/shared"
)

// Handler exposes payment resolution and the pending-debt view over HTTP.
type Handler struct {
	logger  *slog.Logger
	watcher *Watcher
}

// NewHandler constructs a payments handler.
func NewHandler(logger *slog.Logger, watcher *Watcher) *Handler {
	return &Handler{logger: logger, watcher: watcher}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/clients/{id}/payments/resolve", h.resolve)
	r.Get("/orders/{id}/pending", h.pending)
}

// resolve is called by the payment pipeline after a verified payment lands.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || clientID <= 0 {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if err := h.watcher.ResolvePaymentForClient(r.Context(), clientID); err != nil {
		if !shared.IsBusinessError(err) {
			h.logger.Error("resolve payment", slog.Int64("client_id", clientID), slog.Any("error", err))
		}
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusAccepted, map[string]any{"client_id": clientID})
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	report, err := h.watcher.Pending(r.Context(), orderID)
	if err != nil {
		if !shared.IsBusinessError(err) {
			h.logger.Error("pending report", slog.Int64("order_id", orderID), slog.Any("error", err))
		}
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, report)
}
