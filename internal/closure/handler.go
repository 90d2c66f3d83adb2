package closure

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ronda-hq/ronda/internal/shared"
)

// Handler exposes manual order closure over HTTP.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler constructs a closure handler.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{id}/close", h.close)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID <= 0 {
		shared.RespondJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing actor"})
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	result, err := h.engine.CloseOrder(r.Context(), orderID, actorID)
	if err != nil {
		if !shared.IsBusinessError(err) {
			h.logger.Error("close order", slog.Int64("order_id", orderID), slog.Any("error", err))
		}
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, result)
}
