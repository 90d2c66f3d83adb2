package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/shared"
)

// Handler exposes the order lifecycle over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs an order handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validate,
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Post("/{id}/reopen", h.reopen)
		r.Delete("/{id}", h.deactivate)
	})
}

type createOrderRequest struct {
	Name    string          `json:"name" validate:"required,min=1,max=120"`
	EndDate *time.Time      `json:"end_date"`
	TaxRate decimal.Decimal `json:"tax_rate"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	order, err := h.service.Create(r.Context(), CreateOrderInput{
		Name:    req.Name,
		EndDate: req.EndDate,
		TaxRate: req.TaxRate,
	}, actorID)
	if err != nil {
		h.respondServiceError(w, "create order", err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseID(w, r)
	if !ok {
		return
	}
	details, err := h.service.Get(r.Context(), orderID)
	if err != nil {
		h.respondServiceError(w, "get order", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, details)
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Reopen(r.Context(), orderID, actorID); err != nil {
		h.respondServiceError(w, "reopen order", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": StatusOpen})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Deactivate(r.Context(), orderID, actorID); err != nil {
		h.respondServiceError(w, "deactivate order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNameTaken):
		shared.RespondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		if !shared.IsBusinessError(err) {
			h.logger.Error(op, slog.Any("error", err))
		}
		shared.RespondError(w, err)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID <= 0 {
		shared.RespondJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing actor"})
		return 0, false
	}
	return actorID, true
}
