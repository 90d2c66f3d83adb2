package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ronda-hq/ronda/internal/closure"
	"github.com/ronda-hq/ronda/internal/credit"
	"github.com/ronda-hq/ronda/internal/liquidation"
	"github.com/ronda-hq/ronda/internal/observability"
	"github.com/ronda-hq/ronda/internal/orders"
	"github.com/ronda-hq/ronda/internal/payments"
	"github.com/ronda-hq/ronda/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Config             *Config
	OrdersHandler      *orders.Handler
	ClosureHandler     *closure.Handler
	LiquidationHandler *liquidation.Handler
	PaymentsHandler    *payments.Handler
	CreditHandler      *credit.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	Logger             *slog.Logger
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.OrdersHandler != nil {
		params.OrdersHandler.MountRoutes(r)
	}
	if params.ClosureHandler != nil {
		params.ClosureHandler.MountRoutes(r)
	}
	if params.LiquidationHandler != nil {
		params.LiquidationHandler.MountRoutes(r)
	}
	if params.PaymentsHandler != nil {
		params.PaymentsHandler.MountRoutes(r)
	}
	if params.CreditHandler != nil {
		params.CreditHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
