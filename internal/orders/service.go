package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/platform/db"
	"github.com/ronda-hq/ronda/internal/shared"
)

var (
	// ErrNameTaken indicates the order name is already used by a live order.
	ErrNameTaken = errors.New("orders: name already in use")
	// ErrInvalidInput indicates the creation payload failed validation.
	ErrInvalidInput = errors.New("orders: invalid input")
)

// ClientRegistry is the slice of the client boundary the admission guard
// touches when a new round starts.
type ClientRegistry interface {
	ResetNegativeBalances(ctx context.Context, q db.Querier) (int64, error)
	ReactivateDebtors(ctx context.Context, q db.Querier) (int64, error)
}

// Service owns order admission, reopening, and the read surface.
type Service struct {
	repo     Repository
	registry ClientRegistry
	runner   db.Runner
	db       db.Querier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service. q is used for reads outside transactions.
func NewService(repo Repository, registry ClientRegistry, runner db.Runner, q db.Querier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		runner:   runner,
		db:       q,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateOrderInput is the payload for starting a new round.
type CreateOrderInput struct {
	Name    string
	EndDate *time.Time
	TaxRate decimal.Decimal
}

func (in CreateOrderInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: tax rate must be within [0,1]", ErrInvalidInput)
	}
	return nil
}

// Create admits a new round. It is blocked while any order is open or in its
// grace period; on success every negative client balance is forgiven and
// debtors become active again, all within the admission transaction.
func (s *Service) Create(ctx context.Context, in CreateOrderInput, actorID int64) (*Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var orderID int64
	err := s.runner.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		grace, err := s.repo.FindByStatusForUpdate(ctx, q, StatusGracePeriod)
		if err != nil {
			return err
		}
		if grace != nil {
			return shared.NewGracePeriodError(grace.ID, s.graceDeadline(ctx, q, grace), s.now())
		}

		open, err := s.repo.FindByStatusForUpdate(ctx, q, StatusOpen)
		if err != nil {
			return err
		}
		if open != nil {
			return shared.ErrOrderAlreadyOpen
		}

		taken, err := s.repo.NameInUse(ctx, q, in.Name)
		if err != nil {
			return err
		}
		if taken {
			return ErrNameTaken
		}

		orderID, err = s.repo.Create(ctx, q, &Order{
			Name:      in.Name,
			StartDate: s.now(),
			EndDate:   in.EndDate,
			TaxRate:   in.TaxRate,
			Status:    StatusOpen,
			CreatedBy: actorID,
		})
		if err != nil {
			return err
		}

		forgiven, err := s.registry.ResetNegativeBalances(ctx, q)
		if err != nil {
			return err
		}
		reactivated, err := s.registry.ReactivateDebtors(ctx, q)
		if err != nil {
			return err
		}
		s.logger.Info("order admitted",
			slog.Int64("order_id", orderID),
			slog.Int64("actor_id", actorID),
			slog.Int64("balances_forgiven", forgiven),
			slog.Int64("debtors_reactivated", reactivated))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, s.db, orderID)
}

// graceDeadline reads the running grace order's payment deadline, falling
// back to closure time plus the grace window when no summary exists.
func (s *Service) graceDeadline(ctx context.Context, q db.Querier, grace *Order) time.Time {
	if summary, err := s.repo.GetSummary(ctx, q, grace.ID); err == nil && summary.PaymentDeadline != nil {
		return *summary.PaymentDeadline
	}
	if grace.ClosedAt != nil {
		return grace.ClosedAt.Add(GraceWindow)
	}
	return s.now()
}

// Reopen returns a closed order to open, admin-only. It obeys the same
// singleton invariants as admission.
func (s *Service) Reopen(ctx context.Context, orderID, actorID int64) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		o, err := s.repo.GetForUpdate(ctx, q, orderID)
		if err != nil {
			return err
		}
		switch o.Status {
		case StatusOpen:
			return shared.ErrAlreadyOpen
		case StatusGracePeriod:
			// An unresolved grace period must be settled or liquidated first.
			return shared.ErrBlockedByGraceOrder
		}

		open, err := s.repo.FindByStatusForUpdate(ctx, q, StatusOpen)
		if err != nil {
			return err
		}
		if open != nil && open.ID != orderID {
			return shared.ErrBlockedByOpenOrder
		}
		grace, err := s.repo.FindByStatusForUpdate(ctx, q, StatusGracePeriod)
		if err != nil {
			return err
		}
		if grace != nil && grace.ID != orderID {
			return shared.ErrBlockedByGraceOrder
		}

		if err := s.repo.Reopen(ctx, q, orderID); err != nil {
			return err
		}
		s.logger.Info("order reopened", slog.Int64("order_id", orderID), slog.Int64("actor_id", actorID))
		return nil
	})
}

// Get returns the order with its ledger entries and closure summary.
func (s *Service) Get(ctx context.Context, orderID int64) (*OrderDetails, error) {
	o, err := s.repo.Get(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	details := OrderDetails{Order: *o}

	entries, err := s.repo.LedgerEntriesByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	details.Ledger = entries

	summary, err := s.repo.GetSummary(ctx, s.db, orderID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	details.Summary = summary
	return &details, nil
}

// List returns all live orders, most recent round first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.repo.List(ctx, s.db)
}

// Deactivate soft-deletes an order. Orders are never physically removed.
func (s *Service) Deactivate(ctx context.Context, orderID, actorID int64) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		o, err := s.repo.GetForUpdate(ctx, q, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusClosed {
			return fmt.Errorf("%w: only closed orders can be deactivated", ErrInvalidInput)
		}
		if err := s.repo.SoftDelete(ctx, q, orderID); err != nil {
			return err
		}
		s.logger.Info("order deactivated", slog.Int64("order_id", orderID), slog.Int64("actor_id", actorID))
		return nil
	})
}
