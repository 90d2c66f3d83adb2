package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/platform/db"
	"github.com/ronda-hq/ronda/internal/shared"
)

// Repository is the order, ledger, and closure-summary data-access layer.
// No business rules live here; validation belongs to the lifecycle engines.
// Every method takes a db.Querier so the engines can compose them inside a
// single transaction.
type Repository interface {
	Get(ctx context.Context, q db.Querier, id int64) (*Order, error)
	GetForUpdate(ctx context.Context, q db.Querier, id int64) (*Order, error)
	List(ctx context.Context, q db.Querier) ([]Order, error)
	FindByStatusForUpdate(ctx context.Context, q db.Querier, status Status) (*Order, error)
	Create(ctx context.Context, q db.Querier, o *Order) (int64, error)
	NameInUse(ctx context.Context, q db.Querier, name string) (bool, error)
	MarkClosed(ctx context.Context, q db.Querier, id int64, stamp ClosureStamp) error
	SetStatus(ctx context.Context, q db.Querier, id int64, status Status) error
	Reopen(ctx context.Context, q db.Querier, id int64) error
	SoftDelete(ctx context.Context, q db.Querier, id int64) error
	ListDue(ctx context.Context, q db.Querier, now time.Time) ([]Order, error)
	ListGraceExpired(ctx context.Context, q db.Querier, now time.Time) ([]Order, error)

	UpsertLedgerEntry(ctx context.Context, q db.Querier, e *LedgerEntry) error
	LedgerEntriesByOrder(ctx context.Context, q db.Querier, orderID int64) ([]LedgerEntry, error)
	InGraceByOrderForUpdate(ctx context.Context, q db.Querier, orderID int64) ([]LedgerEntry, error)
	InGraceByClientForUpdate(ctx context.Context, q db.Querier, clientID int64) ([]LedgerEntry, error)
	PendingByOrder(ctx context.Context, q db.Querier, orderID int64) ([]LedgerEntry, error)
	CountInGrace(ctx context.Context, q db.Querier, orderID int64) (int, error)
	MarkEntryPaid(ctx context.Context, q db.Querier, id int64, postPayments decimal.Decimal) error
	MarkEntryLiquidated(ctx context.Context, q db.Querier, id int64, notes string) error

	UpsertSummary(ctx context.Context, q db.Querier, s *ClosureSummary) error
	GetSummary(ctx context.Context, q db.Querier, orderID int64) (*ClosureSummary, error)
	AdjustSummaryOnLiquidation(ctx context.Context, q db.Querier, orderID int64, count int) error
	RefreshSummaryCounts(ctx context.Context, q db.Querier, orderID int64) error
}

type pgRepository struct{}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository() Repository {
	return &pgRepository{}
}

const orderColumns = `id, name, start_date, end_date, tax_rate, status, closure_type,
	closed_at, closed_by, created_by, deleted_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Name, &o.StartDate, &o.EndDate, &o.TaxRate, &o.Status,
		&o.ClosureType, &o.ClosedAt, &o.ClosedBy, &o.CreatedBy, &o.DeletedAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *pgRepository) Get(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("orders: get %d: %w", id, err)
	}
	return o, nil
}

func (r *pgRepository) GetForUpdate(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("orders: lock %d: %w", id, err)
	}
	return o, nil
}

func (r *pgRepository) List(ctx context.Context, q db.Querier) ([]Order, error) {
	rows, err := q.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE deleted_at IS NULL
		ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// FindByStatusForUpdate locks and returns the single order holding the given
// lifecycle state, or nil when none does. The lock closes the race between
// the singleton check and the state change that depends on it.
func (r *pgRepository) FindByStatusForUpdate(ctx context.Context, q db.Querier, status Status) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1 AND deleted_at IS NULL
		ORDER BY id
		LIMIT 1
		FOR UPDATE`, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("orders: find by status %s: %w", status, err)
	}
	return o, nil
}

func (r *pgRepository) Create(ctx context.Context, q db.Querier, o *Order) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO orders (name, start_date, end_date, tax_rate, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id`,
		o.Name, o.StartDate, o.EndDate, o.TaxRate, o.Status, o.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("orders: create: %w", err)
	}
	return id, nil
}

func (r *pgRepository) NameInUse(ctx context.Context, q db.Querier, name string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE name = $1 AND deleted_at IS NULL)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("orders: name in use: %w", err)
	}
	return exists, nil
}

func (r *pgRepository) MarkClosed(ctx context.Context, q db.Querier, id int64, stamp ClosureStamp) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders
		SET status = $2, closure_type = $3, closed_at = $4, closed_by = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, StatusClosed, stamp.Type, stamp.ClosedAt, stamp.ClosedBy)
	if err != nil {
		return fmt.Errorf("orders: mark closed %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetStatus(ctx context.Context, q db.Querier, id int64, status Status) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, status)
	if err != nil {
		return fmt.Errorf("orders: set status %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Reopen returns the order to open and clears the closure stamp.
func (r *pgRepository) Reopen(ctx context.Context, q db.Querier, id int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders
		SET status = $2, closure_type = NULL, closed_at = NULL, closed_by = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, StatusOpen)
	if err != nil {
		return fmt.Errorf("orders: reopen %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) SoftDelete(ctx context.Context, q db.Querier, id int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("orders: soft delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListDue returns open orders whose end date has passed.
func (r *pgRepository) ListDue(ctx context.Context, q db.Querier, now time.Time) ([]Order, error) {
	rows, err := q.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1 AND end_date IS NOT NULL AND end_date <= $2 AND deleted_at IS NULL
		ORDER BY end_date`, StatusOpen, now)
	if err != nil {
		return nil, fmt.Errorf("orders: list due: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListGraceExpired returns grace-period orders whose payment deadline has
// elapsed, per the closure summary snapshot.
func (r *pgRepository) ListGraceExpired(ctx context.Context, q db.Querier, now time.Time) ([]Order, error) {
	rows, err := q.Query(ctx, `
		SELECT `+qualifiedOrderColumns+`
		FROM orders o
		JOIN closure_summaries cs ON cs.order_id = o.id
		WHERE o.status = $1 AND cs.payment_deadline IS NOT NULL AND cs.payment_deadline <= $2
		  AND o.deleted_at IS NULL
		ORDER BY cs.payment_deadline`, StatusGracePeriod, now)
	if err != nil {
		return nil, fmt.Errorf("orders: list grace expired: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

const qualifiedOrderColumns = `o.id, o.name, o.start_date, o.end_date, o.tax_rate, o.status, o.closure_type,
	o.closed_at, o.closed_by, o.created_by, o.deleted_at, o.created_at, o.updated_at`

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
