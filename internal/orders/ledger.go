package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/platform/db"
	"github.com/ronda-hq/ronda/internal/shared"
)

const ledgerColumns = `id, client_id, order_id, total_purchases, total_payments, balance_due,
	payment_status, closed_at, payment_deadline, post_closure_payments, notes, created_at, updated_at`

func scanLedgerEntry(row pgx.Row) (*LedgerEntry, error) {
	var e LedgerEntry
	err := row.Scan(&e.ID, &e.ClientID, &e.OrderID, &e.TotalPurchases, &e.TotalPayments,
		&e.BalanceDue, &e.PaymentStatus, &e.ClosedAt, &e.PaymentDeadline,
		&e.PostClosurePayments, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertLedgerEntry inserts or replaces the (client, order) settlement row.
// Re-closing an order after a reopen rewrites the snapshot idempotently.
func (r *pgRepository) UpsertLedgerEntry(ctx context.Context, q db.Querier, e *LedgerEntry) error {
	err := q.QueryRow(ctx, `
		INSERT INTO order_ledger (client_id, order_id, total_purchases, total_payments, balance_due,
			payment_status, closed_at, payment_deadline, post_closure_payments, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (client_id, order_id) DO UPDATE SET
			total_purchases = EXCLUDED.total_purchases,
			total_payments = EXCLUDED.total_payments,
			balance_due = EXCLUDED.balance_due,
			payment_status = EXCLUDED.payment_status,
			closed_at = EXCLUDED.closed_at,
			payment_deadline = EXCLUDED.payment_deadline,
			post_closure_payments = EXCLUDED.post_closure_payments,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING id`,
		e.ClientID, e.OrderID, e.TotalPurchases, e.TotalPayments, e.BalanceDue,
		e.PaymentStatus, e.ClosedAt, e.PaymentDeadline, e.PostClosurePayments, e.Notes).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("orders: upsert ledger client %d order %d: %w", e.ClientID, e.OrderID, err)
	}
	return nil
}

func (r *pgRepository) LedgerEntriesByOrder(ctx context.Context, q db.Querier, orderID int64) ([]LedgerEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM order_ledger
		WHERE order_id = $1
		ORDER BY client_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: ledger for order %d: %w", orderID, err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

// InGraceByOrderForUpdate locks and returns the order's unsettled entries.
func (r *pgRepository) InGraceByOrderForUpdate(ctx context.Context, q db.Querier, orderID int64) ([]LedgerEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM order_ledger
		WHERE order_id = $1 AND payment_status = $2
		ORDER BY client_id
		FOR UPDATE`, orderID, PaymentInGrace)
	if err != nil {
		return nil, fmt.Errorf("orders: in-grace entries for order %d: %w", orderID, err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

// InGraceByClientForUpdate locks and returns the client's unsettled entries
// across orders.
func (r *pgRepository) InGraceByClientForUpdate(ctx context.Context, q db.Querier, clientID int64) ([]LedgerEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM order_ledger
		WHERE client_id = $1 AND payment_status = $2
		ORDER BY order_id
		FOR UPDATE`, clientID, PaymentInGrace)
	if err != nil {
		return nil, fmt.Errorf("orders: in-grace entries for client %d: %w", clientID, err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

// PendingByOrder returns the unsettled entries without locking, for
// inspection.
func (r *pgRepository) PendingByOrder(ctx context.Context, q db.Querier, orderID int64) ([]LedgerEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM order_ledger
		WHERE order_id = $1 AND payment_status = $2
		ORDER BY client_id`, orderID, PaymentInGrace)
	if err != nil {
		return nil, fmt.Errorf("orders: pending entries for order %d: %w", orderID, err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

func (r *pgRepository) CountInGrace(ctx context.Context, q db.Querier, orderID int64) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM order_ledger
		WHERE order_id = $1 AND payment_status = $2`, orderID, PaymentInGrace).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("orders: count in grace order %d: %w", orderID, err)
	}
	return count, nil
}

func (r *pgRepository) MarkEntryPaid(ctx context.Context, q db.Querier, id int64, postPayments decimal.Decimal) error {
	tag, err := q.Exec(ctx, `
		UPDATE order_ledger
		SET payment_status = $2, post_closure_payments = $3, updated_at = NOW()
		WHERE id = $1`, id, PaymentPaid, postPayments)
	if err != nil {
		return fmt.Errorf("orders: mark entry %d paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) MarkEntryLiquidated(ctx context.Context, q db.Querier, id int64, notes string) error {
	tag, err := q.Exec(ctx, `
		UPDATE order_ledger
		SET payment_status = $2, notes = $3, updated_at = NOW()
		WHERE id = $1`, id, PaymentLiquidated, notes)
	if err != nil {
		return fmt.Errorf("orders: mark entry %d liquidated: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpsertSummary writes the order's closure snapshot, overwriting any
// snapshot from an earlier closure of the same order.
func (r *pgRepository) UpsertSummary(ctx context.Context, q db.Querier, s *ClosureSummary) error {
	_, err := q.Exec(ctx, `
		INSERT INTO closure_summaries (order_id, subtotal, tax_amount, commission_total, grand_total,
			clients_total, clients_paid, clients_pending, clients_liquidated,
			closed_at, payment_deadline, closure_type, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (order_id) DO UPDATE SET
			subtotal = EXCLUDED.subtotal,
			tax_amount = EXCLUDED.tax_amount,
			commission_total = EXCLUDED.commission_total,
			grand_total = EXCLUDED.grand_total,
			clients_total = EXCLUDED.clients_total,
			clients_paid = EXCLUDED.clients_paid,
			clients_pending = EXCLUDED.clients_pending,
			clients_liquidated = EXCLUDED.clients_liquidated,
			closed_at = EXCLUDED.closed_at,
			payment_deadline = EXCLUDED.payment_deadline,
			closure_type = EXCLUDED.closure_type,
			updated_at = NOW()`,
		s.OrderID, s.Subtotal, s.TaxAmount, s.CommissionTotal, s.GrandTotal,
		s.ClientsTotal, s.ClientsPaid, s.ClientsPending, s.ClientsLiquidated,
		s.ClosedAt, s.PaymentDeadline, s.ClosureType)
	if err != nil {
		return fmt.Errorf("orders: upsert summary order %d: %w", s.OrderID, err)
	}
	return nil
}

func (r *pgRepository) GetSummary(ctx context.Context, q db.Querier, orderID int64) (*ClosureSummary, error) {
	row := q.QueryRow(ctx, `
		SELECT order_id, subtotal, tax_amount, commission_total, grand_total,
			clients_total, clients_paid, clients_pending, clients_liquidated,
			closed_at, payment_deadline, closure_type
		FROM closure_summaries
		WHERE order_id = $1`, orderID)

	var s ClosureSummary
	err := row.Scan(&s.OrderID, &s.Subtotal, &s.TaxAmount, &s.CommissionTotal, &s.GrandTotal,
		&s.ClientsTotal, &s.ClientsPaid, &s.ClientsPending, &s.ClientsLiquidated,
		&s.ClosedAt, &s.PaymentDeadline, &s.ClosureType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("orders: summary for order %d: %w", orderID, err)
	}
	return &s, nil
}

// AdjustSummaryOnLiquidation moves count clients from pending to liquidated.
func (r *pgRepository) AdjustSummaryOnLiquidation(ctx context.Context, q db.Querier, orderID int64, count int) error {
	tag, err := q.Exec(ctx, `
		UPDATE closure_summaries
		SET clients_pending = GREATEST(clients_pending - $2, 0),
			clients_liquidated = clients_liquidated + $2,
			updated_at = NOW()
		WHERE order_id = $1`, orderID, count)
	if err != nil {
		return fmt.Errorf("orders: adjust summary order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RefreshSummaryCounts recomputes the paid/pending counters from the ledger.
func (r *pgRepository) RefreshSummaryCounts(ctx context.Context, q db.Querier, orderID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE closure_summaries cs
		SET clients_paid = counts.paid,
			clients_pending = counts.pending,
			clients_liquidated = counts.liquidated,
			updated_at = NOW()
		FROM (
			SELECT
				COUNT(*) FILTER (WHERE payment_status = $2) AS paid,
				COUNT(*) FILTER (WHERE payment_status = $3) AS pending,
				COUNT(*) FILTER (WHERE payment_status = $4) AS liquidated
			FROM order_ledger
			WHERE order_id = $1
		) counts
		WHERE cs.order_id = $1`,
		orderID, PaymentPaid, PaymentInGrace, PaymentLiquidated)
	if err != nil {
		return fmt.Errorf("orders: refresh summary counts order %d: %w", orderID, err)
	}
	return nil
}

func collectLedgerEntries(rows pgx.Rows) ([]LedgerEntry, error) {
	var out []LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
