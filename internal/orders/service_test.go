package orders

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronda-hq/ronda/internal/platform/db"
	"github.com/ronda-hq/ronda/internal/shared"
)

type mockRunner struct{}

func (m *mockRunner) WithTx(ctx context.Context, fn func(ctx context.Context, q db.Querier) error) error {
	return fn(ctx, nil)
}

type mockRepository struct {
	orders    map[int64]*Order
	entries   map[int64]*LedgerEntry
	summaries map[int64]*ClosureSummary
	nextID    int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orders:    make(map[int64]*Order),
		entries:   make(map[int64]*LedgerEntry),
		summaries: make(map[int64]*ClosureSummary),
		nextID:    1,
	}
}

func (m *mockRepository) Get(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok || o.DeletedAt != nil {
		return nil, shared.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockRepository) GetForUpdate(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	return m.Get(ctx, q, id)
}

func (m *mockRepository) List(ctx context.Context, q db.Querier) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.DeletedAt == nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockRepository) FindByStatusForUpdate(ctx context.Context, q db.Querier, status Status) (*Order, error) {
	for _, o := range m.orders {
		if o.DeletedAt == nil && o.Status == status {
			copied := *o
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRepository) Create(ctx context.Context, q db.Querier, o *Order) (int64, error) {
	id := m.nextID
	m.nextID++
	stored := *o
	stored.ID = id
	m.orders[id] = &stored
	return id, nil
}

func (m *mockRepository) NameInUse(ctx context.Context, q db.Querier, name string) (bool, error) {
	for _, o := range m.orders {
		if o.DeletedAt == nil && o.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) MarkClosed(ctx context.Context, q db.Querier, id int64, stamp ClosureStamp) error {
	o := m.orders[id]
	o.Status = StatusClosed
	o.ClosedAt = &stamp.ClosedAt
	o.ClosedBy = &stamp.ClosedBy
	t := stamp.Type
	o.ClosureType = &t
	return nil
}

func (m *mockRepository) SetStatus(ctx context.Context, q db.Querier, id int64, status Status) error {
	m.orders[id].Status = status
	return nil
}

func (m *mockRepository) Reopen(ctx context.Context, q db.Querier, id int64) error {
	o := m.orders[id]
	o.Status = StatusOpen
	o.ClosedAt = nil
	o.ClosedBy = nil
	o.ClosureType = nil
	return nil
}

func (m *mockRepository) SoftDelete(ctx context.Context, q db.Querier, id int64) error {
	now := time.Now()
	m.orders[id].DeletedAt = &now
	return nil
}

func (m *mockRepository) ListDue(ctx context.Context, q db.Querier, now time.Time) ([]Order, error) {
	return nil, nil
}

func (m *mockRepository) ListGraceExpired(ctx context.Context, q db.Querier, now time.Time) ([]Order, error) {
	return nil, nil
}

func (m *mockRepository) UpsertLedgerEntry(ctx context.Context, q db.Querier, e *LedgerEntry) error {
	copied := *e
	m.entries[e.ID] = &copied
	return nil
}

func (m *mockRepository) LedgerEntriesByOrder(ctx context.Context, q db.Querier, orderID int64) ([]LedgerEntry, error) {
	var out []LedgerEntry
	for _, e := range m.entries {
		if e.OrderID == orderID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockRepository) InGraceByOrderForUpdate(ctx context.Context, q db.Querier, orderID int64) ([]LedgerEntry, error) {
	return nil, nil
}

func (m *mockRepository) InGraceByClientForUpdate(ctx context.Context, q db.Querier, clientID int64) ([]LedgerEntry, error) {
	return nil, nil
}

func (m *mockRepository) PendingByOrder(ctx context.Context, q db.Querier, orderID int64) ([]LedgerEntry, error) {
	return nil, nil
}

func (m *mockRepository) CountInGrace(ctx context.Context, q db.Querier, orderID int64) (int, error) {
	return 0, nil
}

func (m *mockRepository) MarkEntryPaid(ctx context.Context, q db.Querier, id int64, postPayments decimal.Decimal) error {
	return nil
}

func (m *mockRepository) MarkEntryLiquidated(ctx context.Context, q db.Querier, id int64, notes string) error {
	return nil
}

func (m *mockRepository) UpsertSummary(ctx context.Context, q db.Querier, s *ClosureSummary) error {
	copied := *s
	m.summaries[s.OrderID] = &copied
	return nil
}

func (m *mockRepository) GetSummary(ctx context.Context, q db.Querier, orderID int64) (*ClosureSummary, error) {
	s, ok := m.summaries[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *mockRepository) AdjustSummaryOnLiquidation(ctx context.Context, q db.Querier, orderID int64, count int) error {
	return nil
}

func (m *mockRepository) RefreshSummaryCounts(ctx context.Context, q db.Querier, orderID int64) error {
	return nil
}

type mockRegistry struct {
	resets      int
	reactivates int
}

func (m *mockRegistry) ResetNegativeBalances(ctx context.Context, q db.Querier) (int64, error) {
	m.resets++
	return 2, nil
}

func (m *mockRegistry) ReactivateDebtors(ctx context.Context, q db.Querier) (int64, error) {
	m.reactivates++
	return 1, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T) (*Service, *mockRepository, *mockRegistry) {
	t.Helper()
	repo := newMockRepository()
	registry := &mockRegistry{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, registry, &mockRunner{}, nil, logger)
	return svc, repo, registry
}

func TestCreateAdmitsRoundAndResetsRegistry(t *testing.T) {
	svc, _, registry := newTestService(t)

	order, err := svc.Create(context.Background(), CreateOrderInput{Name: "round 14", TaxRate: dec("0.1")}, 7)
	require.NoError(t, err)

	assert.Equal(t, StatusOpen, order.Status)
	assert.Equal(t, "round 14", order.Name)
	assert.Equal(t, int64(7), order.CreatedBy)
	assert.Equal(t, 1, registry.resets)
	assert.Equal(t, 1, registry.reactivates)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateOrderInput{Name: "", TaxRate: dec("0.1")}, 7)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), CreateOrderInput{Name: "x", TaxRate: dec("1.5")}, 7)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateBlockedByOpenOrder(t *testing.T) {
	svc, repo, registry := newTestService(t)
	repo.orders[1] = &Order{ID: 1, Name: "running", Status: StatusOpen}

	_, err := svc.Create(context.Background(), CreateOrderInput{Name: "next", TaxRate: dec("0")}, 7)
	require.ErrorIs(t, err, shared.ErrOrderAlreadyOpen)
	assert.Zero(t, registry.resets)
}

func TestCreateBlockedByGracePeriodReportsHours(t *testing.T) {
	svc, repo, _ := newTestService(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	deadline := now.Add(30 * time.Hour)
	closedAt := now.Add(-18 * time.Hour)
	repo.orders[1] = &Order{ID: 1, Name: "stuck", Status: StatusGracePeriod, ClosedAt: &closedAt}
	repo.summaries[1] = &ClosureSummary{OrderID: 1, PaymentDeadline: &deadline}

	_, err := svc.Create(context.Background(), CreateOrderInput{Name: "next", TaxRate: dec("0")}, 7)
	require.ErrorIs(t, err, shared.ErrOrderInGracePeriod)

	var grace *shared.GracePeriodError
	require.ErrorAs(t, err, &grace)
	assert.Equal(t, int64(1), grace.OrderID)
	assert.Equal(t, deadline, grace.Deadline)
	assert.InDelta(t, 30, grace.HoursRemaining, 0.01)
}

func TestCreateGraceDeadlineFallsBackToClosureTime(t *testing.T) {
	svc, repo, _ := newTestService(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	closedAt := now.Add(-10 * time.Hour)
	repo.orders[1] = &Order{ID: 1, Name: "stuck", Status: StatusGracePeriod, ClosedAt: &closedAt}

	_, err := svc.Create(context.Background(), CreateOrderInput{Name: "next", TaxRate: dec("0")}, 7)
	var grace *shared.GracePeriodError
	require.ErrorAs(t, err, &grace)
	assert.Equal(t, closedAt.Add(GraceWindow), grace.Deadline)
	assert.InDelta(t, 38, grace.HoursRemaining, 0.01)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.orders[1] = &Order{ID: 1, Name: "round 14", Status: StatusClosed}

	_, err := svc.Create(context.Background(), CreateOrderInput{Name: "round 14", TaxRate: dec("0")}, 7)
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestReopenClosedOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	closedAt := time.Now()
	by := int64(7)
	repo.orders[1] = &Order{ID: 1, Name: "done", Status: StatusClosed, ClosedAt: &closedAt, ClosedBy: &by}

	require.NoError(t, svc.Reopen(context.Background(), 1, 7))
	assert.Equal(t, StatusOpen, repo.orders[1].Status)
	assert.Nil(t, repo.orders[1].ClosedAt)
	assert.Nil(t, repo.orders[1].ClosureType)
}

func TestReopenRejectsOpenOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.orders[1] = &Order{ID: 1, Status: StatusOpen}

	err := svc.Reopen(context.Background(), 1, 7)
	require.ErrorIs(t, err, shared.ErrAlreadyOpen)
}

func TestReopenRejectsGracePeriodOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.orders[1] = &Order{ID: 1, Status: StatusGracePeriod}

	err := svc.Reopen(context.Background(), 1, 7)
	require.ErrorIs(t, err, shared.ErrBlockedByGraceOrder)
}

func TestReopenBlockedByAnotherLiveOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.orders[1] = &Order{ID: 1, Status: StatusClosed}
	repo.orders[2] = &Order{ID: 2, Status: StatusOpen}

	err := svc.Reopen(context.Background(), 1, 7)
	require.ErrorIs(t, err, shared.ErrBlockedByOpenOrder)

	repo.orders[2].Status = StatusGracePeriod
	err = svc.Reopen(context.Background(), 1, 7)
	require.ErrorIs(t, err, shared.ErrBlockedByGraceOrder)
}

func TestGetIncludesLedgerAndSummary(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.orders[1] = &Order{ID: 1, Name: "round", Status: StatusClosed}
	repo.entries[1] = &LedgerEntry{ID: 1, OrderID: 1, ClientID: 10, PaymentStatus: PaymentPaid}
	repo.summaries[1] = &ClosureSummary{OrderID: 1, ClientsTotal: 1, ClientsPaid: 1}

	details, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), details.Order.ID)
	require.Len(t, details.Ledger, 1)
	require.NotNil(t, details.Summary)
	assert.Equal(t, 1, details.Summary.ClientsPaid)
}

func TestGetToleratesMissingSummary(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.orders[1] = &Order{ID: 1, Name: "open round", Status: StatusOpen}

	details, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, details.Summary)
}

func TestDeactivateOnlyClosedOrders(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.orders[1] = &Order{ID: 1, Status: StatusOpen}
	repo.orders[2] = &Order{ID: 2, Status: StatusClosed}

	err := svc.Deactivate(context.Background(), 1, 7)
	require.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, svc.Deactivate(context.Background(), 2, 7))
	_, err = svc.Get(context.Background(), 2)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
