package liquidation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronda-hq/ronda/internal/catalog"
	"github.com/ronda-hq/ronda/internal/clients"
	"github.com/ronda-hq/ronda/internal/credit"
	"github.com/ronda-hq/ronda/internal/orders"
	"github.com/ronda-hq/ronda/internal/platform/db"
	"github.com/ronda-hq/ronda/internal/shared"
)

type mockRunner struct{}

func (m *mockRunner) WithTx(ctx context.Context, fn func(ctx context.Context, q db.Querier) error) error {
	return fn(ctx, nil)
}

type mockOrderStore struct {
	orders  map[int64]*orders.Order
	entries map[int64]*orders.LedgerEntry
	expired []orders.Order

	adjusted map[int64]int
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		orders:   make(map[int64]*orders.Order),
		entries:  make(map[int64]*orders.LedgerEntry),
		adjusted: make(map[int64]int),
	}
}

func (m *mockOrderStore) GetForUpdate(ctx context.Context, q db.Querier, id int64) (*orders.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderStore) InGraceByOrderForUpdate(ctx context.Context, q db.Querier, orderID int64) ([]orders.LedgerEntry, error) {
	var out []orders.LedgerEntry
	for _, e := range m.entries {
		if e.OrderID == orderID && e.PaymentStatus == orders.PaymentInGrace {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockOrderStore) MarkEntryLiquidated(ctx context.Context, q db.Querier, id int64, notes string) error {
	e := m.entries[id]
	e.PaymentStatus = orders.PaymentLiquidated
	e.Notes = notes
	return nil
}

func (m *mockOrderStore) AdjustSummaryOnLiquidation(ctx context.Context, q db.Querier, orderID int64, count int) error {
	m.adjusted[orderID] += count
	return nil
}

func (m *mockOrderStore) CountInGrace(ctx context.Context, q db.Querier, orderID int64) (int, error) {
	n := 0
	for _, e := range m.entries {
		if e.OrderID == orderID && e.PaymentStatus == orders.PaymentInGrace {
			n++
		}
	}
	return n, nil
}

func (m *mockOrderStore) SetStatus(ctx context.Context, q db.Querier, id int64, status orders.Status) error {
	m.orders[id].Status = status
	return nil
}

func (m *mockOrderStore) ListGraceExpired(ctx context.Context, q db.Querier, now time.Time) ([]orders.Order, error) {
	return m.expired, nil
}

type mockClientStore struct {
	statuses map[int64]clients.Status
}

func (m *mockClientStore) SetStatus(ctx context.Context, q db.Querier, id int64, status clients.Status) error {
	m.statuses[id] = status
	return nil
}

type mockCatalog struct {
	products map[int64][]catalog.Product
}

func (m *mockCatalog) ListActive(ctx context.Context, q db.Querier, clientID, orderID int64) ([]catalog.Product, error) {
	return m.products[clientID], nil
}

type mockSeizureStore struct {
	products []LiquidatedProduct
	clients  []LiquidatedClient
}

func (m *mockSeizureStore) InsertProduct(ctx context.Context, q db.Querier, p *LiquidatedProduct) error {
	p.ID = int64(len(m.products) + 1)
	m.products = append(m.products, *p)
	return nil
}

func (m *mockSeizureStore) InsertClient(ctx context.Context, q db.Querier, c *LiquidatedClient) error {
	c.ID = int64(len(m.clients) + 1)
	m.clients = append(m.clients, *c)
	return nil
}

type mockDefaultStore struct {
	records []credit.DefaultRecord
}

func (m *mockDefaultStore) InsertDefault(ctx context.Context, q db.Querier, rec *credit.DefaultRecord) error {
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *rec)
	return nil
}

type mockInvalidator struct {
	invalidated []int64
}

func (m *mockInvalidator) Invalidate(ctx context.Context, clientID int64) {
	m.invalidated = append(m.invalidated, clientID)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	engine   *Engine
	orders   *mockOrderStore
	clients  *mockClientStore
	catalog  *mockCatalog
	seizures *mockSeizureStore
	defaults *mockDefaultStore
	scores   *mockInvalidator
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:   newMockOrderStore(),
		clients:  &mockClientStore{statuses: make(map[int64]clients.Status)},
		catalog:  &mockCatalog{products: make(map[int64][]catalog.Product)},
		seizures: &mockSeizureStore{},
		defaults: &mockDefaultStore{},
		scores:   &mockInvalidator{},
		now:      time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.engine = NewEngine(f.orders, f.clients, f.catalog, f.seizures, f.defaults, f.scores, &mockRunner{}, nil, logger)
	f.engine.WithNow(func() time.Time { return f.now })
	return f
}

func (f *fixture) addGraceEntry(id, clientID, orderID int64, balanceDue, payments string, deadline time.Time) {
	d := deadline
	f.orders.entries[id] = &orders.LedgerEntry{
		ID:              id,
		ClientID:        clientID,
		OrderID:         orderID,
		TotalPayments:   dec(payments),
		BalanceDue:      dec(balanceDue),
		PaymentStatus:   orders.PaymentInGrace,
		PaymentDeadline: &d,
	}
}

func TestLiquidateSkipsUnexpiredWithoutForce(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[1] = &orders.Order{ID: 1, Status: orders.StatusGracePeriod, TaxRate: dec("0.1")}
	f.addGraceEntry(1, 10, 1, "150", "200", f.now.Add(12*time.Hour))

	result, err := f.engine.LiquidateDelinquents(context.Background(), 1, 7, false)
	require.NoError(t, err)

	assert.Empty(t, result.Liquidated)
	assert.False(t, result.OrderClosed)
	assert.Equal(t, orders.PaymentInGrace, f.orders.entries[1].PaymentStatus)
	assert.Empty(t, f.scores.invalidated)
}

func TestLiquidateAfterDeadline(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[1] = &orders.Order{ID: 1, Status: orders.StatusGracePeriod, TaxRate: dec("0.1")}
	f.addGraceEntry(1, 10, 1, "150", "200", f.now.Add(-time.Hour))
	f.catalog.products[10] = []catalog.Product{
		{ID: 100, Name: "blender", UnitPrice: dec("100"), Quantity: dec("2"), Commission: dec("10")},
	}

	result, err := f.engine.LiquidateDelinquents(context.Background(), 1, 7, false)
	require.NoError(t, err)

	require.Len(t, result.Liquidated, 1)
	lc := result.Liquidated[0]
	assert.True(t, lc.TotalDebt.Equal(dec("150")))
	assert.True(t, lc.PaymentsForfeited.Equal(dec("200")))
	assert.False(t, lc.Forced)
	assert.Equal(t, int64(7), lc.LiquidatedBy)
	assert.NotEmpty(t, lc.RunRef)

	// Seized product keeps its settlement value: 200 * 1.1 + 10.
	require.Len(t, f.seizures.products, 1)
	assert.True(t, f.seizures.products[0].SettlementValue.Equal(dec("230")))
	assert.True(t, f.seizures.products[0].PaymentsForfeited.Equal(dec("200")))

	require.Len(t, f.defaults.records, 1)
	rec := f.defaults.records[0]
	assert.Equal(t, credit.KindLiquidation, rec.Kind)
	assert.True(t, rec.AffectsCredit)
	assert.True(t, rec.AmountOwed.Equal(dec("150")))
	assert.True(t, rec.AmountLost.Equal(dec("200")))
	assert.Contains(t, rec.Notes, "liquidated automatically after deadline")

	assert.Equal(t, orders.PaymentLiquidated, f.orders.entries[1].PaymentStatus)
	assert.Equal(t, clients.StatusBlocked, f.clients.statuses[10])
	assert.Equal(t, 1, f.orders.adjusted[1])

	// Last delinquent gone, so the grace period resolves.
	assert.True(t, result.OrderClosed)
	assert.Equal(t, orders.StatusClosed, f.orders.orders[1].Status)

	assert.Equal(t, []int64{10}, f.scores.invalidated)
}

func TestForcedLiquidationBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[1] = &orders.Order{ID: 1, Status: orders.StatusGracePeriod, TaxRate: dec("0")}
	f.addGraceEntry(1, 10, 1, "80", "40", f.now.Add(24*time.Hour))

	result, err := f.engine.LiquidateDelinquents(context.Background(), 1, 7, true)
	require.NoError(t, err)

	require.Len(t, result.Liquidated, 1)
	assert.True(t, result.Liquidated[0].Forced)
	require.Len(t, f.defaults.records, 1)
	assert.Contains(t, f.defaults.records[0].Notes, "forced liquidation before deadline")
	assert.Equal(t, clients.StatusBlocked, f.clients.statuses[10])
}

func TestLiquidateLeavesOrderOpenWhileDebtorsRemain(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[1] = &orders.Order{ID: 1, Status: orders.StatusGracePeriod, TaxRate: dec("0")}
	f.addGraceEntry(1, 10, 1, "50", "0", f.now.Add(-time.Hour))
	f.addGraceEntry(2, 11, 1, "60", "0", f.now.Add(6*time.Hour))

	result, err := f.engine.LiquidateDelinquents(context.Background(), 1, 7, false)
	require.NoError(t, err)

	require.Len(t, result.Liquidated, 1)
	assert.False(t, result.OrderClosed)
	assert.Equal(t, orders.StatusGracePeriod, f.orders.orders[1].Status)
	assert.Equal(t, orders.PaymentInGrace, f.orders.entries[2].PaymentStatus)
}

func TestForfeitedPaymentsSplitEvenly(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[1] = &orders.Order{ID: 1, Status: orders.StatusGracePeriod, TaxRate: dec("0")}
	f.addGraceEntry(1, 10, 1, "500", "100", f.now.Add(-time.Hour))
	f.catalog.products[10] = []catalog.Product{
		{ID: 100, Name: "a", UnitPrice: dec("10"), Quantity: dec("1")},
		{ID: 101, Name: "b", UnitPrice: dec("10"), Quantity: dec("1")},
		{ID: 102, Name: "c", UnitPrice: dec("10"), Quantity: dec("1")},
	}

	_, err := f.engine.LiquidateDelinquents(context.Background(), 1, 7, false)
	require.NoError(t, err)

	require.Len(t, f.seizures.products, 3)
	sum := decimal.Zero
	for _, p := range f.seizures.products {
		sum = sum.Add(p.PaymentsForfeited)
	}
	assert.True(t, sum.Equal(dec("100")), "forfeited parts must sum back to the total")
	// The odd cent lands on the first product.
	assert.True(t, f.seizures.products[0].PaymentsForfeited.Equal(dec("33.34")))
	assert.True(t, f.seizures.products[1].PaymentsForfeited.Equal(dec("33.33")))
	assert.True(t, f.seizures.products[2].PaymentsForfeited.Equal(dec("33.33")))
}

func TestLiquidateOverdueSweepUsesSystemActor(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[1] = &orders.Order{ID: 1, Status: orders.StatusGracePeriod, TaxRate: dec("0")}
	f.addGraceEntry(1, 10, 1, "50", "0", f.now.Add(-time.Hour))
	f.orders.expired = []orders.Order{*f.orders.orders[1]}

	report, err := f.engine.LiquidateOverdue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, report.Processed)
	assert.Equal(t, 1, report.Liquidated)
	assert.Empty(t, report.Failures)
	require.Len(t, f.seizures.clients, 1)
	assert.Equal(t, shared.ActorSystem, f.seizures.clients[0].LiquidatedBy)
}
