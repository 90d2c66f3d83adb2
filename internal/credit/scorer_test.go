package credit

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
)

type mockHistoryStore struct {
	affecting map[int64][]DefaultRecord
	all       map[int64][]DefaultRecord
	calls     int
}

func (m *mockHistoryStore) AffectingByClient(ctx context.Context, q db.Querier, clientID int64) ([]DefaultRecord, error) {
	m.calls++
	return m.affecting[clientID], nil
}

func (m *mockHistoryStore) ListByClient(ctx context.Context, q db.Querier, clientID int64) ([]DefaultRecord, error) {
	return m.all[clientID], nil
}

func newTestScorer(t *testing.T) (*Scorer, *mockHistoryStore) {
	t.Helper()
	store := &mockHistoryStore{
		affecting: make(map[int64][]DefaultRecord),
		all:       make(map[int64][]DefaultRecord),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scorer := NewScorer(store, nil, nil, DefaultPolicy(), logger)
	return scorer, store
}

func record(kind DefaultKind, occurred time.Time) DefaultRecord {
	return DefaultRecord{
		Kind:          kind,
		AmountOwed:    decimal.NewFromInt(100),
		OccurredAt:    occurred,
		AffectsCredit: true,
	}
}

func TestScoreStartsAtHundred(t *testing.T) {
	scorer, _ := newTestScorer(t)

	report, err := scorer.Score(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, ClassExcellent, report.Classification)
}

func TestScoreAppliesPenaltiesPerKind(t *testing.T) {
	scorer, store := newTestScorer(t)
	now := time.Now()
	store.affecting[10] = []DefaultRecord{
		record(KindLiquidation, now),
		record(KindLatePayment, now.Add(-time.Hour)),
	}

	report, err := scorer.Score(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 65, report.Score)
	assert.Equal(t, ClassFair, report.Classification)
}

func TestScoreFloorsAtZero(t *testing.T) {
	scorer, store := newTestScorer(t)
	now := time.Now()
	store.affecting[10] = []DefaultRecord{
		record(KindLiquidation, now),
		record(KindLiquidation, now),
		record(KindLiquidation, now),
		record(KindNonPayment, now),
	}

	report, err := scorer.Score(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Score)
	assert.Equal(t, ClassVeryPoor, report.Classification)
}

func TestClassifyBands(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{100, ClassExcellent},
		{90, ClassExcellent},
		{89, ClassGood},
		{70, ClassGood},
		{69, ClassFair},
		{50, ClassFair},
		{49, ClassPoor},
		{30, ClassPoor},
		{29, ClassVeryPoor},
		{0, ClassVeryPoor},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.score), "score %d", tc.score)
	}
}

func TestCanParticipateBlocksRecentDefaulters(t *testing.T) {
	scorer, store := newTestScorer(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scorer.WithNow(func() time.Time { return now })

	// Score 100-30-30-20 = 20, under the floor, latest default 10 days ago.
	store.affecting[10] = []DefaultRecord{
		record(KindLiquidation, now.AddDate(0, 0, -10)),
		record(KindLiquidation, now.AddDate(0, 0, -40)),
		record(KindNonPayment, now.AddDate(0, 0, -50)),
	}

	eligibility, err := scorer.CanParticipate(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, 20, eligibility.Score)
	assert.NotEmpty(t, eligibility.Reason)
}

func TestCanParticipateAllowsAfterLockout(t *testing.T) {
	scorer, store := newTestScorer(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scorer.WithNow(func() time.Time { return now })

	// Same bad score, but the latest default is 45 days old.
	store.affecting[10] = []DefaultRecord{
		record(KindLiquidation, now.AddDate(0, 0, -45)),
		record(KindLiquidation, now.AddDate(0, 0, -60)),
		record(KindNonPayment, now.AddDate(0, 0, -90)),
	}

	eligibility, err := scorer.CanParticipate(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)
	assert.Empty(t, eligibility.Reason)
}

func TestCanParticipateAllowsLowScoreAboveFloor(t *testing.T) {
	scorer, store := newTestScorer(t)
	now := time.Now()
	store.affecting[10] = []DefaultRecord{
		record(KindLiquidation, now),
		record(KindNonPayment, now),
	}

	// Score 50 is above the floor of 30; a fresh default alone never blocks.
	eligibility, err := scorer.CanParticipate(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)
	assert.Equal(t, 50, eligibility.Score)
}

func TestHistoryReturnsAllRecords(t *testing.T) {
	scorer, store := newTestScorer(t)
	now := time.Now()
	store.all[10] = []DefaultRecord{
		record(KindLatePayment, now),
		{Kind: KindLatePayment, OccurredAt: now.AddDate(0, -1, 0), AffectsCredit: false},
	}

	records, err := scorer.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
