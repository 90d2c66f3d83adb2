package credit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ronda-hq/ronda/internal/platform/db"
)

// Policy holds the scoring weights and the eligibility lockout. The values
// are tunable configuration, not part of the algorithm.
type Policy struct {
	LiquidationPenalty int
	NonPaymentPenalty  int
	LatePaymentPenalty int
	EligibilityFloor   int
	LockoutWindow      time.Duration
}

// DefaultPolicy returns the production weights.
func DefaultPolicy() Policy {
	return Policy{
		LiquidationPenalty: 30,
		NonPaymentPenalty:  20,
		LatePaymentPenalty: 5,
		EligibilityFloor:   30,
		LockoutWindow:      30 * 24 * time.Hour,
	}
}

// HistoryStore is the default-history access the scorer needs.
type HistoryStore interface {
	AffectingByClient(ctx context.Context, q db.Querier, clientID int64) ([]DefaultRecord, error)
	ListByClient(ctx context.Context, q db.Querier, clientID int64) ([]DefaultRecord, error)
}

// Scorer derives a 0-100 credit score and participation eligibility from a
// client's default history.
type Scorer struct {
	store  HistoryStore
	db     db.Querier
	cache  *Cache
	policy Policy
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewScorer constructs a Scorer. cache may be nil.
func NewScorer(store HistoryStore, q db.Querier, cache *Cache, policy Policy, logger *slog.Logger) *Scorer {
	return &Scorer{
		store:  store,
		db:     q,
		cache:  cache,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Scorer) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Score computes the client's current credit report. Concurrent requests
// for the same client share one computation, and results are cached with a
// short TTL.
func (s *Scorer) Score(ctx context.Context, clientID int64) (*Report, error) {
	if s.cache != nil {
		if report, ok := s.cache.Get(ctx, clientID); ok {
			return report, nil
		}
	}

	v, err, _ := s.group.Do(fmt.Sprintf("score:%d", clientID), func() (interface{}, error) {
		records, err := s.store.AffectingByClient(ctx, s.db, clientID)
		if err != nil {
			return nil, err
		}
		report := s.scoreRecords(clientID, records)
		if s.cache != nil {
			s.cache.Set(ctx, report)
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (s *Scorer) scoreRecords(clientID int64, records []DefaultRecord) *Report {
	score := 100
	for _, rec := range records {
		switch rec.Kind {
		case KindLiquidation:
			score -= s.policy.LiquidationPenalty
		case KindNonPayment:
			score -= s.policy.NonPaymentPenalty
		case KindLatePayment:
			score -= s.policy.LatePaymentPenalty
		}
	}
	if score < 0 {
		score = 0
	}
	return &Report{
		ClientID:       clientID,
		Score:          score,
		Classification: Classify(score),
	}
}

// Classify maps a score to its band.
func Classify(score int) string {
	switch {
	case score >= 90:
		return ClassExcellent
	case score >= 70:
		return ClassGood
	case score >= 50:
		return ClassFair
	case score >= 30:
		return ClassPoor
	default:
		return ClassVeryPoor
	}
}

// CanParticipate decides round eligibility: a client is turned away only
// when the score sits under the floor AND the most recent affecting default
// is within the lockout window.
func (s *Scorer) CanParticipate(ctx context.Context, clientID int64) (*Eligibility, error) {
	records, err := s.store.AffectingByClient(ctx, s.db, clientID)
	if err != nil {
		return nil, err
	}
	report := s.scoreRecords(clientID, records)

	eligibility := Eligibility{
		ClientID:       clientID,
		Eligible:       true,
		Score:          report.Score,
		Classification: report.Classification,
	}
	if report.Score >= s.policy.EligibilityFloor || len(records) == 0 {
		return &eligibility, nil
	}

	// Records come back newest first.
	latest := records[0].OccurredAt
	if s.now().Sub(latest) <= s.policy.LockoutWindow {
		eligibility.Eligible = false
		eligibility.Reason = fmt.Sprintf(
			"score %d is below %d and the latest default occurred on %s, within the lockout window",
			report.Score, s.policy.EligibilityFloor, latest.Format("2006-01-02"))
	}
	return &eligibility, nil
}

// History returns the client's full default history.
func (s *Scorer) History(ctx context.Context, clientID int64) ([]DefaultRecord, error) {
	return s.store.ListByClient(ctx, s.db, clientID)
}

// Invalidate drops any cached score for the client. Called after a new
// default is recorded.
func (s *Scorer) Invalidate(ctx context.Context, clientID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, clientID)
	}
}
