package shared

import (
	"errors"
	"fmt"
	"time"
)

// Business-rule violations surfaced by the round lifecycle. They are typed
// so HTTP translation stays at the boundary; anything else bubbling out of
// an operation is an infrastructure failure.
var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyClosed indicates a close was attempted on a non-open order.
	ErrAlreadyClosed = errors.New("order already closed")
	// ErrAlreadyOpen indicates a reopen was attempted on an open order.
	ErrAlreadyOpen = errors.New("order already open")
	// ErrOrderAlreadyOpen blocks admission while another order is open.
	ErrOrderAlreadyOpen = errors.New("another order is already open")
	// ErrOrderInGracePeriod blocks admission while a grace period runs.
	ErrOrderInGracePeriod = errors.New("an order is in its grace period")
	// ErrBlockedByOpenOrder blocks a reopen while another order is open.
	ErrBlockedByOpenOrder = errors.New("reopen blocked by an open order")
	// ErrBlockedByGraceOrder blocks a reopen while a grace period runs.
	ErrBlockedByGraceOrder = errors.New("reopen blocked by a grace-period order")
)

// GracePeriodError reports how long the running grace period still has.
// errors.Is(err, ErrOrderInGracePeriod) matches it.
type GracePeriodError struct {
	OrderID        int64
	Deadline       time.Time
	HoursRemaining float64
}

func (e *GracePeriodError) Error() string {
	return fmt.Sprintf("order %d is in its grace period (%.1f hours remaining)", e.OrderID, e.HoursRemaining)
}

// Is lets callers match the sentinel without losing the deadline details.
func (e *GracePeriodError) Is(target error) bool {
	return target == ErrOrderInGracePeriod
}

// NewGracePeriodError computes the remaining window against now. A deadline
// already in the past reports zero hours rather than a negative value.
func NewGracePeriodError(orderID int64, deadline, now time.Time) *GracePeriodError {
	hours := deadline.Sub(now).Hours()
	if hours < 0 {
		hours = 0
	}
	return &GracePeriodError{OrderID: orderID, Deadline: deadline, HoursRemaining: hours}
}

// IsBusinessError reports whether err is one of the typed rule violations,
// as opposed to an infrastructure failure.
func IsBusinessError(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrAlreadyClosed,
		ErrAlreadyOpen,
		ErrOrderAlreadyOpen,
		ErrOrderInGracePeriod,
		ErrBlockedByOpenOrder,
		ErrBlockedByGraceOrder,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
