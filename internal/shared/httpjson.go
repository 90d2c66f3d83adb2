package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

type errorPayload struct {
	Error   string  `json:"error"`
	Details any     `json:"details,omitempty"`
}

// RespondJSON writes v as a JSON response body.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// RespondError translates a typed business error into an HTTP status.
// Infrastructure failures become a plain 500 without leaking internals.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		RespondJSON(w, http.StatusNotFound, errorPayload{Error: err.Error()})
	case errors.Is(err, ErrAlreadyClosed),
		errors.Is(err, ErrAlreadyOpen),
		errors.Is(err, ErrOrderAlreadyOpen),
		errors.Is(err, ErrBlockedByOpenOrder),
		errors.Is(err, ErrBlockedByGraceOrder):
		RespondJSON(w, http.StatusConflict, errorPayload{Error: err.Error()})
	case errors.Is(err, ErrOrderInGracePeriod):
		var grace *GracePeriodError
		payload := errorPayload{Error: err.Error()}
		if errors.As(err, &grace) {
			payload.Details = map[string]any{
				"order_id":        grace.OrderID,
				"deadline":        grace.Deadline,
				"hours_remaining": grace.HoursRemaining,
			}
		}
		RespondJSON(w, http.StatusConflict, payload)
	default:
		RespondJSON(w, http.StatusInternalServerError, errorPayload{Error: http.StatusText(http.StatusInternalServerError)})
	}
}
