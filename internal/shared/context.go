package shared

import (
	"context"
	"net/http"
	"strconv"
)

// ActorSystem is the actor id stamped on sweeps the scheduler initiates.
// Handlers reject it on inbound requests so callers cannot impersonate the
// scheduler; attribution of automatic actions is carried by the closure
// type and observation fields instead of a magic user row.
const ActorSystem int64 = 0

type contextKey string

const actorKey contextKey = "actor"

// ContextWithActor stores the acting user id on the context.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFromContext returns the acting user id, or 0 when absent.
func ActorFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(actorKey).(int64); ok {
		return v
	}
	return 0
}

// ActorMiddleware lifts the pre-authorized actor id from the X-Actor-ID
// header. Authentication itself happens upstream of this service.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Actor-ID"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				r = r.WithContext(ContextWithActor(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
