package middleware

import (
	"context"
	"net/http"
	"time"
)

const serverTimeContextKey contextKey = "server_time"

// ServerTime reads clock once per request. Every validity check during the
// request uses that instant.
func ServerTime(clock func() time.Time) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), serverTimeContextKey, clock().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServerTimeFromContext falls back to the current time when the middleware
// did not run.
func ServerTimeFromContext(ctx context.Context) time.Time {
	if at, ok := ctx.Value(serverTimeContextKey).(time.Time); ok {
		return at
	}
	return time.Now().UTC()
}
