package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/broady/concord"
)

type requestIDKey struct{}

// RequestID returns an HTTP middleware that gives every request an id. A
// well-formed UUID in the X-Request-ID header is kept; anything else is
// replaced by a fresh random one. The id is echoed in the response header
// and is available to interceptors through RequestIDFromContext.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(concord.HeaderRequestID)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(concord.HeaderRequestID, id)
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the id assigned by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
