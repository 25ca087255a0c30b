package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const CorrelationHeader = "X-Correlation-Id"

type correlationKey struct{}

// CorrelationMiddleware accepts a caller-provided correlation id or mints
// one, and echoes it back so clients can trace the saga end to end.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CorrelationHeader))
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(CorrelationHeader, id)
		ctx := context.WithValue(r.Context(), correlationKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}
