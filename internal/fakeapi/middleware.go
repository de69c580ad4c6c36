package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlationId"
	userIDKey        contextKey = "userId"
)

// CorrelationMiddleware reads X-Correlation-ID and adds it to the context
// and to the request logger
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")

		if correlationID != "" {
			ctx := context.WithValue(r.Context(), correlationIDKey, correlationID)
			r = r.WithContext(ctx)

			logger := log.With().Str("correlationId", correlationID).Logger()
			r = r.WithContext(logger.WithContext(r.Context()))
		}

		next.ServeHTTP(w, r)
	})
}

// CorrelationID retrieves the correlation ID from context
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

func userID(ctx context.Context) int {
	id, _ := ctx.Value(userIDKey).(int)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message any) {
	writeJSON(w, status, errorBody{
		Message:    message,
		Error:      http.StatusText(status),
		StatusCode: status,
	})
}
