package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderOwnerType = "X-Owner-Type"
	HeaderOwnerID   = "X-Owner-Id"
	HeaderTraceID   = "X-Trace-Id"
)

type contextKey string

const ownerContextKey contextKey = "owner"

// Principal is the calling owner, taken from the request headers. Every
// resource access is scoped to it.
type Principal struct {
	Type string
	ID   string
}

// TraceID propagates the caller's X-Trace-Id, generating one when absent,
// and echoes it on the response as both X-Trace-Id and X-Request-ID.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := strings.TrimSpace(r.Header.Get(HeaderTraceID))
		if traceID == "" {
			traceID = uuid.NewString()
		}

		w.Header().Set(HeaderTraceID, traceID)
		w.Header().Set("X-Request-ID", traceID)

		next.ServeHTTP(w, r)
	})
}

// RequireOwner rejects requests that do not identify a calling owner.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerType := strings.TrimSpace(r.Header.Get(HeaderOwnerType))
		ownerID := strings.TrimSpace(r.Header.Get(HeaderOwnerID))
		if ownerType == "" || ownerID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"UNAUTHORIZED","message":"X-Owner-Type and X-Owner-Id headers are required"}}`))
			return
		}

		ctx := context.WithValue(r.Context(), ownerContextKey, &Principal{Type: ownerType, ID: ownerID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOwnerFromContext returns the calling owner, or nil outside RequireOwner.
func GetOwnerFromContext(ctx context.Context) *Principal {
	owner, _ := ctx.Value(ownerContextKey).(*Principal)
	return owner
}
