package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireOwnerRejectsMissingHeaders(t *testing.T) {
	tests := []struct {
		name      string
		ownerType string
		ownerID   string
	}{
		{name: "both missing"},
		{name: "type only", ownerType: "team"},
		{name: "id only", ownerID: "team-1"},
		{name: "blank values", ownerType: "  ", ownerID: "  "},
	}

	handler := RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
			if tt.ownerType != "" {
				r.Header.Set(HeaderOwnerType, tt.ownerType)
			}
			if tt.ownerID != "" {
				r.Header.Set(HeaderOwnerID, tt.ownerID)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestRequireOwnerPutsPrincipalInContext(t *testing.T) {
	var got *Principal
	handler := RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetOwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
	r.Header.Set(HeaderOwnerType, "team")
	r.Header.Set(HeaderOwnerID, " team-1 ")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "team", got.Type)
	assert.Equal(t, "team-1", got.ID)
}

func TestGetOwnerFromContextOutsideMiddleware(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetOwnerFromContext(r.Context()))
}

func TestTraceIDPropagatesIncomingHeader(t *testing.T) {
	handler := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderTraceID, "trace-abc")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "trace-abc", w.Header().Get(HeaderTraceID))
	assert.Equal(t, "trace-abc", w.Header().Get("X-Request-ID"))
}

func TestTraceIDGeneratesWhenAbsent(t *testing.T) {
	handler := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
	assert.Equal(t, w.Header().Get(HeaderTraceID), w.Header().Get("X-Request-ID"))
}
