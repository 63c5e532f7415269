package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate-io/flowgate/internal/domain/services"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestJSONEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req-1")

	OK(w, map[string]string{"name": "expense approval"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.NotZero(t, resp.Timestamp)
	assert.Nil(t, resp.Error)
}

func TestJSONWithMeta(t *testing.T) {
	w := httptest.NewRecorder()

	JSONWithMeta(w, http.StatusOK, []string{}, &Meta{Limit: 20, Offset: 40, Total: 200})

	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 20, resp.Meta.Limit)
	assert.Equal(t, 40, resp.Meta.Offset)
	assert.Equal(t, int64(200), resp.Meta.Total)
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "role mismatch", err: &services.RoleError{Level: 2, Required: []string{"finance"}}, wantCode: http.StatusForbidden, wantErr: ErrCodeForbidden},
		{name: "wrapped role mismatch", err: fmt.Errorf("transition: %w", &services.RoleError{Level: 1}), wantCode: http.StatusForbidden, wantErr: ErrCodeForbidden},
		{name: "task not found", err: services.ErrTaskNotFound, wantCode: http.StatusNotFound, wantErr: ErrCodeNotFound},
		{name: "workflow not found", err: services.ErrWorkflowNotFound, wantCode: http.StatusNotFound, wantErr: ErrCodeNotFound},
		{name: "run not found", err: services.ErrRunNotFound, wantCode: http.StatusNotFound, wantErr: ErrCodeNotFound},
		{name: "stale write", err: services.ErrConflict, wantCode: http.StatusConflict, wantErr: ErrCodeConflict},
		{name: "duplicate webhook", err: services.ErrDuplicateWebhook, wantCode: http.StatusBadRequest, wantErr: ErrCodeBadRequest},
		{name: "terminal task", err: services.ErrInvalidState, wantCode: http.StatusBadRequest, wantErr: ErrCodeBadRequest},
		{name: "missing comment", err: services.ErrCommentRequired, wantCode: http.StatusBadRequest, wantErr: ErrCodeBadRequest},
		{name: "bad cron", err: services.ErrInvalidCron, wantCode: http.StatusBadRequest, wantErr: ErrCodeBadRequest},
		{name: "unknown", err: errors.New("disk on fire"), wantCode: http.StatusInternalServerError, wantErr: ErrCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err)

			assert.Equal(t, tt.wantCode, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, errors.New("pq: password authentication failed"))

	resp := decode(t, w)
	require.NotNil(t, resp.Error)
	assert.NotContains(t, resp.Error.Message, "password")
}
