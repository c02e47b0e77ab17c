package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberBoyAyush/cappychat/internal/types"
)

func decodeErrorBody(t *testing.T, rr *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestError_AppErrorMapsToStatus(t *testing.T) {
	tests := []struct {
		code       types.ErrorCode
		wantStatus int
	}{
		{types.ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{types.ErrCodeAuthAdminKeyInvalid, http.StatusUnauthorized},
		{types.ErrCodeConflictSweepRunning, http.StatusTooManyRequests},
		{types.ErrCodeNotFoundUser, http.StatusNotFound},
		{types.ErrCodeInternalStore, http.StatusInternalServerError},
		{types.ErrCodeUpstreamStore, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(types.WithRequestID(req.Context(), "req_1"))
			rr := httptest.NewRecorder()

			Error(rr, req, types.NewAppError(tt.code, "boom", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			resp := decodeErrorBody(t, rr)
			assert.Equal(t, string(tt.code), resp.Error.Code)
			assert.Equal(t, "req_1", resp.Error.RequestID)
		})
	}
}

func TestError_GenericErrorNeverLeaks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	Error(rr, req, errors.New("pg: connection refused on 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeErrorBody(t, rr)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), resp.Error.Code)
	assert.NotContains(t, rr.Body.String(), "10.0.0.3")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
		var dst payload
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
		assert.Equal(t, "x", dst.Name)
	})

	for name, body := range map[string]string{
		"malformed":      `{"name":`,
		"unknown field":  `{"name":"x","bogus":1}`,
		"empty body":     ``,
		"trailing value": `{"name":"x"}{"name":"y"}`,
		"type mismatch":  `{"name":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			var dst payload
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)
			require.Error(t, err)

			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
		})
	}
}
