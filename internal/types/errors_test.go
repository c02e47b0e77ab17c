package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationUnknownAction, http.StatusBadRequest},
		{ErrCodeAuthAdminKeyInvalid, http.StatusUnauthorized},
		{ErrCodeAuthSignatureMissing, http.StatusUnauthorized},
		{ErrCodeAuthSignatureInvalid, http.StatusUnauthorized},
		{ErrCodeConflictSweepRunning, http.StatusTooManyRequests},
		{ErrCodeNotFoundUser, http.StatusNotFound},
		{ErrCodeUpstreamStore, http.StatusBadGateway},
		{ErrCodeInternalStore, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_new"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewAppError(ErrCodeInternalStore, "write failed", inner)

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}

	var appErr *AppError
	wrapped := fmt.Errorf("processing event: %w", err)
	if !errors.As(wrapped, &appErr) {
		t.Fatal("expected errors.As to find the AppError through a wrap")
	}
	if appErr.Code != ErrCodeInternalStore {
		t.Errorf("unexpected code %s", appErr.Code)
	}
	if appErr.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("unexpected status %d", appErr.HTTPStatus())
	}
}

func TestAppErrorMessageNeverLeaksWrappedError(t *testing.T) {
	inner := errors.New("dial tcp 10.0.0.3:6379: connection refused")
	err := NewAppError(ErrCodeInternalStore, "store unavailable", inner)

	if got := err.Error(); got != "internal_store_error: store unavailable" {
		t.Errorf("unexpected Error() output %q", got)
	}
}

func TestAppErrorDetailsSerialization(t *testing.T) {
	err := NewAppErrorWithDetails(ErrCodeConflictSweepRunning, "a bulk sweep is already running", nil,
		map[string]any{"checkedCount": 42})

	raw, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("marshal: %v", marshalErr)
	}
	var decoded map[string]any
	if unmarshalErr := json.Unmarshal(raw, &decoded); unmarshalErr != nil {
		t.Fatalf("unmarshal: %v", unmarshalErr)
	}
	details, ok := decoded["details"].(map[string]any)
	if !ok {
		t.Fatal("expected details object in serialized error")
	}
	if details["checkedCount"] != float64(42) {
		t.Errorf("unexpected details %v", details)
	}
}
