package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberBoyAyush/cappychat/internal/reconcile"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

const testSchedulerKey = "admin-key-for-scheduled-tests"

func TestResetHandler_RejectsInvalidKey(t *testing.T) {
	sweeper := &fakeSweeper{}
	h := NewResetHandler(sweeper, types.SecretString(testSchedulerKey), nil)

	rec := httptest.NewRecorder()
	h.HandleTrigger(rec, httptest.NewRequest(http.MethodGet, "/v1/scheduled/reset?key=wrong", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthAdminKeyInvalid), decodeErrorCode(t, rec.Body))
	assert.Empty(t, sweeper.resetOpts)
}

func TestResetHandler_TriggerDefaults(t *testing.T) {
	sweeper := &fakeSweeper{summary: reconcile.Summary{
		Kind:         reconcile.SweepKindReset,
		CheckedCount: 100,
		ResetCount:   12,
		SkippedCount: 88,
		Duration:     "3.2s",
	}}
	h := NewResetHandler(sweeper, types.SecretString(testSchedulerKey), nil)

	rec := httptest.NewRecorder()
	h.HandleTrigger(rec, httptest.NewRequest(http.MethodGet, "/v1/scheduled/reset?key="+testSchedulerKey, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sweeper.resetOpts, 1)
	assert.Zero(t, sweeper.resetOpts[0].Budget, "no timeout parameter leaves the sweeper's default budget")
	assert.Zero(t, sweeper.resetOpts[0].PageSize)

	var summary reconcile.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 12, summary.ResetCount)
	assert.Equal(t, "3.2s", summary.Duration)
}

func TestResetHandler_TriggerTimeoutOverride(t *testing.T) {
	sweeper := &fakeSweeper{}
	h := NewResetHandler(sweeper, types.SecretString(testSchedulerKey), nil)

	rec := httptest.NewRecorder()
	h.HandleTrigger(rec, httptest.NewRequest(http.MethodGet,
		"/v1/scheduled/reset?key="+testSchedulerKey+"&timeout=120", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sweeper.resetOpts, 1)
	assert.Equal(t, 120*time.Second, sweeper.resetOpts[0].Budget)
}

func TestResetHandler_TriggerBadTimeout(t *testing.T) {
	for _, timeout := range []string{"abc", "-5", "0"} {
		t.Run(timeout, func(t *testing.T) {
			sweeper := &fakeSweeper{}
			h := NewResetHandler(sweeper, types.SecretString(testSchedulerKey), nil)

			rec := httptest.NewRecorder()
			h.HandleTrigger(rec, httptest.NewRequest(http.MethodGet,
				"/v1/scheduled/reset?key="+testSchedulerKey+"&timeout="+timeout, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, sweeper.resetOpts)
		})
	}
}

func TestResetHandler_TriggerConflict(t *testing.T) {
	sweeper := &fakeSweeper{err: types.NewAppErrorWithDetails(
		types.ErrCodeConflictSweepRunning,
		"a bulk sweep is already running",
		nil,
		map[string]any{"checkedCount": 42, "resetCount": 6},
	)}
	h := NewResetHandler(sweeper, types.SecretString(testSchedulerKey), nil)

	rec := httptest.NewRecorder()
	h.HandleTrigger(rec, httptest.NewRequest(http.MethodGet, "/v1/scheduled/reset?key="+testSchedulerKey, nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeConflictSweepRunning), resp.Error.Code)
	assert.Equal(t, float64(42), resp.Error.Details["checkedCount"])
}

func TestResetHandler_Status(t *testing.T) {
	sweeper := &fakeSweeper{progress: reconcile.Summary{
		Kind:         reconcile.SweepKindReset,
		Running:      true,
		CheckedCount: 300,
		ResetCount:   55,
	}}
	h := NewResetHandler(sweeper, types.SecretString(testSchedulerKey), nil)

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/scheduled/reset/status?key="+testSchedulerKey, nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var summary reconcile.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Running)
	assert.Equal(t, 300, summary.CheckedCount)
}

func TestResetHandler_StatusRejectsInvalidKey(t *testing.T) {
	h := NewResetHandler(&fakeSweeper{}, types.SecretString(testSchedulerKey), nil)

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/scheduled/reset/status", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
