package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CyberBoyAyush/cappychat/internal/core"
	"github.com/CyberBoyAyush/cappychat/internal/reconcile"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// ScheduledSweeper is the sweep surface used by the cron-style endpoints.
type ScheduledSweeper interface {
	ResetAll(ctx context.Context, opts reconcile.SweepOptions) (reconcile.Summary, error)
	Progress() reconcile.Summary
}

// ResetHandler exposes the scheduled credit-reset trigger and its status
// probe. Both check the admin key, passed as a query parameter because most
// external schedulers cannot set request bodies or headers.
type ResetHandler struct {
	sweeper  ScheduledSweeper
	adminKey types.SecretString
	logger   *slog.Logger
}

// NewResetHandler creates the scheduled reset handler.
func NewResetHandler(sweeper ScheduledSweeper, adminKey types.SecretString, logger *slog.Logger) *ResetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetHandler{
		sweeper:  sweeper,
		adminKey: adminKey,
		logger:   logger,
	}
}

// RegisterRoutes mounts the scheduled reset endpoints.
func (h *ResetHandler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/scheduled/reset", h.HandleTrigger)
	r.Get("/v1/scheduled/reset/status", h.HandleStatus)
}

// HandleTrigger runs one reset sweep. An optional timeout query parameter
// (seconds) overrides the sweep's default time budget.
func (h *ResetHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if !keysEqual(r.URL.Query().Get("key"), h.adminKey) {
		h.logger.WarnContext(r.Context(), "scheduled reset rejected: invalid key")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthAdminKeyInvalid,
			"invalid admin key",
			nil,
		))
		return
	}

	var opts reconcile.SweepOptions
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidJSON,
				"timeout must be a positive integer number of seconds",
				err,
			))
			return
		}
		opts.Budget = time.Duration(seconds) * time.Second
	}

	summary, err := h.sweeper.ResetAll(r.Context(), opts)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, summary)
}

// HandleStatus reports the live counters of the sweep currently running,
// or the zeroed summary when none is.
func (h *ResetHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !keysEqual(r.URL.Query().Get("key"), h.adminKey) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthAdminKeyInvalid,
			"invalid admin key",
			nil,
		))
		return
	}

	core.JSON(w, r, http.StatusOK, h.sweeper.Progress())
}
