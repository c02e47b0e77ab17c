package handlers

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CyberBoyAyush/cappychat/internal/core"
	"github.com/CyberBoyAyush/cappychat/internal/reconcile"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// Admin actions accepted by the action endpoint.
const (
	ActionResetAllUserLimits    = "resetAllUserLimits"
	ActionLogoutAllUsersChunked = "logoutAllUsersChunked"
	ActionGetUserCount          = "getUserCount"
	ActionGetAllUsers           = "getAllUsers"
)

// defaultListLimit bounds getAllUsers when no batchSize is given.
const defaultListLimit = 100

// BulkSweeper runs the time-boxed bulk sweeps.
type BulkSweeper interface {
	ResetAll(ctx context.Context, opts reconcile.SweepOptions) (reconcile.Summary, error)
	LogoutAll(ctx context.Context, opts reconcile.SweepOptions) (reconcile.Summary, error)
}

// UserDirectory is the read-only store subset for the listing actions.
type UserDirectory interface {
	ListUsers(ctx context.Context, limit, offset int) ([]types.UserAccount, error)
	CountUsers(ctx context.Context) (int64, error)
}

// AdminHandler dispatches authenticated admin actions.
type AdminHandler struct {
	sweeper  BulkSweeper
	store    UserDirectory
	adminKey types.SecretString
	logger   *slog.Logger
}

// NewAdminHandler creates the admin action handler.
func NewAdminHandler(sweeper BulkSweeper, store UserDirectory, adminKey types.SecretString, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		sweeper:  sweeper,
		store:    store,
		adminKey: adminKey,
		logger:   logger,
	}
}

// RegisterRoutes mounts the admin action endpoint.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/admin", h.Handle)
}

// adminRequest is the action envelope.
type adminRequest struct {
	AdminKey  string `json:"adminKey"`
	Action    string `json:"action"`
	BatchSize int    `json:"batchSize,omitempty"`
	MaxTime   int    `json:"maxTime,omitempty"` // seconds
}

// adminResponse is the success envelope for admin actions.
type adminResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Handle authenticates and dispatches one admin action.
func (h *AdminHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Action == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"action is required",
			nil,
		))
		return
	}

	if !keysEqual(req.AdminKey, h.adminKey) {
		h.logger.WarnContext(r.Context(), "admin action rejected: invalid admin key",
			"action", req.Action,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthAdminKeyInvalid,
			"invalid admin key",
			nil,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "dispatching admin action", "action", req.Action)

	opts := reconcile.SweepOptions{
		PageSize: req.BatchSize,
		Budget:   time.Duration(req.MaxTime) * time.Second,
	}

	switch req.Action {
	case ActionResetAllUserLimits:
		summary, err := h.sweeper.ResetAll(r.Context(), opts)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.JSON(w, r, http.StatusOK, adminResponse{
			Success: true,
			Message: fmt.Sprintf("reset complete: %d of %d users reset", summary.ResetCount, summary.CheckedCount),
			Details: summary,
		})

	case ActionLogoutAllUsersChunked:
		summary, err := h.sweeper.LogoutAll(r.Context(), opts)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.JSON(w, r, http.StatusOK, adminResponse{
			Success: true,
			Message: fmt.Sprintf("logout sweep complete: %d of %d users logged out", summary.ResetCount, summary.CheckedCount),
			Details: summary,
		})

	case ActionGetUserCount:
		count, err := h.store.CountUsers(r.Context())
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeInternalStore,
				"failed to count users",
				err,
			))
			return
		}
		core.JSON(w, r, http.StatusOK, adminResponse{
			Success: true,
			Message: fmt.Sprintf("%d users", count),
			Details: map[string]any{"userCount": count},
		})

	case ActionGetAllUsers:
		limit := req.BatchSize
		if limit <= 0 {
			limit = defaultListLimit
		}
		users, err := h.store.ListUsers(r.Context(), limit, 0)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeInternalStore,
				"failed to list users",
				err,
			))
			return
		}
		core.JSON(w, r, http.StatusOK, adminResponse{
			Success: true,
			Message: fmt.Sprintf("%d users returned", len(users)),
			Details: map[string]any{"users": summarizeUsers(users)},
		})

	default:
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationUnknownAction,
			"unknown admin action",
			nil,
			map[string]any{"action": req.Action},
		))
	}
}

// userSummary is the listing shape for getAllUsers; it never exposes the
// raw preference bag.
type userSummary struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	EmailVerified bool   `json:"emailVerified"`
	RegisteredAt  string `json:"registeredAt"`
	Tier          string `json:"tier"`
}

func summarizeUsers(users []types.UserAccount) []userSummary {
	out := make([]userSummary, len(users))
	for i, u := range users {
		out[i] = userSummary{
			ID:            u.ID,
			Email:         u.Email,
			DisplayName:   u.DisplayName,
			EmailVerified: u.EmailVerified,
			RegisteredAt:  u.RegisteredAt.UTC().Format(time.RFC3339),
			Tier:          string(u.Preferences.EffectiveTier()),
		}
	}
	return out
}

// keysEqual compares a provided key against the configured secret in
// constant time.
func keysEqual(provided string, secret types.SecretString) bool {
	expected := secret.Unmask()
	if expected == "" {
		// An unset admin key locks the surface rather than opening it.
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
