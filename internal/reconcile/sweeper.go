package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CyberBoyAyush/cappychat/internal/billing"
	"github.com/CyberBoyAyush/cappychat/internal/lock"
	"github.com/CyberBoyAyush/cappychat/internal/metrics"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// Sweep defaults. Budget stays under typical HTTP gateway timeouts so a
// scheduled trigger gets a summary back instead of a dropped connection.
const (
	DefaultPageSize = 100
	DefaultBudget   = 50 * time.Second

	// pageConcurrency bounds in-flight store writes within a page so a large
	// page cannot stampede the backend.
	pageConcurrency = 10

	// maxChangedUserSample caps how many user IDs the summary reports.
	maxChangedUserSample = 10
)

// Sweep kinds, used in logs and metric labels.
const (
	SweepKindReset  = "reset"
	SweepKindLogout = "logout"
)

// SweepStore is the subset of the preference store the sweeper needs.
type SweepStore interface {
	ListUsers(ctx context.Context, limit, offset int) ([]types.UserAccount, error)
	UpdatePreferences(ctx context.Context, id string, bag map[string]any) error
}

// SessionRevoker terminates all active sessions for a user. Used by the
// logout sweep.
type SessionRevoker interface {
	RevokeSessions(ctx context.Context, userID string) (int, error)
}

// SweepOptions tunes a single sweep invocation. Zero values select the
// sweeper's configured defaults.
type SweepOptions struct {
	PageSize int
	Budget   time.Duration
}

// Summary is the result of a sweep, also served as the live progress
// snapshot while one is running.
type Summary struct {
	Kind           string   `json:"kind"`
	Running        bool     `json:"running"`
	CheckedCount   int      `json:"checkedCount"`
	ResetCount     int      `json:"resetCount"`
	SkippedCount   int      `json:"skippedCount"`
	ErrorCount     int      `json:"errorCount"`
	TimeoutReached bool     `json:"timeoutReached"`
	Duration       string   `json:"duration"`
	ResetUsers     []string `json:"resetUsers,omitempty"`
}

// Sweeper runs time-boxed, offset-paginated sweeps over the whole user
// population. A lock guards against concurrent sweeps; per-user failures are
// counted and never abort the sweep; the wall-clock budget is checked at
// page boundaries so the sweep returns a partial summary instead of running
// past its window.
type Sweeper struct {
	store      SweepStore
	revoker    SessionRevoker
	catalog    billing.TierCatalog
	guard      lock.SweepLock
	periodDays int
	pageSize   int
	budget     time.Duration
	logger     *slog.Logger

	// now is a hook for tests; production uses time.Now.
	now func() time.Time

	running atomic.Bool
	started atomic.Int64 // unix nanos of the active sweep's start

	checked atomic.Int64
	changed atomic.Int64
	skipped atomic.Int64
	errs    atomic.Int64

	mu           sync.Mutex
	kind         string
	changedUsers []string
}

// NewSweeper creates a sweeper. revoker may be nil if the logout sweep is
// not used. Zero periodDays, pageSize, or budget select the defaults.
func NewSweeper(
	store SweepStore,
	revoker SessionRevoker,
	catalog billing.TierCatalog,
	guard lock.SweepLock,
	periodDays int,
	pageSize int,
	budget time.Duration,
	logger *slog.Logger,
) *Sweeper {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:      store,
		revoker:    revoker,
		catalog:    catalog,
		guard:      guard,
		periodDays: periodDays,
		pageSize:   pageSize,
		budget:     budget,
		logger:     logger,
		now:        time.Now,
	}
}

// ResetAll sweeps every user through the credit reset rules. Returns
// ErrCodeConflictSweepRunning (with live counters in the details) when
// another sweep currently holds the lock.
func (s *Sweeper) ResetAll(ctx context.Context, opts SweepOptions) (Summary, error) {
	return s.run(ctx, SweepKindReset, opts, s.reconcileOne)
}

// LogoutAll revokes every user's sessions page by page, sharing the reset
// sweep's pagination, budget, and re-entrancy shell.
func (s *Sweeper) LogoutAll(ctx context.Context, opts SweepOptions) (Summary, error) {
	return s.run(ctx, SweepKindLogout, opts, s.logoutOne)
}

// Progress returns a snapshot of the active (or most recent) sweep. Safe to
// call concurrently with a running sweep.
func (s *Sweeper) Progress() Summary {
	running := s.running.Load()
	var duration time.Duration
	if started := s.started.Load(); started > 0 {
		if running {
			duration = s.now().Sub(time.Unix(0, started))
		}
	}
	return s.snapshot(running, false, duration)
}

func (s *Sweeper) run(
	ctx context.Context,
	kind string,
	opts SweepOptions,
	perUser func(context.Context, types.UserAccount) (bool, error),
) (Summary, error) {
	acquired, err := s.guard.TryAcquire(ctx)
	if err != nil {
		return Summary{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to acquire sweep lock",
			err,
		)
	}
	if !acquired {
		progress := s.Progress()
		metrics.SweepRunsTotal.WithLabelValues(kind, "conflict").Inc()
		return progress, types.NewAppErrorWithDetails(
			types.ErrCodeConflictSweepRunning,
			"a bulk sweep is already running",
			nil,
			map[string]any{
				"checkedCount": progress.CheckedCount,
				"resetCount":   progress.ResetCount,
				"errorCount":   progress.ErrorCount,
			},
		)
	}
	defer func() {
		if err := s.guard.Release(ctx); err != nil {
			s.logger.ErrorContext(ctx, "failed to release sweep lock", "error", err)
		}
	}()

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	budget := opts.Budget
	if budget <= 0 {
		budget = s.budget
	}

	start := s.now()
	s.beginSweep(kind, start)
	defer s.running.Store(false)

	s.logger.InfoContext(ctx, "starting bulk sweep",
		"kind", kind,
		"page_size", pageSize,
		"budget", budget.String(),
	)

	timedOut := false
	offset := 0
	for {
		if ctx.Err() != nil {
			timedOut = true
			break
		}
		if s.now().Sub(start) >= budget {
			timedOut = true
			break
		}

		users, err := s.store.ListUsers(ctx, pageSize, offset)
		if err != nil {
			// Offset pagination cannot safely skip a failed page; stop here
			// and let the next invocation retry from the top.
			s.errs.Add(1)
			s.logger.ErrorContext(ctx, "sweep page fetch failed",
				"kind", kind,
				"offset", offset,
				"error", err,
			)
			break
		}
		if len(users) == 0 {
			break
		}

		// Users in a page run concurrently up to the cap; the page boundary
		// is the sync point.
		var g errgroup.Group
		g.SetLimit(pageConcurrency)
		for _, u := range users {
			g.Go(func() error {
				s.checked.Add(1)
				changed, err := perUser(ctx, u)
				switch {
				case err != nil:
					s.errs.Add(1)
					s.logger.ErrorContext(ctx, "sweep user processing failed",
						"kind", kind,
						"user_id", u.ID,
						"error", err,
					)
				case changed:
					s.changed.Add(1)
					s.recordChangedUser(u.ID)
				default:
					s.skipped.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		offset += len(users)
		if len(users) < pageSize {
			break
		}
	}

	duration := s.now().Sub(start)
	summary := s.snapshot(false, timedOut, duration)

	outcome := "completed"
	if timedOut {
		outcome = "timeout"
	}
	metrics.SweepRunsTotal.WithLabelValues(kind, outcome).Inc()
	metrics.SweepUsersChecked.WithLabelValues(kind).Add(float64(summary.CheckedCount))
	metrics.SweepUsersChanged.WithLabelValues(kind).Add(float64(summary.ResetCount))
	metrics.SweepErrorsTotal.WithLabelValues(kind).Add(float64(summary.ErrorCount))
	metrics.SweepDuration.WithLabelValues(kind).Observe(duration.Seconds())

	s.logger.InfoContext(ctx, "bulk sweep finished",
		"kind", kind,
		"checked", summary.CheckedCount,
		"changed", summary.ResetCount,
		"skipped", summary.SkippedCount,
		"errors", summary.ErrorCount,
		"timeout_reached", summary.TimeoutReached,
		"duration", summary.Duration,
	)
	return summary, nil
}

// reconcileOne applies the credit reset rules to one user: pure decision,
// then at most one merged write.
func (s *Sweeper) reconcileOne(ctx context.Context, u types.UserAccount) (bool, error) {
	out := ReconcileUser(u, s.catalog, s.periodDays, s.now())
	if !out.Changed {
		return false, nil
	}
	if err := s.store.UpdatePreferences(ctx, u.ID, out.Preferences.ToMap()); err != nil {
		return false, err
	}
	if out.Downgraded {
		s.logger.InfoContext(ctx, "downgraded user during sweep",
			"user_id", u.ID,
			"reason", out.Reason,
		)
	}
	return true, nil
}

// logoutOne revokes one user's sessions. Counts as changed only when
// sessions were actually terminated.
func (s *Sweeper) logoutOne(ctx context.Context, u types.UserAccount) (bool, error) {
	n, err := s.revoker.RevokeSessions(ctx, u.ID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Sweeper) beginSweep(kind string, start time.Time) {
	s.checked.Store(0)
	s.changed.Store(0)
	s.skipped.Store(0)
	s.errs.Store(0)
	s.started.Store(start.UnixNano())

	s.mu.Lock()
	s.kind = kind
	s.changedUsers = nil
	s.mu.Unlock()

	s.running.Store(true)
}

func (s *Sweeper) recordChangedUser(id string) {
	s.mu.Lock()
	if len(s.changedUsers) < maxChangedUserSample {
		s.changedUsers = append(s.changedUsers, id)
	}
	s.mu.Unlock()
}

func (s *Sweeper) snapshot(running, timedOut bool, duration time.Duration) Summary {
	s.mu.Lock()
	kind := s.kind
	users := make([]string, len(s.changedUsers))
	copy(users, s.changedUsers)
	s.mu.Unlock()

	return Summary{
		Kind:           kind,
		Running:        running,
		CheckedCount:   int(s.checked.Load()),
		ResetCount:     int(s.changed.Load()),
		SkippedCount:   int(s.skipped.Load()),
		ErrorCount:     int(s.errs.Load()),
		TimeoutReached: timedOut,
		Duration:       duration.Round(time.Millisecond).String(),
		ResetUsers:     users,
	}
}
