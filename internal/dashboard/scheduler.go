package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Refresh once the scheduler has been stopped.
var ErrStopped = errors.New("dashboard: scheduler stopped")

// DefaultRefreshInterval is the silent refresh period.
const DefaultRefreshInterval = 30 * time.Second

// Aggregating runs one aggregation cycle.
type Aggregating interface {
	Aggregate(ctx context.Context, rc RoleContext, mode Mode) Outcome
}

// Scheduler repeats aggregation cycles for one role and publishes them to its View. Only
// one cycle runs at a time: timer ticks that find a cycle in flight are skipped while
// explicit refreshes wait their turn.
type Scheduler struct {
	agg      Aggregating
	role     RoleContext
	interval time.Duration
	logger   *slog.Logger
	view     *View
	now      func() time.Time

	cycle   sync.Mutex
	stopped atomic.Bool
	life    context.Context
	kill    context.CancelFunc
}

// NewScheduler constructs a scheduler. A non-positive interval uses DefaultRefreshInterval.
func NewScheduler(agg Aggregating, role RoleContext, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	life, kill := context.WithCancel(context.Background())
	return &Scheduler{
		agg:      agg,
		role:     role,
		interval: interval,
		logger:   logger,
		view:     newView(),
		now:      time.Now,
		life:     life,
		kill:     kill,
	}
}

// Role returns the role the scheduler aggregates for.
func (s *Scheduler) Role() RoleContext {
	return s.role
}

// View returns the published state.
func (s *Scheduler) View() *View {
	return s.view
}

// Refresh runs an explicit cycle, waiting behind any cycle already in flight. The
// user-visible error is cleared first and set from the cycle's authoritative failure.
func (s *Scheduler) Refresh(ctx context.Context) (State, error) {
	if s.stopped.Load() {
		return s.view.State(), ErrStopped
	}
	s.cycle.Lock()
	defer s.cycle.Unlock()
	if s.stopped.Load() {
		return s.view.State(), ErrStopped
	}

	s.view.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	})
	out := s.run(ctx, ModeExplicit)
	if s.stopped.Load() {
		s.view.update(func(st *State) { st.Loading = false })
		return s.view.State(), ErrStopped
	}
	s.view.update(func(st *State) {
		st.Snapshot = out.Snapshot
		st.Loading = false
		st.UpdatedAt = s.now()
		if out.Failure != nil {
			st.Error = out.Failure.Message
		}
	})
	return s.view.State(), nil
}

// silent runs a background cycle unless another one is in flight. It never touches the
// user-visible error. It reports whether a cycle ran.
func (s *Scheduler) silent(ctx context.Context) bool {
	if !s.cycle.TryLock() {
		return false
	}
	defer s.cycle.Unlock()
	if s.stopped.Load() {
		return false
	}
	out := s.run(ctx, ModeSilent)
	if s.stopped.Load() || ctx.Err() != nil {
		return false
	}
	s.view.update(func(st *State) {
		st.Snapshot = out.Snapshot
		st.UpdatedAt = s.now()
	})
	return true
}

func (s *Scheduler) run(ctx context.Context, mode Mode) Outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(s.life, cancel)
	defer release()
	return s.agg.Aggregate(ctx, s.role, mode)
}

// Handle controls a started scheduler.
type Handle struct {
	sched  *Scheduler
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches the silent refresh loop. The loop ends when ctx is cancelled or the
// returned handle is stopped.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{sched: s, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if !s.silent(loopCtx) {
					s.logger.Debug("dashboard tick skipped", slog.String("role", string(s.role.Role)))
				}
				// drop a tick that queued up during the cycle
				select {
				case <-ticker.C:
				default:
				}
			}
		}
	}()
	return h
}

// Stop cancels the timer and any cycle in flight, then waits for both to finish. No cycle
// publishes after Stop returns. Stop is idempotent.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.sched.stopped.Store(true)
		h.sched.kill()
		h.cancel()
		<-h.done
		// wait for an explicit cycle to drain
		h.sched.cycle.Lock()
		h.sched.cycle.Unlock()
	})
}

// Done is closed once the refresh loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
