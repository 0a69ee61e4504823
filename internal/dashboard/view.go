package dashboard

import (
	"sync/atomic"
	"time"

	"github.com/utilitydesk/billing-console/internal/billing"
)

// State is what the presentation layer reads from a live dashboard.
type State struct {
	Snapshot  *Snapshot
	Loading   bool
	Error     string
	UpdatedAt time.Time
}

// Summary returns the latest summary, or an empty one before the first cycle completes.
func (s State) Summary() billing.DashboardSummary {
	if s.Snapshot == nil {
		return billing.EmptySummary()
	}
	return s.Snapshot.Summary
}

// View publishes State values atomically. Writers are serialised by the owning Scheduler.
type View struct {
	state atomic.Pointer[State]
}

func newView() *View {
	v := &View{}
	v.state.Store(&State{})
	return v
}

// State returns the current state.
func (v *View) State() State {
	return *v.state.Load()
}

func (v *View) update(fn func(*State)) {
	next := *v.state.Load()
	fn(&next)
	v.state.Store(&next)
}
