package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultIdleTimeout is how long an unread view keeps refreshing.
const DefaultIdleTimeout = 15 * time.Minute

// AggregatorFactory builds the aggregator for a principal's bearer token.
type AggregatorFactory func(token string) Aggregating

// HubConfig tunes the live views of a Hub.
type HubConfig struct {
	RefreshInterval time.Duration
	IdleTimeout     time.Duration
}

type liveView struct {
	sched    *Scheduler
	handle   *Handle
	lastSeen time.Time
}

// Hub keeps one live dashboard per session and tears down views nobody reads.
type Hub struct {
	factory AggregatorFactory
	cfg     HubConfig
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	base   context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	views map[string]*liveView
}

// NewHub constructs a Hub.
func NewHub(factory AggregatorFactory, cfg HubConfig, logger *slog.Logger, metrics *Metrics) *Hub {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Hub{
		factory: factory,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		base:    base,
		cancel:  cancel,
		views:   make(map[string]*liveView),
	}
}

// WithNow overrides the hub clock for testing.
func (h *Hub) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// Open returns the live view of sessionID, starting it with an explicit refresh when it
// does not exist yet.
func (h *Hub) Open(ctx context.Context, sessionID, token string, rc RoleContext) (*Scheduler, error) {
	h.mu.Lock()
	if lv, ok := h.views[sessionID]; ok {
		lv.lastSeen = h.now()
		h.mu.Unlock()
		return lv.sched, nil
	}
	sched := NewScheduler(h.factory(token), rc, h.cfg.RefreshInterval, h.logger.With(slog.String("session", sessionID)))
	lv := &liveView{sched: sched, handle: sched.Start(h.base), lastSeen: h.now()}
	h.views[sessionID] = lv
	h.mu.Unlock()
	h.metrics.viewsChanged(1)
	h.logger.Info("dashboard view opened", slog.String("session", sessionID), slog.String("role", string(rc.Role)))

	_, err := sched.Refresh(ctx)
	return sched, err
}

// Get returns the live view of sessionID and marks it as read.
func (h *Hub) Get(sessionID string) (*Scheduler, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lv, ok := h.views[sessionID]
	if !ok {
		return nil, false
	}
	lv.lastSeen = h.now()
	return lv.sched, true
}

// Close stops the live view of sessionID. It reports whether one existed.
func (h *Hub) Close(sessionID string) bool {
	h.mu.Lock()
	lv, ok := h.views[sessionID]
	delete(h.views, sessionID)
	h.mu.Unlock()
	if !ok {
		return false
	}
	lv.handle.Stop()
	h.metrics.viewsChanged(-1)
	h.logger.Info("dashboard view closed", slog.String("session", sessionID))
	return true
}

// Sweep closes views unread for longer than the idle timeout and returns how many it closed.
func (h *Hub) Sweep() int {
	cutoff := h.now().Add(-h.cfg.IdleTimeout)
	h.mu.Lock()
	var idle []string
	for id, lv := range h.views {
		if lv.lastSeen.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	h.mu.Unlock()
	closed := 0
	for _, id := range idle {
		if h.Close(id) {
			closed++
		}
	}
	return closed
}

// RefreshAll triggers a silent cycle on every live view, e.g. after reference data changed.
func (h *Hub) RefreshAll(ctx context.Context) {
	h.mu.Lock()
	scheds := make([]*Scheduler, 0, len(h.views))
	for _, lv := range h.views {
		scheds = append(scheds, lv.sched)
	}
	h.mu.Unlock()
	var wg sync.WaitGroup
	for _, sched := range scheds {
		wg.Add(1)
		go func(s *Scheduler) {
			defer wg.Done()
			s.silent(ctx)
		}(sched)
	}
	wg.Wait()
}

// Len returns the number of live views.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.views)
}

// Run sweeps idle views until ctx ends, then shuts the hub down.
func (h *Hub) Run(ctx context.Context) {
	interval := h.cfg.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-ticker.C:
			if n := h.Sweep(); n > 0 {
				h.logger.Info("dashboard idle views swept", slog.Int("closed", n))
			}
		}
	}
}

// Shutdown stops every live view.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.views))
	for id := range h.views {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.Close(id)
	}
	h.cancel()
}
