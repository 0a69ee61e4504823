package dashboardhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utilitydesk/billing-console/internal/billing"
	"github.com/utilitydesk/billing-console/internal/dashboard"
	"github.com/utilitydesk/billing-console/internal/dashboard/calc"
	"github.com/utilitydesk/billing-console/internal/dashboard/export"
	"github.com/utilitydesk/billing-console/internal/dashboard/svg"
	"github.com/utilitydesk/billing-console/internal/dashboard/ui"
	"github.com/utilitydesk/billing-console/internal/platform/httpx"
	"github.com/utilitydesk/billing-console/internal/session"
)

const requestTimeout = 15 * time.Second

// Chart names served under /dashboard/charts.
const (
	ChartRoles    = "roles"
	ChartRevenue  = "revenue"
	ChartWorkflow = "workflow"
)

// LiveViews is the per-session dashboard registry the handler drives.
type LiveViews interface {
	Open(ctx context.Context, sessionID, token string, rc dashboard.RoleContext) (*dashboard.Scheduler, error)
	Get(sessionID string) (*dashboard.Scheduler, bool)
	Close(sessionID string) bool
}

// Handler serves the dashboard of the signed-in principal.
type Handler struct {
	logger  *slog.Logger
	views   LiveViews
	csvPool sync.Pool
	now     func() time.Time
}

// NewHandler constructs the dashboard HTTP handler.
func NewHandler(logger *slog.Logger, views LiveViews) *Handler {
	h := &Handler{
		logger: logger,
		views:  views,
		now:    time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// liveView returns the session's view, opening it with an explicit refresh on first use.
func (h *Handler) liveView(ctx context.Context, sess *session.Session) (*dashboard.Scheduler, error) {
	if sched, ok := h.views.Get(sess.ID); ok {
		return sched, nil
	}
	rc := dashboard.ResolveRole(sess.Principal().Role)
	return h.views.Open(ctx, sess.ID, sess.Token(), rc)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	sched, err := h.liveView(ctx, sess)
	if err != nil {
		h.respondViewError(w, "open dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ui.Build(sched.Role(), sched.View().State()))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	sched, ok := h.views.Get(sess.ID)
	if !ok {
		// opening runs the explicit refresh already
		opened, err := h.liveView(ctx, sess)
		if err != nil {
			h.respondViewError(w, "open dashboard", err)
			return
		}
		httpx.JSON(w, http.StatusOK, ui.Build(opened.Role(), opened.View().State()))
		return
	}
	state, err := sched.Refresh(ctx)
	if err != nil {
		h.respondViewError(w, "refresh dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ui.Build(sched.Role(), state))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	h.views.Close(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	chart := strings.ToLower(chi.URLParam(r, "chart"))
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	sched, err := h.liveView(ctx, sess)
	if err != nil {
		h.respondViewError(w, "open dashboard", err)
		return
	}
	rc := sched.Role()
	vm := ui.Build(rc, sched.View().State())

	var out template.HTML
	switch chart {
	case ChartRoles:
		if !rc.Metrics.Has(dashboard.MetricUserDistribution) {
			httpx.RespondError(w, fmt.Errorf("%w: chart %s", httpx.ErrForbidden, chart))
			return
		}
		out, err = rolesChart(vm.RoleDistribution)
	case ChartRevenue:
		if !rc.Metrics.Has(dashboard.MetricRevenue) {
			httpx.RespondError(w, fmt.Errorf("%w: chart %s", httpx.ErrForbidden, chart))
			return
		}
		out, err = revenueChart(vm.Summary.RevenueByUtilityType)
	case ChartWorkflow:
		if !rc.Metrics.Has(dashboard.MetricWorkflow) {
			httpx.RespondError(w, fmt.Errorf("%w: chart %s", httpx.ErrForbidden, chart))
			return
		}
		out, err = svg.RingChart(vm.Workflow.Completion, svg.RingOpts{
			Title:       "Reading workflow",
			Description: "Share of active connections read this cycle",
		})
	default:
		httpx.RespondError(w, fmt.Errorf("%w: chart %s", httpx.ErrNotFound, chart))
		return
	}
	if err != nil {
		h.handleServerError(w, "render chart", err)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(out)); err != nil {
		h.logError("stream chart", err)
	}
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	sched, err := h.liveView(ctx, sess)
	if err != nil {
		h.respondViewError(w, "open dashboard", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	role := string(sched.Role().Role)
	now := h.now()
	if err := export.WriteSummaryCSV(buf, role, now, sched.View().State().Summary(), sched.Role().Metrics.Visibility()); err != nil {
		h.handleServerError(w, "write summary csv", err)
		return
	}

	filename := fmt.Sprintf("dashboard-%s-%s.csv", strings.ToLower(role), now.UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func rolesChart(distribution []calc.RoleCount) (template.HTML, error) {
	entries := make([]svg.PieEntry, 0, len(distribution))
	for _, rc := range distribution {
		entries = append(entries, svg.PieEntry{Label: rc.Role, Count: rc.Count, Color: rc.Color})
	}
	return svg.PieChart(entries, svg.PieOpts{
		Title:       "Users by role",
		Description: "Distribution of console users across roles",
	})
}

func revenueChart(items []billing.UtilityRevenue) (template.HTML, error) {
	groups := make([]svg.BarGroup, 0, len(items))
	for _, item := range items {
		groups = append(groups, svg.BarGroup{
			Label: item.UtilityType,
			A:     item.BilledAmount.InexactFloat64(),
			B:     item.Collected.InexactFloat64(),
		})
	}
	if len(groups) == 0 {
		groups = append(groups, svg.BarGroup{Label: "No data"})
	}
	return svg.Bars(svg.DefaultWidth, svg.DefaultHeight, groups, svg.BarOpts{
		Title:        "Revenue by utility",
		Description:  "Billed against collected per utility type",
		SeriesALabel: "Billed",
		SeriesBLabel: "Collected",
	})
}

func (h *Handler) respondViewError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, dashboard.ErrStopped):
		httpx.RespondError(w, fmt.Errorf("%w: dashboard closed", httpx.ErrGone))
	case errors.Is(err, context.DeadlineExceeded):
		h.logError(op, err)
		httpx.RespondError(w, fmt.Errorf("%w: dashboard refresh timed out", httpx.ErrUpstream))
	default:
		h.handleServerError(w, op, err)
	}
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	httpx.RespondError(w, err)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}
