package dashboardhttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/utilitydesk/billing-console/internal/billing"
	"github.com/utilitydesk/billing-console/internal/dashboard"
	"github.com/utilitydesk/billing-console/internal/session"
)

type stubAggregator struct {
	mu      sync.Mutex
	summary billing.DashboardSummary
	ref     dashboard.Reference
	pending int
	failure *dashboard.Failure
}

func (s *stubAggregator) Aggregate(_ context.Context, rc dashboard.RoleContext, mode dashboard.Mode) dashboard.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dashboard.Outcome{
		Snapshot: &dashboard.Snapshot{
			Role:            rc.Role,
			Mode:            mode,
			Summary:         s.summary,
			Reference:       s.ref,
			PendingReadings: s.pending,
		},
		Failure: s.failure,
	}
}

func (s *stubAggregator) setFailure(f *dashboard.Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = f
}

func fixtureAggregator() *stubAggregator {
	summary := billing.EmptySummary()
	summary.TotalConsumers = 1200
	summary.ActiveConnections = 40
	summary.TotalBilled = decimal.NewFromInt(1000)
	summary.TotalCollected = decimal.NewFromInt(850)
	summary.RevenueByUtilityType = []billing.UtilityRevenue{
		{UtilityType: "Electricity", BilledAmount: decimal.NewFromInt(800), Collected: decimal.NewFromInt(700), BillCount: 8},
		{UtilityType: "Water", BilledAmount: decimal.NewFromInt(200), Collected: decimal.NewFromInt(150), BillCount: 2},
	}
	return &stubAggregator{
		summary: summary,
		pending: 10,
		ref: dashboard.Reference{
			UtilityTypes: []billing.UtilityType{{ID: "1", Name: "Electricity", IsActive: true, ConnectionCount: 30}},
			TariffPlans:  []billing.TariffPlan{{ID: "t1", UtilityTypeID: "1", IsActive: true}},
			Users:        []billing.User{{Role: "Admin"}, {Role: "Consumer"}, {Role: "Consumer"}},
		},
	}
}

type testEnv struct {
	server *httptest.Server
	hub    *dashboard.Hub
	sess   *session.Session
}

func newTestEnv(t *testing.T, agg *stubAggregator, role string) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := dashboard.NewHub(func(string) dashboard.Aggregating { return agg }, dashboard.HubConfig{RefreshInterval: time.Hour}, logger, nil)
	t.Cleanup(hub.Shutdown)

	var sess *session.Session
	if role != "" {
		sess = &session.Session{ID: "seed"}
		sess.SignIn("token", session.Principal{Subject: "u-1", Role: role})
	}

	handler := NewHandler(logger, hub)
	handler.WithNow(func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) })
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(session.WithSession(req.Context(), sess)))
		})
	})
	handler.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, hub: hub, sess: sess}
}

func (e *testEnv) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestDashboardAdminViewModel(t *testing.T) {
	env := newTestEnv(t, fixtureAggregator(), "Admin")

	resp, body := env.do(t, http.MethodGet, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var vm struct {
		Role       string `json:"role"`
		Loading    bool   `json:"loading"`
		Error      string `json:"error"`
		Collection struct {
			Rate float64 `json:"rate"`
			Band string  `json:"band"`
		} `json:"collection"`
		Revenue []struct {
			Width float64 `json:"width"`
			Band  string  `json:"band"`
		} `json:"revenue"`
		Workflow struct {
			Completion int `json:"completion"`
		} `json:"workflow"`
		RoleDistribution []struct {
			Role  string `json:"role"`
			Count int    `json:"count"`
		} `json:"roleDistribution"`
		SystemStats []struct {
			Tariffs int    `json:"tariffs"`
			Icon    string `json:"icon"`
		} `json:"systemStats"`
	}
	require.NoError(t, json.Unmarshal(body, &vm))
	require.Equal(t, "Admin", vm.Role)
	require.False(t, vm.Loading)
	require.Empty(t, vm.Error)
	require.InDelta(t, 85, vm.Collection.Rate, 0.001)
	require.Equal(t, "good", vm.Collection.Band)
	require.Len(t, vm.Revenue, 2)
	require.InDelta(t, 100, vm.Revenue[0].Width, 0.001)
	require.InDelta(t, 25, vm.Revenue[1].Width, 0.001)
	require.Equal(t, "warning", vm.Revenue[1].Band)
	require.Equal(t, 75, vm.Workflow.Completion)
	require.Len(t, vm.RoleDistribution, 2)
	require.Equal(t, 2, vm.RoleDistribution[1].Count)
	require.Len(t, vm.SystemStats, 1)
	require.Equal(t, 1, vm.SystemStats[0].Tariffs)
	require.Equal(t, "bolt", vm.SystemStats[0].Icon)
	require.Equal(t, 1, env.hub.Len())
}

func TestDashboardConsumerHidesStaffMetrics(t *testing.T) {
	env := newTestEnv(t, fixtureAggregator(), "Consumer")

	resp, body := env.do(t, http.MethodGet, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var vm map[string]any
	require.NoError(t, json.Unmarshal(body, &vm))
	require.Equal(t, "Consumer", vm["role"])
	for _, key := range []string{"collection", "revenue", "workflow", "roleDistribution", "systemStats"} {
		_, ok := vm[key]
		require.False(t, ok, key)
	}

	resp, _ = env.do(t, http.MethodGet, "/dashboard/charts/revenue.svg")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/dashboard/charts/roles.svg")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDashboardCharts(t *testing.T) {
	env := newTestEnv(t, fixtureAggregator(), "Admin")

	for _, chart := range []string{ChartRoles, ChartRevenue, ChartWorkflow} {
		resp, body := env.do(t, http.MethodGet, "/dashboard/charts/"+chart+".svg")
		require.Equal(t, http.StatusOK, resp.StatusCode, chart)
		require.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
		require.True(t, strings.HasPrefix(string(body), "<svg"), chart)
	}

	resp, _ := env.do(t, http.MethodGet, "/dashboard/charts/unknown.svg")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboardRefreshSurfacesFailure(t *testing.T) {
	agg := fixtureAggregator()
	env := newTestEnv(t, agg, "BillingOfficer")

	resp, _ := env.do(t, http.MethodGet, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	agg.setFailure(&dashboard.Failure{Source: dashboard.SourceReports, Message: "Failed to load dashboard data"})
	resp, body := env.do(t, http.MethodPost, "/dashboard/refresh")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var vm struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &vm))
	require.Equal(t, "Failed to load dashboard data", vm.Error)

	agg.setFailure(nil)
	_, body = env.do(t, http.MethodPost, "/dashboard/refresh")
	var cleared map[string]any
	require.NoError(t, json.Unmarshal(body, &cleared))
	require.NotContains(t, cleared, "error")
}

func TestDashboardExportCSV(t *testing.T) {
	env := newTestEnv(t, fixtureAggregator(), "Admin")

	resp, body := env.do(t, http.MethodGet, "/dashboard/export.csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "dashboard-admin-2025-03-15.csv")
	require.True(t, strings.HasPrefix(string(body), "Metric,Value"))
	require.Contains(t, string(body), "Total Consumers,1200")
}

func TestDashboardCloseTearsDownView(t *testing.T) {
	env := newTestEnv(t, fixtureAggregator(), "Admin")

	resp, _ := env.do(t, http.MethodGet, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, env.hub.Len())

	resp, _ = env.do(t, http.MethodDelete, "/dashboard")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, 0, env.hub.Len())
}

func TestDashboardRequiresSession(t *testing.T) {
	env := newTestEnv(t, fixtureAggregator(), "")

	resp, _ := env.do(t, http.MethodGet, "/dashboard")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}
