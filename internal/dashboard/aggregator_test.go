package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/utilitydesk/billing-console/internal/billing"
	"github.com/utilitydesk/billing-console/internal/billingapi"
	"github.com/utilitydesk/billing-console/internal/dashboard/calc"
)

type fakeSources struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string]error

	summary       billing.DashboardSummary
	bills         []billing.Bill
	payments      []billing.Payment
	readings      []billing.Reading
	connections   []billing.Connection
	users         []billing.User
	utilityTypes  []billing.UtilityType
	tariffPlans   []billing.TariffPlan
	billingCycles []billing.BillingCycle
}

func newFakeSources() *fakeSources {
	return &fakeSources{calls: map[string]int{}, errs: map[string]error{}}
}

func (f *fakeSources) hit(source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[source]++
	return f.errs[source]
}

func (f *fakeSources) failWith(source string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[source] = err
}

func (f *fakeSources) callCount(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[source]
}

func (f *fakeSources) DashboardSummary(context.Context) (billing.DashboardSummary, error) {
	if err := f.hit(SourceReports); err != nil {
		return billing.DashboardSummary{}, err
	}
	return f.summary, nil
}

func (f *fakeSources) RecentBills(context.Context, billing.PageQuery) ([]billing.Bill, error) {
	if err := f.hit(SourceBills); err != nil {
		return nil, err
	}
	return f.bills, nil
}

func (f *fakeSources) MyBills(context.Context) ([]billing.Bill, error) {
	if err := f.hit(SourceMyBills); err != nil {
		return nil, err
	}
	return f.bills, nil
}

func (f *fakeSources) RecentPayments(context.Context, billing.PageQuery) ([]billing.Payment, error) {
	if err := f.hit(SourcePayments); err != nil {
		return nil, err
	}
	return f.payments, nil
}

func (f *fakeSources) MyPayments(context.Context) ([]billing.Payment, error) {
	if err := f.hit(SourceMyPayments); err != nil {
		return nil, err
	}
	return f.payments, nil
}

// RecentReadings pages f.readings, which fixtures keep newest first.
func (f *fakeSources) RecentReadings(_ context.Context, q billing.PageQuery) ([]billing.Reading, error) {
	if err := f.hit(SourceReadings); err != nil {
		return nil, err
	}
	if q.PageSize <= 0 {
		return f.readings, nil
	}
	start := (max(q.Page, 1) - 1) * q.PageSize
	if start >= len(f.readings) {
		return []billing.Reading{}, nil
	}
	return f.readings[start:min(start+q.PageSize, len(f.readings))], nil
}

func (f *fakeSources) Connections(context.Context, billing.PageQuery) ([]billing.Connection, error) {
	if err := f.hit(SourceConnections); err != nil {
		return nil, err
	}
	return f.connections, nil
}

func (f *fakeSources) MyConnections(context.Context) ([]billing.Connection, error) {
	if err := f.hit(SourceMyConnections); err != nil {
		return nil, err
	}
	return f.connections, nil
}

func (f *fakeSources) Users(context.Context, billing.PageQuery) ([]billing.User, error) {
	if err := f.hit(SourceUsers); err != nil {
		return nil, err
	}
	return f.users, nil
}

func (f *fakeSources) UtilityTypes(context.Context) ([]billing.UtilityType, error) {
	if err := f.hit(SourceUtilityTypes); err != nil {
		return nil, err
	}
	return f.utilityTypes, nil
}

func (f *fakeSources) TariffPlans(context.Context) ([]billing.TariffPlan, error) {
	if err := f.hit(SourceTariffPlans); err != nil {
		return nil, err
	}
	return f.tariffPlans, nil
}

func (f *fakeSources) BillingCycles(context.Context) ([]billing.BillingCycle, error) {
	if err := f.hit(SourceBillingCycles); err != nil {
		return nil, err
	}
	return f.billingCycles, nil
}

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(src *fakeSources, metrics *Metrics) *Aggregator {
	agg := NewAggregator(CollaboratorsFrom(src), discardLogger(), metrics)
	agg.WithNow(func() time.Time { return fixedNow })
	return agg
}

func staffFixture() *fakeSources {
	src := newFakeSources()
	src.summary = billing.DashboardSummary{
		TotalConsumers:    40,
		ActiveConnections: 3,
		TotalBills:        12,
		TotalBilled:       decimal.NewFromInt(1000),
		TotalCollected:    decimal.NewFromInt(250),
	}
	src.connections = []billing.Connection{
		{ConnectionNumber: "C-1", UtilityType: "Electricity", Status: "Active"},
		{ConnectionNumber: "C-2", UtilityType: "Water", Status: "active"},
		{ConnectionNumber: "C-3", UtilityType: "Electricity", Status: "Active"},
		{ConnectionNumber: "C-4", UtilityType: "Gas", Status: "Disconnected"},
	}
	src.bills = []billing.Bill{
		{BillNumber: "B-1", UtilityType: "Electricity", UnitsConsumed: decimal.NewFromInt(120), BillDate: fixedNow.Add(-48 * time.Hour)},
		{BillNumber: "B-2", UtilityType: "Solar", UnitsConsumed: decimal.NewFromInt(7), BillDate: fixedNow.Add(-24 * time.Hour)},
	}
	src.payments = []billing.Payment{
		{BillNumber: "B-0", Amount: decimal.NewFromInt(300), PaymentDate: fixedNow.Add(-time.Hour)},
	}
	src.readings = []billing.Reading{
		{ConnectionNumber: "C-1", ReadingValue: decimal.NewFromInt(450), ReadingDate: fixedNow.Add(-2 * time.Hour)},
		{ConnectionNumber: "C-2", ReadingValue: decimal.NewFromInt(90), ReadingDate: fixedNow.AddDate(0, -2, 0)},
	}
	return src
}

func TestAggregateIsIdempotent(t *testing.T) {
	src := staffFixture()
	agg := newTestAggregator(src, nil)
	rc := ResolveRole("Admin")

	first := agg.Aggregate(context.Background(), rc, ModeExplicit)
	second := agg.Aggregate(context.Background(), rc, ModeExplicit)

	require.Nil(t, first.Failure)
	require.Equal(t, first.Snapshot.Summary, second.Snapshot.Summary)
	require.Equal(t, first.Snapshot.PendingReadings, second.Snapshot.PendingReadings)
	require.NotEqual(t, first.Snapshot.CycleID, second.Snapshot.CycleID)
}

func TestAggregatePaymentsFailureIsIsolated(t *testing.T) {
	src := staffFixture()
	src.failWith(SourcePayments, errors.New("payments down"))
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	agg := newTestAggregator(src, metrics)

	out := agg.Aggregate(context.Background(), ResolveRole("billing officer"), ModeExplicit)

	require.Nil(t, out.Failure)
	summary := out.Snapshot.Summary
	require.Equal(t, 3, summary.ActiveConnections)

	require.Len(t, summary.ConsumptionByUtilityType, 4)
	electricity := summary.ConsumptionByUtilityType[0]
	require.Equal(t, "Electricity", electricity.UtilityType)
	require.Equal(t, "kWh", electricity.Unit)
	require.Equal(t, 2, electricity.ConnectionCount)
	require.True(t, electricity.TotalConsumption.Equal(decimal.NewFromInt(120)))
	require.Equal(t, "KL", summary.ConsumptionByUtilityType[1].Unit)
	require.Equal(t, "SCM", summary.ConsumptionByUtilityType[2].Unit)
	solar := summary.ConsumptionByUtilityType[3]
	require.Equal(t, "Solar", solar.UtilityType)
	require.Equal(t, "units", solar.Unit)
	require.Equal(t, 0, solar.ConnectionCount)

	require.NotEmpty(t, summary.RecentActivities)
	for _, activity := range summary.RecentActivities {
		require.NotEqual(t, billing.ActivityPayment, activity.Type)
	}
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.sourceFailures.WithLabelValues(SourcePayments)))
}

func TestAggregateActivitiesNewestFirstAndCapped(t *testing.T) {
	src := staffFixture()
	src.readings = nil
	src.bills = nil
	for i := 0; i < 15; i++ {
		src.bills = append(src.bills, billing.Bill{BillNumber: "B", BillDate: fixedNow.Add(-time.Duration(i) * time.Hour)})
	}
	agg := newTestAggregator(src, nil)

	out := agg.Aggregate(context.Background(), ResolveRole("Admin"), ModeSilent)

	feed := out.Snapshot.Summary.RecentActivities
	require.Len(t, feed, billing.MaxRecentActivities)
	require.Equal(t, billing.ActivityBill, feed[0].Type)
	require.Equal(t, fixedNow, feed[0].Timestamp)
	for i := 1; i < len(feed); i++ {
		require.False(t, feed[i].Timestamp.After(feed[i-1].Timestamp))
	}
}

func TestAggregateReportsListsWin(t *testing.T) {
	src := staffFixture()
	src.summary.ConsumptionByUtilityType = []billing.UtilityConsumption{{UtilityType: "Water", TotalConsumption: decimal.NewFromInt(5), Unit: "KL"}}
	src.summary.RecentActivities = []billing.Activity{{Type: billing.ActivityReading, Description: "server side"}}
	agg := newTestAggregator(src, nil)

	out := agg.Aggregate(context.Background(), ResolveRole("Admin"), ModeSilent)

	require.Equal(t, src.summary.ConsumptionByUtilityType, out.Snapshot.Summary.ConsumptionByUtilityType)
	require.Equal(t, src.summary.RecentActivities, out.Snapshot.Summary.RecentActivities)
}

func TestAggregateReportsFailureIsAuthoritative(t *testing.T) {
	src := staffFixture()
	src.failWith(SourceReports, &billingapi.APIError{Status: 500, Message: "Reports service unavailable"})
	agg := newTestAggregator(src, nil)

	out := agg.Aggregate(context.Background(), ResolveRole("AccountOfficer"), ModeExplicit)

	require.NotNil(t, out.Failure)
	require.Equal(t, SourceReports, out.Failure.Source)
	require.Equal(t, "Reports service unavailable", out.Failure.Message)
	require.Equal(t, 0, out.Snapshot.Summary.TotalConsumers)
	require.True(t, out.Snapshot.Summary.TotalBilled.IsZero())
	require.NotEmpty(t, out.Snapshot.Summary.ConsumptionByUtilityType)
}

func TestAggregatePlanPerRole(t *testing.T) {
	src := staffFixture()
	agg := newTestAggregator(src, nil)

	agg.Aggregate(context.Background(), ResolveRole("BillingOfficer"), ModeSilent)
	require.Equal(t, 1, src.callCount(SourceUtilityTypes))
	require.Equal(t, 1, src.callCount(SourceBillingCycles))
	require.Equal(t, 0, src.callCount(SourceUsers))

	agg.Aggregate(context.Background(), ResolveRole("account-officer"), ModeSilent)
	require.Equal(t, 0, src.callCount(SourceUsers))
	require.Equal(t, 1, src.callCount(SourceTariffPlans))

	agg.Aggregate(context.Background(), ResolveRole("Admin"), ModeSilent)
	require.Equal(t, 1, src.callCount(SourceUsers))

	agg.Aggregate(context.Background(), ResolveRole(""), ModeSilent)
	require.Equal(t, 1, src.callCount(SourceMyBills))
	require.Equal(t, 3, src.callCount(SourceReports))
}

func TestAggregatePendingReadingsUsesActiveCycle(t *testing.T) {
	src := staffFixture()
	src.billingCycles = []billing.BillingCycle{
		{Name: "Old", StartDate: fixedNow.AddDate(0, -3, 0), EndDate: fixedNow.AddDate(0, -2, 0), IsActive: true},
		{Name: "Current", StartDate: fixedNow.AddDate(0, -3, 0), EndDate: fixedNow.AddDate(0, 0, 5), IsActive: true},
	}
	agg := newTestAggregator(src, nil)

	out := agg.Aggregate(context.Background(), ResolveRole("Admin"), ModeSilent)
	require.Equal(t, 1, out.Snapshot.PendingReadings)

	src.billingCycles = nil
	out = agg.Aggregate(context.Background(), ResolveRole("Admin"), ModeSilent)
	require.Equal(t, 2, out.Snapshot.PendingReadings)
}

func TestAggregatePendingReadingsCoversWholeFleet(t *testing.T) {
	src := staffFixture()
	src.connections = nil
	src.readings = nil
	for i := range 450 {
		number := fmt.Sprintf("C-%03d", i)
		src.connections = append(src.connections, billing.Connection{ConnectionNumber: number, UtilityType: "Water", Status: "Active"})
		src.readings = append(src.readings, billing.Reading{ConnectionNumber: number, ReadingDate: fixedNow.Add(-time.Duration(i) * time.Minute)})
	}
	src.readings = append(src.readings, billing.Reading{ConnectionNumber: "C-OLD", ReadingDate: fixedNow.AddDate(0, -3, 0)})
	src.summary.ActiveConnections = len(src.connections)
	agg := newTestAggregator(src, nil)

	out := agg.Aggregate(context.Background(), ResolveRole("BillingOfficer"), ModeSilent)
	require.Equal(t, 0, out.Snapshot.PendingReadings)
	require.Equal(t, 100, calc.WorkflowCompletion(out.Snapshot.Summary.ActiveConnections, out.Snapshot.PendingReadings))
	// one page for the activity feed plus three pages of 200 for the cycle walk
	require.Equal(t, 4, src.callCount(SourceReadings))

	src.connections = append(src.connections, billing.Connection{ConnectionNumber: "C-NEW", Status: "Active"})
	out = agg.Aggregate(context.Background(), ResolveRole("BillingOfficer"), ModeSilent)
	require.Equal(t, 1, out.Snapshot.PendingReadings)
}

func TestAggregateCycleReadingsFailureIsIsolated(t *testing.T) {
	src := staffFixture()
	src.failWith(SourceReadings, errors.New("readings down"))
	metrics := NewMetrics(prometheus.NewRegistry())
	agg := newTestAggregator(src, metrics)

	out := agg.Aggregate(context.Background(), ResolveRole("Admin"), ModeExplicit)
	require.Nil(t, out.Failure)
	require.Equal(t, 3, out.Snapshot.PendingReadings)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.sourceFailures.WithLabelValues(SourceCycleReadings)))
}

func TestAggregateConsumerScenario(t *testing.T) {
	src := newFakeSources()
	src.bills = []billing.Bill{
		{BillNumber: "B-1", UtilityType: "Water", Status: "Overdue", TotalAmount: decimal.NewFromInt(800), OutstandingBalance: decimal.NewFromInt(500)},
		{BillNumber: "B-2", UtilityType: "Water", Status: "Paid", TotalAmount: decimal.NewFromInt(300), OutstandingBalance: decimal.Zero},
	}
	src.connections = []billing.Connection{
		{ConnectionNumber: "C-1", UtilityType: "Water", Status: "Active", LastReading: decimal.NewFromInt(42)},
		{ConnectionNumber: "C-2", UtilityType: "Water", Status: "Inactive", LastReading: decimal.NewFromInt(8)},
	}
	src.payments = []billing.Payment{{BillNumber: "B-2", Amount: decimal.NewFromInt(300), PaymentDate: fixedNow.AddDate(0, 0, -1)}}
	agg := newTestAggregator(src, nil)

	out := agg.Aggregate(context.Background(), ResolveRole("Consumer"), ModeExplicit)

	require.Nil(t, out.Failure)
	summary := out.Snapshot.Summary
	require.Equal(t, 1, summary.PendingBills)
	require.Equal(t, 1, summary.OverdueBills)
	require.True(t, summary.TotalOutstanding.Equal(decimal.NewFromInt(500)))
	require.Equal(t, 1, summary.ActiveConnections)
	require.Equal(t, 2, summary.TotalBills)
	require.True(t, summary.TotalBilled.Equal(decimal.NewFromInt(1100)))
	require.True(t, summary.TotalCollected.Equal(decimal.NewFromInt(300)))
	require.True(t, summary.TotalRevenueThisMonth.Equal(decimal.NewFromInt(300)))

	require.Len(t, summary.ConsumptionByUtilityType, 1)
	require.True(t, summary.ConsumptionByUtilityType[0].TotalConsumption.Equal(decimal.NewFromInt(50)))
	require.Equal(t, 2, summary.ConsumptionByUtilityType[0].ConnectionCount)

	require.Len(t, summary.RevenueByUtilityType, 1)
	require.True(t, summary.RevenueByUtilityType[0].Collected.Equal(decimal.NewFromInt(600)))
	require.Equal(t, 2, summary.RevenueByUtilityType[0].BillCount)

	require.Equal(t, 0, src.callCount(SourceReports))
}

func TestAggregateConsumerFirstFailureWins(t *testing.T) {
	src := newFakeSources()
	src.failWith(SourceMyPayments, errors.New("timeout"))
	src.failWith(SourceMyConnections, &billingapi.APIError{Status: 403, Message: "Forbidden"})
	agg := newTestAggregator(src, nil)

	out := agg.Aggregate(context.Background(), ResolveRole("consumer"), ModeExplicit)

	require.NotNil(t, out.Failure)
	require.Equal(t, SourceMyConnections, out.Failure.Source)
	require.Equal(t, "Forbidden", out.Failure.Message)
	require.Equal(t, billing.EmptySummary().RecentActivities, out.Snapshot.Summary.RecentActivities)
}

type panickingReports struct{}

func (panickingReports) DashboardSummary(context.Context) (billing.DashboardSummary, error) {
	panic("boom")
}

func TestAggregateRecoversPanickingSource(t *testing.T) {
	src := staffFixture()
	sources := CollaboratorsFrom(src)
	sources.Reports = panickingReports{}
	agg := NewAggregator(sources, discardLogger(), nil)

	out := agg.Aggregate(context.Background(), ResolveRole("Admin"), ModeExplicit)

	require.NotNil(t, out.Failure)
	require.Equal(t, billingapi.DefaultErrorMessage, out.Failure.Message)
}
