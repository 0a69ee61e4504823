// Package ui shapes a live dashboard state into the view model the console renders.
package ui

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/utilitydesk/billing-console/internal/billing"
	"github.com/utilitydesk/billing-console/internal/dashboard"
	"github.com/utilitydesk/billing-console/internal/dashboard/calc"
)

// Card is one headline figure.
type Card struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// CollectionView is the overall collection rate card.
type CollectionView struct {
	Billed    string  `json:"billed"`
	Collected string  `json:"collected"`
	Rate      float64 `json:"rate"`
	RateLabel string  `json:"rateLabel"`
	Band      string  `json:"band"`
}

// ConsumptionBar is one row of the consumption chart.
type ConsumptionBar struct {
	UtilityType string          `json:"utilityType"`
	Total       decimal.Decimal `json:"total"`
	Unit        string          `json:"unit"`
	Connections int             `json:"connections"`
	Width       float64         `json:"width"`
}

// RevenueBar is one row of the revenue by utility chart.
type RevenueBar struct {
	UtilityType string  `json:"utilityType"`
	Billed      string  `json:"billed"`
	Collected   string  `json:"collected"`
	BillCount   int     `json:"billCount"`
	Rate        float64 `json:"rate"`
	Band        string  `json:"band"`
	Width       float64 `json:"width"`
}

// WorkflowView is the meter reading progress card.
type WorkflowView struct {
	ActiveConnections int `json:"activeConnections"`
	PendingReadings   int `json:"pendingReadings"`
	Completion        int `json:"completion"`
}

// SummaryView is the dashboard summary trimmed to the figures a role may see. Hidden
// figures are omitted rather than zeroed.
type SummaryView struct {
	TotalConsumers           *int                         `json:"totalConsumers,omitempty"`
	ActiveConnections        int                          `json:"activeConnections"`
	TotalBills               int                          `json:"totalBills"`
	PendingBills             int                          `json:"pendingBills"`
	OverdueBills             int                          `json:"overdueBills"`
	TotalRevenueThisMonth    *decimal.Decimal             `json:"totalRevenueThisMonth,omitempty"`
	TotalOutstanding         *decimal.Decimal             `json:"totalOutstanding,omitempty"`
	TotalCollected           *decimal.Decimal             `json:"totalCollected,omitempty"`
	TotalBilled              *decimal.Decimal             `json:"totalBilled,omitempty"`
	ConsumptionByUtilityType []billing.UtilityConsumption `json:"consumptionByUtilityType,omitempty"`
	RevenueByUtilityType     []billing.UtilityRevenue     `json:"revenueByUtilityType,omitempty"`
	RecentActivities         []billing.Activity           `json:"recentActivities,omitempty"`
}

// VisibleSummary trims s to vis.
func VisibleSummary(s billing.DashboardSummary, vis dashboard.SummaryVisibility) SummaryView {
	view := SummaryView{
		ActiveConnections: s.ActiveConnections,
		TotalBills:        s.TotalBills,
		PendingBills:      s.PendingBills,
		OverdueBills:      s.OverdueBills,
	}
	if vis.Consumers {
		view.TotalConsumers = &s.TotalConsumers
	}
	if vis.Revenue {
		view.TotalRevenueThisMonth = &s.TotalRevenueThisMonth
		view.RevenueByUtilityType = s.RevenueByUtilityType
	}
	if vis.Outstanding {
		view.TotalOutstanding = &s.TotalOutstanding
	}
	if vis.Collection {
		view.TotalBilled = &s.TotalBilled
		view.TotalCollected = &s.TotalCollected
	}
	if vis.Consumption {
		view.ConsumptionByUtilityType = s.ConsumptionByUtilityType
	}
	if vis.Activity {
		view.RecentActivities = s.RecentActivities
	}
	return view
}

// DashboardViewModel combines everything one role may see.
type DashboardViewModel struct {
	Role             string                 `json:"role"`
	Metrics          []string               `json:"metrics"`
	Loading          bool                   `json:"loading"`
	Error            string                 `json:"error,omitempty"`
	UpdatedAt        *time.Time             `json:"updatedAt,omitempty"`
	Cards            []Card                 `json:"cards"`
	Collection       *CollectionView        `json:"collection,omitempty"`
	Consumption      []ConsumptionBar       `json:"consumption,omitempty"`
	Revenue          []RevenueBar           `json:"revenue,omitempty"`
	Workflow         *WorkflowView          `json:"workflow,omitempty"`
	Activities       []billing.Activity     `json:"activities,omitempty"`
	RoleDistribution []calc.RoleCount       `json:"roleDistribution,omitempty"`
	SystemStats      []calc.AdminSystemStat `json:"systemStats,omitempty"`
	Summary          SummaryView            `json:"summary"`
}

// Build derives the view model of state for the metrics rc may see.
func Build(rc dashboard.RoleContext, state dashboard.State) DashboardViewModel {
	summary := state.Summary()
	metrics := make([]string, 0, len(rc.Metrics))
	for _, m := range rc.Metrics {
		metrics = append(metrics, string(m))
	}
	vm := DashboardViewModel{
		Role:    string(rc.Role),
		Metrics: metrics,
		Loading: state.Loading,
		Error:   state.Error,
		Summary: VisibleSummary(summary, rc.Metrics.Visibility()),
		Cards:   cards(rc, summary),
	}
	if !state.UpdatedAt.IsZero() {
		at := state.UpdatedAt
		vm.UpdatedAt = &at
	}

	if rc.Metrics.Has(dashboard.MetricCollection) {
		rate := calc.CollectionRate(summary)
		vm.Collection = &CollectionView{
			Billed:    calc.FormatCurrency(summary.TotalBilled),
			Collected: calc.FormatCurrency(summary.TotalCollected),
			Rate:      rate,
			RateLabel: calc.FormatPercent(rate),
			Band:      calc.Band(rate),
		}
	}
	if rc.Metrics.Has(dashboard.MetricConsumption) {
		vm.Consumption = ConsumptionBars(summary.ConsumptionByUtilityType)
	}
	if rc.Metrics.Has(dashboard.MetricRevenue) {
		vm.Revenue = RevenueBars(summary.RevenueByUtilityType)
	}
	if rc.Metrics.Has(dashboard.MetricWorkflow) {
		pending := 0
		if state.Snapshot != nil {
			pending = state.Snapshot.PendingReadings
		}
		vm.Workflow = &WorkflowView{
			ActiveConnections: summary.ActiveConnections,
			PendingReadings:   pending,
			Completion:        calc.WorkflowCompletion(summary.ActiveConnections, pending),
		}
	}
	if rc.Metrics.Has(dashboard.MetricActivity) {
		vm.Activities = summary.RecentActivities
	}
	if state.Snapshot != nil {
		ref := state.Snapshot.Reference
		if rc.Metrics.Has(dashboard.MetricUserDistribution) {
			vm.RoleDistribution = calc.RoleDistribution(ref.Users)
		}
		if rc.Metrics.Has(dashboard.MetricSystemStats) {
			vm.SystemStats = calc.SystemStats(ref.UtilityTypes, ref.TariffPlans)
		}
	}
	return vm
}

func cards(rc dashboard.RoleContext, s billing.DashboardSummary) []Card {
	out := make([]Card, 0, 8)
	if rc.Metrics.Has(dashboard.MetricConsumerCount) {
		out = append(out, Card{Key: "totalConsumers", Label: "Consumers", Value: calc.FormatCount(s.TotalConsumers)})
	}
	out = append(out,
		Card{Key: "activeConnections", Label: "Active connections", Value: calc.FormatCount(s.ActiveConnections)},
		Card{Key: "totalBills", Label: "Bills", Value: calc.FormatCount(s.TotalBills)},
		Card{Key: "pendingBills", Label: "Pending bills", Value: calc.FormatCount(s.PendingBills)},
		Card{Key: "overdueBills", Label: "Overdue bills", Value: calc.FormatCount(s.OverdueBills)},
	)
	if rc.Metrics.Has(dashboard.MetricRevenue) {
		out = append(out, Card{Key: "totalRevenueThisMonth", Label: "Revenue this month", Value: calc.FormatCurrency(s.TotalRevenueThisMonth)})
	}
	if rc.Metrics.Has(dashboard.MetricRevenue) || rc.Metrics.Has(dashboard.MetricOwnOutstanding) {
		out = append(out, Card{Key: "totalOutstanding", Label: "Outstanding", Value: calc.FormatCurrency(s.TotalOutstanding)})
	}
	if rc.Metrics.Has(dashboard.MetricOwnOutstanding) {
		out = append(out, Card{Key: "totalPaid", Label: "Paid", Value: calc.FormatCurrency(s.TotalCollected)})
	}
	return out
}

// ConsumptionBars pairs consumption entries with their bar widths.
func ConsumptionBars(items []billing.UtilityConsumption) []ConsumptionBar {
	widths := calc.ConsumptionBarWidths(items)
	out := make([]ConsumptionBar, 0, len(items))
	for i, item := range items {
		unit := item.Unit
		if unit == "" {
			unit = dashboard.UnitFor(item.UtilityType)
		}
		out = append(out, ConsumptionBar{
			UtilityType: item.UtilityType,
			Total:       item.TotalConsumption,
			Unit:        unit,
			Connections: item.ConnectionCount,
			Width:       widths[i],
		})
	}
	return out
}

// RevenueBars pairs revenue entries with their collection rate and bar widths.
func RevenueBars(items []billing.UtilityRevenue) []RevenueBar {
	widths := calc.RevenueBarWidths(items)
	out := make([]RevenueBar, 0, len(items))
	for i, item := range items {
		rate := calc.UtilityCollectionRate(item)
		out = append(out, RevenueBar{
			UtilityType: item.UtilityType,
			Billed:      calc.FormatCurrency(item.BilledAmount),
			Collected:   calc.FormatCurrency(item.Collected),
			BillCount:   item.BillCount,
			Rate:        rate,
			Band:        calc.Band(rate),
			Width:       widths[i],
		})
	}
	return out
}
