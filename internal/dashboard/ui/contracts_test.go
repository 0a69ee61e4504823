package ui

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/utilitydesk/billing-console/internal/billing"
	"github.com/utilitydesk/billing-console/internal/dashboard"
	"github.com/utilitydesk/billing-console/internal/dashboard/calc"
)

func cardKeys(cards []Card) []string {
	keys := make([]string, 0, len(cards))
	for _, c := range cards {
		keys = append(keys, c.Key)
	}
	return keys
}

func TestBuildBeforeFirstCycle(t *testing.T) {
	vm := Build(dashboard.ResolveRole("Admin"), dashboard.State{Loading: true})

	require.True(t, vm.Loading)
	require.Nil(t, vm.UpdatedAt)
	require.NotNil(t, vm.Collection)
	require.Equal(t, float64(0), vm.Collection.Rate)
	require.Equal(t, calc.BandPoor, vm.Collection.Band)
	require.NotNil(t, vm.Workflow)
	require.Equal(t, 100, vm.Workflow.Completion)
	require.Empty(t, vm.RoleDistribution)
	require.Empty(t, vm.SystemStats)
	require.True(t, vm.Summary.TotalBilled.IsZero())
}

func TestBuildConsumerCards(t *testing.T) {
	summary := billing.EmptySummary()
	summary.ActiveConnections = 1
	summary.PendingBills = 1
	summary.OverdueBills = 1
	summary.TotalOutstanding = decimal.NewFromInt(500)
	summary.TotalCollected = decimal.NewFromInt(120)
	summary.ConsumptionByUtilityType = []billing.UtilityConsumption{
		{UtilityType: "Water", TotalConsumption: decimal.NewFromInt(40), ConnectionCount: 1},
	}
	updated := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	state := dashboard.State{Snapshot: &dashboard.Snapshot{Summary: summary}, UpdatedAt: updated}

	vm := Build(dashboard.ResolveRole("consumer"), state)

	require.Equal(t, "Consumer", vm.Role)
	require.Equal(t, []string{"activeConnections", "totalBills", "pendingBills", "overdueBills", "totalOutstanding", "totalPaid"}, cardKeys(vm.Cards))
	require.Nil(t, vm.Collection)
	require.Nil(t, vm.Workflow)
	require.Empty(t, vm.Revenue)
	require.NotNil(t, vm.UpdatedAt)
	require.True(t, vm.UpdatedAt.Equal(updated))

	require.Len(t, vm.Consumption, 1)
	require.Equal(t, "KL", vm.Consumption[0].Unit)
	require.Equal(t, float64(100), vm.Consumption[0].Width)
}

func TestBuildAccountOfficerHidesRevenue(t *testing.T) {
	summary := billing.EmptySummary()
	summary.TotalConsumers = 1200
	vm := Build(dashboard.ResolveRole("Account Officer"), dashboard.State{Snapshot: &dashboard.Snapshot{Summary: summary}})

	keys := cardKeys(vm.Cards)
	require.Contains(t, keys, "totalConsumers")
	require.NotContains(t, keys, "totalRevenueThisMonth")
	require.NotContains(t, keys, "totalOutstanding")
	require.Equal(t, "1,200", vm.Cards[0].Value)
	require.Nil(t, vm.Collection)
	require.NotNil(t, vm.Workflow)

	require.NotNil(t, vm.Summary.TotalConsumers)
	require.Nil(t, vm.Summary.TotalBilled)
	require.Nil(t, vm.Summary.TotalCollected)
	require.Nil(t, vm.Summary.TotalOutstanding)
	require.Nil(t, vm.Summary.TotalRevenueThisMonth)

	raw, err := json.Marshal(vm)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "totalBilled")
	require.NotContains(t, string(raw), "totalCollected")
	require.NotContains(t, string(raw), "revenueByUtilityType")
}

func TestBuildConsumerSeesOwnAmountsOnly(t *testing.T) {
	summary := billing.EmptySummary()
	summary.TotalConsumers = 1200
	summary.TotalBilled = decimal.NewFromInt(900)
	vm := Build(dashboard.ResolveRole("Consumer"), dashboard.State{Snapshot: &dashboard.Snapshot{Summary: summary}})

	require.Nil(t, vm.Summary.TotalConsumers)
	require.Nil(t, vm.Summary.TotalRevenueThisMonth)
	require.NotNil(t, vm.Summary.TotalBilled)
	require.True(t, vm.Summary.TotalBilled.Equal(decimal.NewFromInt(900)))
	require.NotNil(t, vm.Summary.TotalOutstanding)
}

func TestRevenueBars(t *testing.T) {
	bars := RevenueBars([]billing.UtilityRevenue{
		{UtilityType: "Electricity", BilledAmount: decimal.NewFromInt(800), Collected: decimal.NewFromInt(700), BillCount: 8},
		{UtilityType: "Water", BilledAmount: decimal.NewFromInt(200), Collected: decimal.Zero, BillCount: 2},
	})
	require.Len(t, bars, 2)
	require.Equal(t, float64(100), bars[0].Width)
	require.Equal(t, float64(25), bars[1].Width)
	require.Equal(t, float64(0), bars[1].Rate)
	require.Equal(t, calc.BandPoor, bars[1].Band)
}
