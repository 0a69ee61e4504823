package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardSummary is the merged dashboard payload for one aggregation cycle.
type DashboardSummary struct {
	TotalConsumers           int                  `json:"totalConsumers"`
	ActiveConnections        int                  `json:"activeConnections"`
	TotalBills               int                  `json:"totalBills"`
	PendingBills             int                  `json:"pendingBills"`
	OverdueBills             int                  `json:"overdueBills"`
	TotalRevenueThisMonth    decimal.Decimal      `json:"totalRevenueThisMonth"`
	TotalOutstanding         decimal.Decimal      `json:"totalOutstanding"`
	TotalCollected           decimal.Decimal      `json:"totalCollected"`
	TotalBilled              decimal.Decimal      `json:"totalBilled"`
	ConsumptionByUtilityType []UtilityConsumption `json:"consumptionByUtilityType"`
	RevenueByUtilityType     []UtilityRevenue     `json:"revenueByUtilityType"`
	RecentActivities         []Activity           `json:"recentActivities"`
}

// UtilityConsumption aggregates consumption for one utility type.
type UtilityConsumption struct {
	UtilityType      string          `json:"utilityType"`
	TotalConsumption decimal.Decimal `json:"totalConsumption"`
	ConnectionCount  int             `json:"connectionCount"`
	Unit             string          `json:"unit"`
}

// UtilityRevenue aggregates billing and collection for one utility type.
type UtilityRevenue struct {
	UtilityType  string          `json:"utilityType"`
	BilledAmount decimal.Decimal `json:"billedAmount"`
	Collected    decimal.Decimal `json:"collected"`
	BillCount    int             `json:"billCount"`
}

// Activity is an entry of the recent activity feed.
type Activity struct {
	Type        ActivityType `json:"type"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
}

// EmptySummary returns an all-zero summary with non-nil lists.
func EmptySummary() DashboardSummary {
	return DashboardSummary{
		TotalRevenueThisMonth:    decimal.Zero,
		TotalOutstanding:         decimal.Zero,
		TotalCollected:           decimal.Zero,
		TotalBilled:              decimal.Zero,
		ConsumptionByUtilityType: []UtilityConsumption{},
		RevenueByUtilityType:     []UtilityRevenue{},
		RecentActivities:         []Activity{},
	}
}
