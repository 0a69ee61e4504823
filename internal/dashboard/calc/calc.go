// Package calc derives chart-ready numbers from a dashboard summary. Every function is pure
// and resolves a zero denominator to a defined value instead of failing.
package calc

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utilitydesk/billing-console/internal/billing"
)

// Collection rate bands.
const (
	BandGood    = "good"
	BandWarning = "warning"
	BandPoor    = "poor"
)

// Bar width floors keep near-zero entries visible.
const (
	ConsumptionBarFloor = 5.0
	RevenueBarFloor     = 10.0
)

var hundred = decimal.NewFromInt(100)

// CollectionRate is collected over billed as a percentage, 0 when nothing was billed.
func CollectionRate(s billing.DashboardSummary) float64 {
	return percentOf(s.TotalCollected, s.TotalBilled)
}

// UtilityCollectionRate is the collection rate of one utility type.
func UtilityCollectionRate(item billing.UtilityRevenue) float64 {
	return percentOf(item.Collected, item.BilledAmount)
}

func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

// Band classifies a collection rate.
func Band(rate float64) string {
	switch {
	case rate >= 80:
		return BandGood
	case rate >= 50:
		return BandWarning
	default:
		return BandPoor
	}
}

// BarWidth normalises value against the largest sibling as a percentage with a floor.
// It is 0 when there are no siblings or the largest is 0.
func BarWidth(value float64, siblings []float64, floor float64) float64 {
	maxVal := 0.0
	for _, v := range siblings {
		if v > maxVal {
			maxVal = v
		}
	}
	if len(siblings) == 0 || maxVal <= 0 {
		return 0
	}
	return math.Max(value/maxVal*100, floor)
}

// ConsumptionBarWidths sizes the consumption bars.
func ConsumptionBarWidths(items []billing.UtilityConsumption) []float64 {
	values := make([]float64, len(items))
	for i, item := range items {
		values[i] = item.TotalConsumption.InexactFloat64()
	}
	return widths(values, ConsumptionBarFloor)
}

// RevenueBarWidths sizes the revenue bars by billed amount.
func RevenueBarWidths(items []billing.UtilityRevenue) []float64 {
	values := make([]float64, len(items))
	for i, item := range items {
		values[i] = item.BilledAmount.InexactFloat64()
	}
	return widths(values, RevenueBarFloor)
}

func widths(values []float64, floor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = BarWidth(v, values, floor)
	}
	return out
}

// WorkflowCompletion is the share of active connections already read this cycle.
// No active connections counts as complete.
func WorkflowCompletion(activeConnections, pendingReadings int) int {
	if activeConnections <= 0 {
		return 100
	}
	pct := math.Round(float64(activeConnections-pendingReadings) / float64(activeConnections) * 100)
	return int(math.Min(100, math.Max(0, pct)))
}

// AdminSystemStat summarises one active utility type.
type AdminSystemStat struct {
	UtilityType string `json:"utilityType"`
	Connections int    `json:"connections"`
	Tariffs     int    `json:"tariffs"`
	Icon        string `json:"icon"`
}

// SystemStats builds one stat per active utility type. Tariff plans match on utility type
// ID when both sides carry one, otherwise on name.
func SystemStats(types []billing.UtilityType, plans []billing.TariffPlan) []AdminSystemStat {
	out := make([]AdminSystemStat, 0, len(types))
	for _, ut := range types {
		if !ut.IsActive {
			continue
		}
		tariffs := 0
		for _, plan := range plans {
			if plan.IsActive && planMatches(plan, ut) {
				tariffs++
			}
		}
		out = append(out, AdminSystemStat{
			UtilityType: ut.Name,
			Connections: ut.ConnectionCount,
			Tariffs:     tariffs,
			Icon:        IconFor(ut.Name),
		})
	}
	return out
}

func planMatches(plan billing.TariffPlan, ut billing.UtilityType) bool {
	if plan.UtilityTypeID != "" && ut.ID != "" {
		return plan.UtilityTypeID == ut.ID
	}
	return strings.EqualFold(strings.TrimSpace(plan.UtilityTypeName), strings.TrimSpace(ut.Name))
}

// IconFor maps a utility type name onto its display icon.
func IconFor(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "electric"):
		return "bolt"
	case strings.Contains(lower, "water"):
		return "droplet"
	case strings.Contains(lower, "gas"):
		return "flame"
	case strings.Contains(lower, "sewage"), strings.Contains(lower, "waste"):
		return "recycle"
	default:
		return "gauge"
	}
}

// RoleCount is one slice of the user distribution.
type RoleCount struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

const unknownRole = "Unknown"

var roleColors = map[string]string{
	"Admin":          "#6366f1",
	"BillingOfficer": "#0ea5e9",
	"AccountOfficer": "#f97316",
	"Consumer":       "#22c55e",
}

const defaultRoleColor = "#94a3b8"

// RoleDistribution groups users by role in first-seen order.
func RoleDistribution(users []billing.User) []RoleCount {
	out := make([]RoleCount, 0)
	idx := make(map[string]int)
	for _, user := range users {
		role := strings.TrimSpace(user.Role)
		if role == "" {
			role = unknownRole
		}
		if i, ok := idx[role]; ok {
			out[i].Count++
			continue
		}
		idx[role] = len(out)
		out = append(out, RoleCount{Role: role, Count: 1, Color: colorFor(role)})
	}
	return out
}

func colorFor(role string) string {
	if color, ok := roleColors[role]; ok {
		return color
	}
	return defaultRoleColor
}
