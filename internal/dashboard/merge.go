package dashboard

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utilitydesk/billing-console/internal/billing"
)

const statusActive = "active"

// mergeStaff seeds from the reports summary and fills the lists it left empty.
func mergeStaff(res cycleResults) billing.DashboardSummary {
	summary := billing.EmptySummary()
	if !res.summary.Failed {
		summary = normaliseSummary(res.summary.Value)
	}
	if len(summary.RecentActivities) == 0 {
		summary.RecentActivities = recentActivities(res.bills.Value, res.payments.Value, res.readings.Value)
	}
	if len(summary.ConsumptionByUtilityType) == 0 {
		summary.ConsumptionByUtilityType = consumptionFromBills(res.connections.Value, res.bills.Value)
	}
	return summary
}

// mergeConsumer builds the whole summary from the consumer's own records.
func mergeConsumer(res cycleResults, now time.Time) billing.DashboardSummary {
	summary := billing.EmptySummary()
	bills, payments, connections := res.bills.Value, res.payments.Value, res.connections.Value

	for _, conn := range connections {
		if strings.EqualFold(strings.TrimSpace(conn.Status), statusActive) {
			summary.ActiveConnections++
		}
	}

	summary.TotalBills = len(bills)
	revenue := make([]billing.UtilityRevenue, 0)
	revenueIdx := make(map[string]int)
	for _, bill := range bills {
		if !strings.EqualFold(bill.Status, billing.BillStatusPaid) {
			summary.PendingBills++
		}
		if strings.EqualFold(bill.Status, billing.BillStatusOverdue) {
			summary.OverdueBills++
		}
		summary.TotalOutstanding = summary.TotalOutstanding.Add(bill.OutstandingBalance)
		summary.TotalBilled = summary.TotalBilled.Add(bill.TotalAmount)

		idx, ok := revenueIdx[bill.UtilityType]
		if !ok {
			idx = len(revenue)
			revenueIdx[bill.UtilityType] = idx
			revenue = append(revenue, billing.UtilityRevenue{UtilityType: bill.UtilityType, BilledAmount: decimal.Zero, Collected: decimal.Zero})
		}
		revenue[idx].BilledAmount = revenue[idx].BilledAmount.Add(bill.TotalAmount)
		revenue[idx].Collected = revenue[idx].Collected.Add(bill.TotalAmount.Sub(bill.OutstandingBalance))
		revenue[idx].BillCount++
	}
	summary.RevenueByUtilityType = revenue

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for _, payment := range payments {
		summary.TotalCollected = summary.TotalCollected.Add(payment.Amount)
		if !payment.PaymentDate.Before(monthStart) && payment.PaymentDate.Before(monthStart.AddDate(0, 1, 0)) {
			summary.TotalRevenueThisMonth = summary.TotalRevenueThisMonth.Add(payment.Amount)
		}
	}

	consumption := make([]billing.UtilityConsumption, 0)
	consumptionIdx := make(map[string]int)
	for _, conn := range connections {
		idx, ok := consumptionIdx[conn.UtilityType]
		if !ok {
			idx = len(consumption)
			consumptionIdx[conn.UtilityType] = idx
			consumption = append(consumption, billing.UtilityConsumption{
				UtilityType:      conn.UtilityType,
				TotalConsumption: decimal.Zero,
				Unit:             UnitFor(conn.UtilityType),
			})
		}
		consumption[idx].TotalConsumption = consumption[idx].TotalConsumption.Add(conn.LastReading)
		consumption[idx].ConnectionCount++
	}
	summary.ConsumptionByUtilityType = consumption

	summary.RecentActivities = recentActivities(bills, payments, nil)
	return summary
}

func normaliseSummary(s billing.DashboardSummary) billing.DashboardSummary {
	if s.ConsumptionByUtilityType == nil {
		s.ConsumptionByUtilityType = []billing.UtilityConsumption{}
	}
	if s.RevenueByUtilityType == nil {
		s.RevenueByUtilityType = []billing.UtilityRevenue{}
	}
	if s.RecentActivities == nil {
		s.RecentActivities = []billing.Activity{}
	}
	return s
}

// recentActivities merges the fetched records into one newest-first feed.
func recentActivities(bills []billing.Bill, payments []billing.Payment, readings []billing.Reading) []billing.Activity {
	feed := make([]billing.Activity, 0, len(bills)+len(payments)+len(readings))
	for _, bill := range bills {
		feed = append(feed, billing.Activity{
			Type:        billing.ActivityBill,
			Description: describeBill(bill),
			Timestamp:   bill.BillDate,
		})
	}
	for _, payment := range payments {
		feed = append(feed, billing.Activity{
			Type:        billing.ActivityPayment,
			Description: describePayment(payment),
			Timestamp:   payment.PaymentDate,
		})
	}
	for _, reading := range readings {
		feed = append(feed, billing.Activity{
			Type:        billing.ActivityReading,
			Description: describeReading(reading),
			Timestamp:   reading.ReadingDate,
		})
	}
	slices.SortStableFunc(feed, func(a, b billing.Activity) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(feed) > billing.MaxRecentActivities {
		feed = feed[:billing.MaxRecentActivities]
	}
	return feed
}

func describeBill(b billing.Bill) string {
	if b.ConsumerName == "" {
		return fmt.Sprintf("Bill %s generated", b.BillNumber)
	}
	return fmt.Sprintf("Bill %s generated for %s", b.BillNumber, b.ConsumerName)
}

func describePayment(p billing.Payment) string {
	if p.BillNumber == "" {
		return fmt.Sprintf("Payment of %s received", p.Amount.StringFixed(2))
	}
	return fmt.Sprintf("Payment of %s received for bill %s", p.Amount.StringFixed(2), p.BillNumber)
}

func describeReading(r billing.Reading) string {
	return fmt.Sprintf("Meter reading %s recorded for %s", r.ReadingValue.String(), r.ConnectionNumber)
}

// consumptionFromBills seeds one entry per utility type found on connections and adds
// each bill's consumption to the entry with the same name.
func consumptionFromBills(connections []billing.Connection, bills []billing.Bill) []billing.UtilityConsumption {
	out := make([]billing.UtilityConsumption, 0)
	idx := make(map[string]int)
	for _, conn := range connections {
		if i, ok := idx[conn.UtilityType]; ok {
			out[i].ConnectionCount++
			continue
		}
		idx[conn.UtilityType] = len(out)
		out = append(out, billing.UtilityConsumption{
			UtilityType:      conn.UtilityType,
			TotalConsumption: decimal.Zero,
			ConnectionCount:  1,
			Unit:             UnitFor(conn.UtilityType),
		})
	}
	for _, bill := range bills {
		i, ok := idx[bill.UtilityType]
		if !ok {
			i = len(out)
			idx[bill.UtilityType] = i
			out = append(out, billing.UtilityConsumption{
				UtilityType:      bill.UtilityType,
				TotalConsumption: decimal.Zero,
				Unit:             UnitFor(bill.UtilityType),
			})
		}
		out[i].TotalConsumption = out[i].TotalConsumption.Add(bill.UnitsConsumed)
	}
	return out
}

// UnitFor maps a utility type name onto its metering unit.
func UnitFor(utilityType string) string {
	name := strings.ToLower(utilityType)
	switch {
	case strings.Contains(name, "electric"):
		return "kWh"
	case strings.Contains(name, "water"):
		return "KL"
	case strings.Contains(name, "gas"):
		return "SCM"
	default:
		return "units"
	}
}

type window struct {
	start time.Time
	end   time.Time
}

// currentCycleWindow picks the active billing cycle containing now, else the calendar month.
func currentCycleWindow(cycles []billing.BillingCycle, now time.Time) window {
	for _, cycle := range cycles {
		if cycle.IsActive && cycle.Contains(now) {
			return window{start: cycle.StartDate, end: cycle.EndDate}
		}
	}
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return window{start: start, end: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

// pendingReadings counts active connections without a reading inside w.
func pendingReadings(connections []billing.Connection, readings []billing.Reading, w window) int {
	read := make(map[string]struct{}, len(readings))
	for _, reading := range readings {
		if reading.ReadingDate.Before(w.start) || reading.ReadingDate.After(w.end) {
			continue
		}
		read[reading.ConnectionNumber] = struct{}{}
	}
	pending := 0
	for _, conn := range connections {
		if !strings.EqualFold(strings.TrimSpace(conn.Status), statusActive) {
			continue
		}
		if _, ok := read[conn.ConnectionNumber]; !ok {
			pending++
		}
	}
	return pending
}
