// Package export serialises dashboard summaries for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utilitydesk/billing-console/internal/billing"
	"github.com/utilitydesk/billing-console/internal/dashboard"
	"github.com/utilitydesk/billing-console/internal/dashboard/calc"
)

// WriteSummaryCSV writes the headline figures followed by the per-utility sections. Figures
// outside vis are left out.
func WriteSummaryCSV(w io.Writer, role string, generatedAt time.Time, summary billing.DashboardSummary, vis dashboard.SummaryVisibility) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	records := [][]string{
		{"Metric", "Value"},
		{"Role", role},
		{"Generated At", generatedAt.UTC().Format(time.RFC3339)},
	}
	if vis.Consumers {
		records = append(records, []string{"Total Consumers", strconv.Itoa(summary.TotalConsumers)})
	}
	records = append(records,
		[]string{"Active Connections", strconv.Itoa(summary.ActiveConnections)},
		[]string{"Total Bills", strconv.Itoa(summary.TotalBills)},
		[]string{"Pending Bills", strconv.Itoa(summary.PendingBills)},
		[]string{"Overdue Bills", strconv.Itoa(summary.OverdueBills)},
	)
	if vis.Revenue {
		records = append(records, []string{"Revenue This Month", formatAmount(summary.TotalRevenueThisMonth)})
	}
	if vis.Outstanding {
		records = append(records, []string{"Total Outstanding", formatAmount(summary.TotalOutstanding)})
	}
	if vis.Collection {
		records = append(records,
			[]string{"Total Billed", formatAmount(summary.TotalBilled)},
			[]string{"Total Collected", formatAmount(summary.TotalCollected)},
			[]string{"Collection Rate", formatRate(calc.CollectionRate(summary))},
		)
	}
	if err := writer.WriteAll(records); err != nil {
		return err
	}

	if vis.Consumption {
		if err := writer.Write(nil); err != nil {
			return err
		}
		if err := writer.Write([]string{"Utility Type", "Total Consumption", "Unit", "Connections"}); err != nil {
			return err
		}
		for _, item := range summary.ConsumptionByUtilityType {
			if err := writer.Write([]string{
				item.UtilityType,
				item.TotalConsumption.String(),
				item.Unit,
				strconv.Itoa(item.ConnectionCount),
			}); err != nil {
				return err
			}
		}
	}

	if !vis.Revenue {
		writer.Flush()
		return writer.Error()
	}
	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write([]string{"Utility Type", "Billed", "Collected", "Bills", "Collection Rate"}); err != nil {
		return err
	}
	for _, item := range summary.RevenueByUtilityType {
		if err := writer.Write([]string{
			item.UtilityType,
			formatAmount(item.BilledAmount),
			formatAmount(item.Collected),
			strconv.Itoa(item.BillCount),
			formatRate(calc.UtilityCollectionRate(item)),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 1, 64)
}
