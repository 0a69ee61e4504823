package billingapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utilitydesk/billing-console/internal/billing"
)

// rawRecord is one undecoded object from an API payload. Endpoints disagree on field names
// and casing, so every adapter reads through the alias-aware accessors below.
type rawRecord map[string]any

var listKeys = []string{"items", "data", "records", "results"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func decodeRecord(data json.RawMessage) (rawRecord, error) {
	if isNull(data) {
		return rawRecord{}, nil
	}
	var value any
	if err := decodeNumbers(data, &value); err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("billingapi: expected object, got %T", value)
	}
	return rawRecord(obj), nil
}

// decodeList accepts a bare array or a page object wrapping one.
func decodeList(data json.RawMessage) ([]rawRecord, error) {
	if isNull(data) {
		return nil, nil
	}
	var value any
	if err := decodeNumbers(data, &value); err != nil {
		return nil, err
	}
	return asList(value)
}

func asList(value any) ([]rawRecord, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]rawRecord, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, rawRecord(obj))
			}
		}
		return out, nil
	case map[string]any:
		page := rawRecord(v)
		for _, key := range listKeys {
			if inner, ok := page.lookup(key); ok {
				return asList(inner)
			}
		}
		return nil, fmt.Errorf("billingapi: page object without item list")
	default:
		return nil, fmt.Errorf("billingapi: expected list, got %T", value)
	}
}

func decodeNumbers(data json.RawMessage, dest *any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dest)
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// lookup finds key exactly, then case-insensitively.
func (r rawRecord) lookup(key string) (any, bool) {
	if v, ok := r[key]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func (r rawRecord) first(keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := r.lookup(key); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r rawRecord) str(keys ...string) string {
	v, ok := r.first(keys...)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case map[string]any:
		return rawRecord(val).str("name", "title")
	default:
		return ""
	}
}

func (r rawRecord) dec(keys ...string) decimal.Decimal {
	v, ok := r.first(keys...)
	if !ok {
		return decimal.Zero
	}
	var text string
	switch val := v.(type) {
	case json.Number:
		text = val.String()
	case string:
		text = strings.TrimSpace(val)
	default:
		return decimal.Zero
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (r rawRecord) integer(keys ...string) int {
	d := r.dec(keys...)
	if d.IsNegative() {
		return 0
	}
	return int(d.IntPart())
}

func (r rawRecord) boolean(keys ...string) (bool, bool) {
	v, ok := r.first(keys...)
	if !ok {
		return false, false
	}
	switch val := v.(type) {
	case bool:
		return val, true
	case json.Number:
		return val.String() != "0", true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes", "active":
			return true, true
		case "false", "0", "no", "inactive":
			return false, true
		}
	}
	return false, false
}

func (r rawRecord) timestamp(keys ...string) time.Time {
	text := r.str(keys...)
	if text == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (r rawRecord) list(keys ...string) []rawRecord {
	v, ok := r.first(keys...)
	if !ok {
		return nil
	}
	items, err := asList(v)
	if err != nil {
		return nil
	}
	return items
}

func adaptBill(r rawRecord) billing.Bill {
	return billing.Bill{
		ID:                 r.str("id", "billId"),
		BillNumber:         r.str("billNumber", "number"),
		ConsumerName:       r.str("consumerName", "customerName", "consumer"),
		UtilityType:        r.str("utilityType", "utilityTypeName", "utility"),
		UnitsConsumed:      r.dec("unitsConsumed", "consumption", "units"),
		TotalAmount:        r.dec("totalAmount", "amount", "billAmount"),
		OutstandingBalance: r.dec("outstandingBalance", "balanceAmount", "outstandingAmount", "balance"),
		Status:             r.str("status", "billStatus"),
		BillDate:           r.timestamp("billDate", "generatedDate", "createdAt", "issueDate"),
		DueDate:            r.timestamp("dueDate"),
	}
}

func adaptPayment(r rawRecord) billing.Payment {
	return billing.Payment{
		ID:           r.str("id", "paymentId"),
		BillNumber:   r.str("billNumber", "bill"),
		ConsumerName: r.str("consumerName", "customerName", "paidBy"),
		Amount:       r.dec("amount", "amountPaid", "paymentAmount"),
		Method:       r.str("paymentMethod", "method"),
		PaymentDate:  r.timestamp("paymentDate", "paidAt", "createdAt"),
	}
}

func adaptReading(r rawRecord) billing.Reading {
	return billing.Reading{
		ID:               r.str("id", "readingId"),
		ConnectionNumber: r.str("connectionNumber", "meterNumber", "connection"),
		UtilityType:      r.str("utilityType", "utilityTypeName", "utility"),
		ReadingValue:     r.dec("currentReading", "readingValue", "reading", "value"),
		UnitsConsumed:    r.dec("unitsConsumed", "consumption", "units"),
		ReadingDate:      r.timestamp("readingDate", "recordedAt", "createdAt"),
	}
}

func adaptConnection(r rawRecord) billing.Connection {
	return billing.Connection{
		ID:               r.str("id", "connectionId"),
		ConnectionNumber: r.str("connectionNumber", "meterNumber", "number"),
		ConsumerName:     r.str("consumerName", "customerName", "consumer"),
		UtilityType:      r.str("utilityType", "utilityTypeName", "utility"),
		Status:           r.str("status", "connectionStatus"),
		LastReading:      r.dec("lastReading", "lastReadingValue", "currentReading"),
	}
}

func adaptUser(r rawRecord) billing.User {
	return billing.User{
		ID:       r.str("id", "userId"),
		FullName: r.str("fullName", "name", "userName", "username"),
		Email:    r.str("email"),
		Role:     r.str("role", "roleName", "userRole"),
	}
}

func adaptUtilityType(r rawRecord) billing.UtilityType {
	active, ok := r.boolean("isActive", "active", "status")
	if !ok {
		active = true
	}
	return billing.UtilityType{
		ID:              r.str("id", "utilityTypeId"),
		Name:            r.str("name", "utilityTypeName"),
		Unit:            r.str("unit", "unitOfMeasure"),
		IsActive:        active,
		ConnectionCount: r.integer("connectionCount", "connectionsCount", "totalConnections"),
	}
}

func adaptTariffPlan(r rawRecord) billing.TariffPlan {
	active, ok := r.boolean("isActive", "active", "status")
	if !ok {
		active = true
	}
	return billing.TariffPlan{
		ID:              r.str("id", "tariffPlanId"),
		Name:            r.str("name", "planName"),
		UtilityTypeID:   r.str("utilityTypeId"),
		UtilityTypeName: r.str("utilityTypeName", "utilityType"),
		IsActive:        active,
	}
}

func adaptBillingCycle(r rawRecord) billing.BillingCycle {
	active, _ := r.boolean("isActive", "active", "status")
	return billing.BillingCycle{
		ID:        r.str("id", "billingCycleId"),
		Name:      r.str("name", "cycleName"),
		StartDate: r.timestamp("startDate", "from"),
		EndDate:   r.timestamp("endDate", "to"),
		IsActive:  active,
	}
}

func adaptSummary(r rawRecord) billing.DashboardSummary {
	summary := billing.EmptySummary()
	summary.TotalConsumers = r.integer("totalConsumers")
	summary.ActiveConnections = r.integer("activeConnections")
	summary.TotalBills = r.integer("totalBills")
	summary.PendingBills = r.integer("pendingBills")
	summary.OverdueBills = r.integer("overdueBills")
	summary.TotalRevenueThisMonth = r.dec("totalRevenueThisMonth", "revenueThisMonth")
	summary.TotalOutstanding = r.dec("totalOutstanding", "outstandingAmount")
	summary.TotalCollected = r.dec("totalCollected", "collectedAmount")
	summary.TotalBilled = r.dec("totalBilled", "billedAmount")

	for _, item := range r.list("consumptionByUtilityType", "consumptionByUtility") {
		summary.ConsumptionByUtilityType = append(summary.ConsumptionByUtilityType, billing.UtilityConsumption{
			UtilityType:      item.str("utilityType", "utilityTypeName", "name"),
			TotalConsumption: item.dec("totalConsumption", "consumption"),
			ConnectionCount:  item.integer("connectionCount", "connections"),
			Unit:             item.str("unit"),
		})
	}
	for _, item := range r.list("revenueByUtilityType", "revenueByUtility") {
		summary.RevenueByUtilityType = append(summary.RevenueByUtilityType, billing.UtilityRevenue{
			UtilityType:  item.str("utilityType", "utilityTypeName", "name"),
			BilledAmount: item.dec("billedAmount", "billed", "totalBilled"),
			Collected:    item.dec("collected", "collectedAmount", "totalCollected"),
			BillCount:    item.integer("billCount", "bills"),
		})
	}
	for _, item := range r.list("recentActivities", "activities") {
		summary.RecentActivities = append(summary.RecentActivities, billing.Activity{
			Type:        billing.ActivityType(strings.ToLower(item.str("type", "activityType"))),
			Description: item.str("description", "message"),
			Timestamp:   item.timestamp("timestamp", "createdAt", "date"),
		})
	}
	return summary
}

func adaptAll[T any](records []rawRecord, adapt func(rawRecord) T) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		out = append(out, adapt(r))
	}
	return out
}
