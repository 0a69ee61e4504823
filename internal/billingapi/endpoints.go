package billingapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/utilitydesk/billing-console/internal/billing"
)

const (
	pathDashboardSummary = "/api/reports/dashboard-summary"
	pathBills            = "/api/bills"
	pathMyBills          = "/api/bills/my-bills"
	pathPayments         = "/api/payments"
	pathMyPayments       = "/api/payments/my-payments"
	pathReadings         = "/api/meter-readings"
	pathConnections      = "/api/connections"
	pathMyConnections    = "/api/connections/my-connections"
	pathUsers            = "/api/users"
	pathUtilityTypes     = "/api/utility-types"
	pathTariffPlans      = "/api/tariff-plans"
	pathBillingCycles    = "/api/billing-cycles"
)

// DashboardSummary fetches the server-side reports summary.
func (c *Client) DashboardSummary(ctx context.Context) (billing.DashboardSummary, error) {
	data, err := c.get(ctx, pathDashboardSummary, nil)
	if err != nil {
		return billing.DashboardSummary{}, err
	}
	record, err := decodeRecord(data)
	if err != nil {
		return billing.DashboardSummary{}, fmt.Errorf("billingapi: decode dashboard summary: %w", err)
	}
	return adaptSummary(record), nil
}

// RecentBills lists one page of bills.
func (c *Client) RecentBills(ctx context.Context, q billing.PageQuery) ([]billing.Bill, error) {
	return fetchList(ctx, c, pathBills, pageValues(q), adaptBill)
}

// MyBills lists every bill of the authenticated consumer.
func (c *Client) MyBills(ctx context.Context) ([]billing.Bill, error) {
	return fetchList(ctx, c, pathMyBills, nil, adaptBill)
}

// RecentPayments lists one page of payments.
func (c *Client) RecentPayments(ctx context.Context, q billing.PageQuery) ([]billing.Payment, error) {
	return fetchList(ctx, c, pathPayments, pageValues(q), adaptPayment)
}

// MyPayments lists every payment of the authenticated consumer.
func (c *Client) MyPayments(ctx context.Context) ([]billing.Payment, error) {
	return fetchList(ctx, c, pathMyPayments, nil, adaptPayment)
}

// RecentReadings lists one page of meter readings.
func (c *Client) RecentReadings(ctx context.Context, q billing.PageQuery) ([]billing.Reading, error) {
	return fetchList(ctx, c, pathReadings, pageValues(q), adaptReading)
}

// Connections lists one page of connections.
func (c *Client) Connections(ctx context.Context, q billing.PageQuery) ([]billing.Connection, error) {
	return fetchList(ctx, c, pathConnections, pageValues(q), adaptConnection)
}

// MyConnections lists every connection of the authenticated consumer.
func (c *Client) MyConnections(ctx context.Context) ([]billing.Connection, error) {
	return fetchList(ctx, c, pathMyConnections, nil, adaptConnection)
}

// Users lists one page of users.
func (c *Client) Users(ctx context.Context, q billing.PageQuery) ([]billing.User, error) {
	return fetchList(ctx, c, pathUsers, pageValues(q), adaptUser)
}

// UtilityTypes lists all utility types.
func (c *Client) UtilityTypes(ctx context.Context) ([]billing.UtilityType, error) {
	return fetchList(ctx, c, pathUtilityTypes, nil, adaptUtilityType)
}

// TariffPlans lists all tariff plans.
func (c *Client) TariffPlans(ctx context.Context) ([]billing.TariffPlan, error) {
	return fetchList(ctx, c, pathTariffPlans, nil, adaptTariffPlan)
}

// BillingCycles lists all billing cycles.
func (c *Client) BillingCycles(ctx context.Context) ([]billing.BillingCycle, error) {
	return fetchList(ctx, c, pathBillingCycles, nil, adaptBillingCycle)
}

func fetchList[T any](ctx context.Context, c *Client, endpoint string, query url.Values, adapt func(rawRecord) T) ([]T, error) {
	data, err := c.get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}
	records, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("billingapi: decode %s: %w", endpoint, err)
	}
	return adaptAll(records, adapt), nil
}

func pageValues(q billing.PageQuery) url.Values {
	values := url.Values{}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	values.Set("pageNumber", strconv.Itoa(page))
	if q.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.SortBy != "" {
		values.Set("sortBy", q.SortBy)
		values.Set("sortDescending", strconv.FormatBool(q.SortDesc))
	}
	return values
}
