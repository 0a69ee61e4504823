package billingapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/utilitydesk/billing-console/internal/billing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	return client
}

func TestRecentBillsSendsPagingAndToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bills", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		q := r.URL.Query()
		require.Equal(t, "1", q.Get("pageNumber"))
		require.Equal(t, "10", q.Get("pageSize"))
		require.Equal(t, "CreatedAt", q.Get("sortBy"))
		require.Equal(t, "true", q.Get("sortDescending"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"items":[
			{"id":7,"billNumber":"B-7","utilityTypeName":"Electricity","unitsConsumed":"120.5",
			 "amount":1500,"balanceAmount":"250.25","status":"Pending","createdAt":"2025-03-04T10:00:00"}
		],"totalCount":1}}`))
	})

	bills, err := client.WithToken("tok-1").RecentBills(context.Background(), billing.PageQuery{Page: 1, PageSize: 10, SortBy: "CreatedAt", SortDesc: true})
	require.NoError(t, err)
	require.Len(t, bills, 1)
	bill := bills[0]
	require.Equal(t, "7", bill.ID)
	require.Equal(t, "Electricity", bill.UtilityType)
	require.True(t, bill.UnitsConsumed.Equal(decimal.RequireFromString("120.5")))
	require.True(t, bill.TotalAmount.Equal(decimal.NewFromInt(1500)))
	require.True(t, bill.OutstandingBalance.Equal(decimal.RequireFromString("250.25")))
	require.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), bill.BillDate)
}

func TestFailureEnvelopeBecomesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"data":null,"message":"Reports service unavailable"}`))
	})

	_, err := client.DashboardSummary(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "Reports service unavailable", MessageFrom(err))
}

func TestNon2xxWithoutEnvelopeUsesDefaultMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.MyBills(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Equal(t, DefaultErrorMessage, MessageFrom(err))
}

func TestDashboardSummaryAdaptsNestedLists(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{
			"TotalConsumers":12,"activeConnections":"9","totalBilled":1000,"totalCollected":250,
			"consumptionByUtilityType":[{"utilityType":"Water","totalConsumption":30.5,"connectionCount":3,"unit":"KL"}],
			"revenueByUtilityType":[{"utilityTypeName":"Water","billed":"400","collectedAmount":100,"billCount":4}],
			"recentActivities":[{"type":"Payment","description":"Paid","timestamp":"2025-03-01T08:00:00Z"}]
		}}`))
	})

	summary, err := client.DashboardSummary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, summary.TotalConsumers)
	require.Equal(t, 9, summary.ActiveConnections)
	require.True(t, summary.TotalBilled.Equal(decimal.NewFromInt(1000)))
	require.Len(t, summary.ConsumptionByUtilityType, 1)
	require.Equal(t, "KL", summary.ConsumptionByUtilityType[0].Unit)
	require.Len(t, summary.RevenueByUtilityType, 1)
	require.True(t, summary.RevenueByUtilityType[0].BilledAmount.Equal(decimal.NewFromInt(400)))
	require.Len(t, summary.RecentActivities, 1)
	require.Equal(t, billing.ActivityPayment, summary.RecentActivities[0].Type)
}

func TestNullDataYieldsEmptyList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":null}`))
	})

	cycles, err := client.BillingCycles(context.Background())
	require.NoError(t, err)
	require.Empty(t, cycles)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ", nil)
	require.Error(t, err)
}
