package billingapi

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDecodeListAcceptsBareArrayAndPageObject(t *testing.T) {
	bare, err := decodeList(json.RawMessage(`[{"id":1},{"id":2}]`))
	require.NoError(t, err)
	require.Len(t, bare, 2)

	paged, err := decodeList(json.RawMessage(`{"Data":[{"id":1}],"totalPages":3}`))
	require.NoError(t, err)
	require.Len(t, paged, 1)

	_, err = decodeList(json.RawMessage(`{"totalPages":3}`))
	require.Error(t, err)
}

func TestAdaptConnectionAliases(t *testing.T) {
	records, err := decodeList(json.RawMessage(`[
		{"ConnectionNumber":"C-1","utilityType":{"id":3,"name":"Natural Gas"},"Status":"ACTIVE","lastReadingValue":"88.75"}
	]`))
	require.NoError(t, err)
	conn := adaptConnection(records[0])
	require.Equal(t, "C-1", conn.ConnectionNumber)
	require.Equal(t, "Natural Gas", conn.UtilityType)
	require.Equal(t, "ACTIVE", conn.Status)
	require.True(t, conn.LastReading.Equal(decimal.RequireFromString("88.75")))
}

func TestAdaptUtilityTypeActiveFlag(t *testing.T) {
	records, err := decodeList(json.RawMessage(`[
		{"id":"u1","name":"Water","status":"Inactive","connectionsCount":4},
		{"id":"u2","name":"Electricity","connectionCount":"10"}
	]`))
	require.NoError(t, err)

	water := adaptUtilityType(records[0])
	require.False(t, water.IsActive)
	require.Equal(t, 4, water.ConnectionCount)

	electricity := adaptUtilityType(records[1])
	require.True(t, electricity.IsActive)
	require.Equal(t, 10, electricity.ConnectionCount)
}

func TestAdaptMalformedNumbersFallBackToZero(t *testing.T) {
	record, err := decodeRecord(json.RawMessage(`{"totalAmount":"n/a","unitsConsumed":true}`))
	require.NoError(t, err)
	bill := adaptBill(record)
	require.True(t, bill.TotalAmount.IsZero())
	require.True(t, bill.UnitsConsumed.IsZero())
	require.True(t, bill.BillDate.IsZero())
}
