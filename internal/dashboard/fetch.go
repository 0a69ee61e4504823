package dashboard

import (
	"context"
	"fmt"
)

// Collaborator source names, used in logs, metrics and failures.
const (
	SourceReports       = "reports-summary"
	SourceBills         = "bills"
	SourcePayments      = "payments"
	SourceReadings      = "readings"
	SourceCycleReadings = "cycle-readings"
	SourceConnections   = "connections"
	SourceMyBills       = "my-bills"
	SourceMyPayments    = "my-payments"
	SourceMyConnections = "my-connections"
	SourceUsers         = "users"
	SourceUtilityTypes  = "utility-types"
	SourceTariffPlans   = "tariff-plans"
	SourceBillingCycles = "billing-cycles"
)

// Result is the tagged outcome of one collaborator call. A failed call carries its
// fallback in Value so merging never has to branch on nil.
type Result[T any] struct {
	Value  T
	Err    error
	Failed bool
}

// fetch runs call and converts any error or panic into a failed Result holding fallback.
func fetch[T any](ctx context.Context, source string, call func(context.Context) (T, error), fallback T, onFail func(string, error)) (res Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result[T]{Value: fallback, Err: fmt.Errorf("dashboard: %s panicked: %v", source, rec), Failed: true}
			if onFail != nil {
				onFail(source, res.Err)
			}
		}
	}()
	value, err := call(ctx)
	if err != nil {
		if onFail != nil {
			onFail(source, err)
		}
		return Result[T]{Value: fallback, Err: err, Failed: true}
	}
	return Result[T]{Value: value}
}
