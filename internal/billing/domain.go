// Package billing holds the normalised record shapes exchanged with the billing API and the
// dashboard summary assembled from them.
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill statuses reported by the billing API.
const (
	BillStatusPaid    = "Paid"
	BillStatusOverdue = "Overdue"
)

// ActivityType labels an entry of the recent activity feed.
type ActivityType string

const (
	ActivityBill    ActivityType = "bill"
	ActivityPayment ActivityType = "payment"
	ActivityReading ActivityType = "reading"
)

// MaxRecentActivities caps the activity feed.
const MaxRecentActivities = 10

// Bill is a generated bill for a connection.
type Bill struct {
	ID                 string
	BillNumber         string
	ConsumerName       string
	UtilityType        string
	UnitsConsumed      decimal.Decimal
	TotalAmount        decimal.Decimal
	OutstandingBalance decimal.Decimal
	Status             string
	BillDate           time.Time
	DueDate            time.Time
}

// Payment is a payment received against a bill.
type Payment struct {
	ID           string
	BillNumber   string
	ConsumerName string
	Amount       decimal.Decimal
	Method       string
	PaymentDate  time.Time
}

// Reading is a meter reading captured for a connection.
type Reading struct {
	ID               string
	ConnectionNumber string
	UtilityType      string
	ReadingValue     decimal.Decimal
	UnitsConsumed    decimal.Decimal
	ReadingDate      time.Time
}

// Connection is a consumer's service connection for one utility type.
type Connection struct {
	ID               string
	ConnectionNumber string
	ConsumerName     string
	UtilityType      string
	Status           string
	LastReading      decimal.Decimal
}

// User is a console or consumer account.
type User struct {
	ID       string
	FullName string
	Email    string
	Role     string
}

// UtilityType is a metered service offered by the business.
type UtilityType struct {
	ID              string
	Name            string
	Unit            string
	IsActive        bool
	ConnectionCount int
}

// TariffPlan prices consumption for a utility type.
type TariffPlan struct {
	ID              string
	Name            string
	UtilityTypeID   string
	UtilityTypeName string
	IsActive        bool
}

// BillingCycle is a billing period window.
type BillingCycle struct {
	ID        string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
}

// Contains reports whether t falls inside the cycle window, both ends inclusive.
func (c BillingCycle) Contains(t time.Time) bool {
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return false
	}
	return !t.Before(c.StartDate) && !t.After(c.EndDate)
}

// PageQuery describes a paginated, sorted list request.
type PageQuery struct {
	Page     int
	PageSize int
	SortBy   string
	SortDesc bool
}
