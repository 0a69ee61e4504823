package dashboard

import (
	"strings"

	"github.com/utilitydesk/billing-console/internal/billing"
)

// Role is the console role a dashboard is assembled for.
type Role string

const (
	RoleAdmin          Role = "Admin"
	RoleBillingOfficer Role = "BillingOfficer"
	RoleAccountOfficer Role = "AccountOfficer"
	RoleConsumer       Role = "Consumer"
)

// IsStaff reports whether the role sees organisation-wide data.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleBillingOfficer || r == RoleAccountOfficer
}

// Metric names a group of dashboard figures a role may see.
type Metric string

const (
	MetricCollection       Metric = "collection"
	MetricRevenue          Metric = "revenue"
	MetricConsumption      Metric = "consumption"
	MetricWorkflow         Metric = "workflow"
	MetricActivity         Metric = "activity"
	MetricConsumerCount    Metric = "consumerCount"
	MetricOwnOutstanding   Metric = "ownOutstanding"
	MetricUserDistribution Metric = "userDistribution"
	MetricSystemStats      Metric = "systemStats"
)

// MetricSet is the ordered set of metrics visible to a role.
type MetricSet []Metric

// Has reports whether m is part of the set.
func (s MetricSet) Has(m Metric) bool {
	for _, candidate := range s {
		if candidate == m {
			return true
		}
	}
	return false
}

// QueryPlan lists the collaborator calls an aggregation cycle issues for a role.
type QueryPlan struct {
	Staff         bool
	Bills         billing.PageQuery
	Payments      billing.PageQuery
	Readings      billing.PageQuery
	CycleReadings billing.PageQuery
	Connections   billing.PageQuery
	UtilityTypes  bool
	TariffPlans   bool
	BillingCycles bool
	Users         bool
	UsersQuery    billing.PageQuery
}

// RoleContext is resolved once per session and passed into every aggregation.
type RoleContext struct {
	Role    Role
	Plan    QueryPlan
	Metrics MetricSet
}

// ResolveRole maps the principal's role string onto a RoleContext. Matching ignores case,
// spaces, underscores and hyphens; anything unrecognised is treated as a consumer.
func ResolveRole(raw string) RoleContext {
	role := normaliseRole(raw)
	return RoleContext{Role: role, Plan: PlanFor(role), Metrics: MetricsFor(role)}
}

func normaliseRole(raw string) Role {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(raw)))
	switch key {
	case "admin", "administrator":
		return RoleAdmin
	case "billingofficer":
		return RoleBillingOfficer
	case "accountofficer":
		return RoleAccountOfficer
	default:
		return RoleConsumer
	}
}

var (
	staffBills       = billing.PageQuery{Page: 1, PageSize: 10, SortBy: "CreatedAt", SortDesc: true}
	staffPayments    = billing.PageQuery{Page: 1, PageSize: 5, SortBy: "PaymentDate", SortDesc: true}
	staffReadings    = billing.PageQuery{Page: 1, PageSize: 10, SortBy: "ReadingDate", SortDesc: true}
	cycleReadings    = billing.PageQuery{Page: 1, PageSize: 200, SortBy: "ReadingDate", SortDesc: true}
	staffConnections = billing.PageQuery{Page: 1, PageSize: 100}
	allUsers         = billing.PageQuery{Page: 1, PageSize: 500}
)

// PlanFor returns the collaborator calls issued for role.
func PlanFor(role Role) QueryPlan {
	if !role.IsStaff() {
		return QueryPlan{}
	}
	plan := QueryPlan{
		Staff:         true,
		Bills:         staffBills,
		Payments:      staffPayments,
		Readings:      staffReadings,
		CycleReadings: cycleReadings,
		Connections:   staffConnections,
	}
	switch role {
	case RoleAdmin:
		plan.UtilityTypes, plan.TariffPlans, plan.BillingCycles = true, true, true
		plan.Users, plan.UsersQuery = true, allUsers
	case RoleBillingOfficer:
		plan.UtilityTypes, plan.TariffPlans, plan.BillingCycles = true, true, true
	}
	return plan
}

// MetricsFor returns the metric groups visible to role.
func MetricsFor(role Role) MetricSet {
	switch role {
	case RoleAdmin:
		return MetricSet{MetricCollection, MetricRevenue, MetricConsumption, MetricWorkflow, MetricActivity, MetricConsumerCount, MetricUserDistribution, MetricSystemStats}
	case RoleBillingOfficer:
		return MetricSet{MetricCollection, MetricRevenue, MetricConsumption, MetricWorkflow, MetricActivity}
	case RoleAccountOfficer:
		return MetricSet{MetricConsumption, MetricWorkflow, MetricActivity, MetricConsumerCount}
	default:
		return MetricSet{MetricConsumption, MetricOwnOutstanding, MetricActivity}
	}
}

// SummaryVisibility marks which summary figures beyond the bill counts a role may see.
type SummaryVisibility struct {
	Consumers   bool
	Revenue     bool
	Collection  bool
	Outstanding bool
	Consumption bool
	Activity    bool
}

// Visibility derives the summary figures exposed by the set. Consumers see their own
// billed, paid and outstanding amounts.
func (s MetricSet) Visibility() SummaryVisibility {
	own := s.Has(MetricOwnOutstanding)
	return SummaryVisibility{
		Consumers:   s.Has(MetricConsumerCount),
		Revenue:     s.Has(MetricRevenue),
		Collection:  s.Has(MetricCollection) || own,
		Outstanding: s.Has(MetricRevenue) || own,
		Consumption: s.Has(MetricConsumption),
		Activity:    s.Has(MetricActivity),
	}
}
