// Package dashboard assembles the role-scoped dashboard summary from the billing API
// collaborators and keeps it fresh for live views.
package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/utilitydesk/billing-console/internal/billing"
	"github.com/utilitydesk/billing-console/internal/billingapi"
)

// ReportsSource serves the server-side dashboard summary.
type ReportsSource interface {
	DashboardSummary(ctx context.Context) (billing.DashboardSummary, error)
}

// BillsSource lists bills.
type BillsSource interface {
	RecentBills(ctx context.Context, q billing.PageQuery) ([]billing.Bill, error)
	MyBills(ctx context.Context) ([]billing.Bill, error)
}

// PaymentsSource lists payments.
type PaymentsSource interface {
	RecentPayments(ctx context.Context, q billing.PageQuery) ([]billing.Payment, error)
	MyPayments(ctx context.Context) ([]billing.Payment, error)
}

// ReadingsSource lists meter readings.
type ReadingsSource interface {
	RecentReadings(ctx context.Context, q billing.PageQuery) ([]billing.Reading, error)
}

// ConnectionsSource lists connections.
type ConnectionsSource interface {
	Connections(ctx context.Context, q billing.PageQuery) ([]billing.Connection, error)
	MyConnections(ctx context.Context) ([]billing.Connection, error)
}

// UsersSource lists console users.
type UsersSource interface {
	Users(ctx context.Context, q billing.PageQuery) ([]billing.User, error)
}

// ReferenceSource lists slowly changing reference data.
type ReferenceSource interface {
	UtilityTypes(ctx context.Context) ([]billing.UtilityType, error)
	TariffPlans(ctx context.Context) ([]billing.TariffPlan, error)
	BillingCycles(ctx context.Context) ([]billing.BillingCycle, error)
}

// Sources is satisfied by a client that can serve every collaborator.
type Sources interface {
	ReportsSource
	BillsSource
	PaymentsSource
	ReadingsSource
	ConnectionsSource
	UsersSource
	ReferenceSource
}

// Collaborators binds each collaborator contract to an implementation.
type Collaborators struct {
	Reports     ReportsSource
	Bills       BillsSource
	Payments    PaymentsSource
	Readings    ReadingsSource
	Connections ConnectionsSource
	Users       UsersSource
	Reference   ReferenceSource
}

// CollaboratorsFrom binds every contract to s.
func CollaboratorsFrom(s Sources) Collaborators {
	return Collaborators{Reports: s, Bills: s, Payments: s, Readings: s, Connections: s, Users: s, Reference: s}
}

// Mode distinguishes background refreshes from ones the user asked for.
type Mode int

const (
	ModeSilent Mode = iota
	ModeExplicit
)

func (m Mode) String() string {
	if m == ModeExplicit {
		return "explicit"
	}
	return "silent"
}

// Reference holds the auxiliary lists derived metrics join against.
type Reference struct {
	UtilityTypes  []billing.UtilityType  `json:"utilityTypes"`
	TariffPlans   []billing.TariffPlan   `json:"tariffPlans"`
	BillingCycles []billing.BillingCycle `json:"billingCycles"`
	Users         []billing.User         `json:"users"`
}

// Snapshot is the immutable result of one aggregation cycle.
type Snapshot struct {
	CycleID         uuid.UUID
	Role            Role
	Mode            Mode
	Summary         billing.DashboardSummary
	Reference       Reference
	PendingReadings int
	CompletedAt     time.Time
}

// Failure describes a failed authoritative call.
type Failure struct {
	Source  string
	Message string
}

// Outcome pairs the snapshot with the failure of its authoritative call, if any.
type Outcome struct {
	Snapshot *Snapshot
	Failure  *Failure
}

// Aggregator fans out to the collaborators of a role's plan and merges the results.
type Aggregator struct {
	sources Collaborators
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewAggregator constructs an Aggregator.
func NewAggregator(sources Collaborators, logger *slog.Logger, metrics *Metrics) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{sources: sources, logger: logger, metrics: metrics, now: time.Now}
}

// WithNow overrides the aggregator clock for testing.
func (a *Aggregator) WithNow(fn func() time.Time) {
	if fn != nil {
		a.now = fn
	}
}

type cycleResults struct {
	summary       Result[billing.DashboardSummary]
	bills         Result[[]billing.Bill]
	payments      Result[[]billing.Payment]
	readings      Result[[]billing.Reading]
	connections   Result[[]billing.Connection]
	users         Result[[]billing.User]
	utilityTypes  Result[[]billing.UtilityType]
	tariffPlans   Result[[]billing.TariffPlan]
	billingCycles Result[[]billing.BillingCycle]
}

// Aggregate runs one cycle. It never fails: collaborator errors are replaced by defaults and
// the authoritative failure, if any, is reported in the Outcome.
func (a *Aggregator) Aggregate(ctx context.Context, rc RoleContext, mode Mode) Outcome {
	start := a.now()
	cycleID := uuid.New()
	logger := a.logger.With(slog.String("cycle", cycleID.String()), slog.String("role", string(rc.Role)), slog.String("mode", mode.String()))
	onFail := func(source string, err error) {
		logger.Warn("dashboard source failed", slog.String("source", source), slog.Any("error", err))
		a.metrics.sourceFailed(source)
	}

	var res cycleResults
	var g errgroup.Group
	plan := rc.Plan
	if plan.Staff {
		g.Go(func() error {
			res.summary = fetch(ctx, SourceReports, a.sources.Reports.DashboardSummary, billing.EmptySummary(), onFail)
			return nil
		})
		g.Go(func() error {
			res.bills = fetch(ctx, SourceBills, func(ctx context.Context) ([]billing.Bill, error) {
				return a.sources.Bills.RecentBills(ctx, plan.Bills)
			}, []billing.Bill{}, onFail)
			return nil
		})
		g.Go(func() error {
			res.payments = fetch(ctx, SourcePayments, func(ctx context.Context) ([]billing.Payment, error) {
				return a.sources.Payments.RecentPayments(ctx, plan.Payments)
			}, []billing.Payment{}, onFail)
			return nil
		})
		g.Go(func() error {
			res.readings = fetch(ctx, SourceReadings, func(ctx context.Context) ([]billing.Reading, error) {
				return a.sources.Readings.RecentReadings(ctx, plan.Readings)
			}, []billing.Reading{}, onFail)
			return nil
		})
		g.Go(func() error {
			res.connections = fetch(ctx, SourceConnections, func(ctx context.Context) ([]billing.Connection, error) {
				return a.sources.Connections.Connections(ctx, plan.Connections)
			}, []billing.Connection{}, onFail)
			return nil
		})
	} else {
		g.Go(func() error {
			res.bills = fetch(ctx, SourceMyBills, a.sources.Bills.MyBills, []billing.Bill{}, onFail)
			return nil
		})
		g.Go(func() error {
			res.payments = fetch(ctx, SourceMyPayments, a.sources.Payments.MyPayments, []billing.Payment{}, onFail)
			return nil
		})
		g.Go(func() error {
			res.connections = fetch(ctx, SourceMyConnections, a.sources.Connections.MyConnections, []billing.Connection{}, onFail)
			return nil
		})
	}
	if plan.Users {
		g.Go(func() error {
			res.users = fetch(ctx, SourceUsers, func(ctx context.Context) ([]billing.User, error) {
				return a.sources.Users.Users(ctx, plan.UsersQuery)
			}, []billing.User{}, onFail)
			return nil
		})
	}
	if plan.UtilityTypes {
		g.Go(func() error {
			res.utilityTypes = fetch(ctx, SourceUtilityTypes, a.sources.Reference.UtilityTypes, []billing.UtilityType{}, onFail)
			return nil
		})
	}
	if plan.TariffPlans {
		g.Go(func() error {
			res.tariffPlans = fetch(ctx, SourceTariffPlans, a.sources.Reference.TariffPlans, []billing.TariffPlan{}, onFail)
			return nil
		})
	}
	if plan.BillingCycles {
		g.Go(func() error {
			res.billingCycles = fetch(ctx, SourceBillingCycles, a.sources.Reference.BillingCycles, []billing.BillingCycle{}, onFail)
			return nil
		})
	}
	_ = g.Wait()

	now := a.now()
	snapshot := &Snapshot{
		CycleID: cycleID,
		Role:    rc.Role,
		Mode:    mode,
		Reference: Reference{
			UtilityTypes:  nonNil(res.utilityTypes.Value),
			TariffPlans:   nonNil(res.tariffPlans.Value),
			BillingCycles: nonNil(res.billingCycles.Value),
			Users:         nonNil(res.users.Value),
		},
		CompletedAt: now,
	}
	var failure *Failure
	if plan.Staff {
		snapshot.Summary = mergeStaff(res)
		// The window depends on the billing cycles, so this walk runs after the join.
		window := currentCycleWindow(snapshot.Reference.BillingCycles, now)
		inWindow := fetch(ctx, SourceCycleReadings, func(ctx context.Context) ([]billing.Reading, error) {
			return readingsSince(ctx, a.sources.Readings, plan.CycleReadings, window.start)
		}, []billing.Reading{}, onFail)
		snapshot.PendingReadings = pendingReadings(res.connections.Value, inWindow.Value, window)
		failure = failureOf(SourceReports, res.summary)
	} else {
		snapshot.Summary = mergeConsumer(res, now)
		failure = firstFailure(
			sourceResult{SourceMyBills, res.bills.Failed, res.bills.Err},
			sourceResult{SourceMyConnections, res.connections.Failed, res.connections.Err},
			sourceResult{SourceMyPayments, res.payments.Failed, res.payments.Err},
		)
	}

	a.metrics.cycleDone(rc.Role, mode, failure != nil, now.Sub(start))
	if failure != nil {
		logger.Warn("dashboard aggregation degraded", slog.String("source", failure.Source), slog.String("message", failure.Message))
	} else {
		logger.Debug("dashboard aggregation complete", slog.Duration("elapsed", now.Sub(start)))
	}
	return Outcome{Snapshot: snapshot, Failure: failure}
}

// maxCycleReadingPages bounds the readings walk of one cycle.
const maxCycleReadingPages = 25

// readingsSince pages through readings newest first until a page reaches back past since,
// comes back short, or the page limit is hit.
func readingsSince(ctx context.Context, source ReadingsSource, q billing.PageQuery, since time.Time) ([]billing.Reading, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	var out []billing.Reading
	for range maxCycleReadingPages {
		page, err := source.RecentReadings(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if q.PageSize <= 0 || len(page) < q.PageSize || page[len(page)-1].ReadingDate.Before(since) {
			break
		}
		q.Page++
	}
	return out, nil
}

type sourceResult struct {
	source string
	failed bool
	err    error
}

func failureOf[T any](source string, res Result[T]) *Failure {
	if !res.Failed {
		return nil
	}
	return &Failure{Source: source, Message: billingapi.MessageFrom(res.Err)}
}

func firstFailure(results ...sourceResult) *Failure {
	for _, r := range results {
		if r.failed {
			return &Failure{Source: r.source, Message: billingapi.MessageFrom(r.err)}
		}
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
