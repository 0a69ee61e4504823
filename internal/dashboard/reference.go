package dashboard

import (
	"context"
	"fmt"

	"github.com/utilitydesk/billing-console/internal/billing"
)

const (
	refUtilityTypes  = "utility-types"
	refTariffPlans   = "tariff-plans"
	refBillingCycles = "billing-cycles"
)

// CachedReference serves reference data through the versioned cache.
type CachedReference struct {
	source ReferenceSource
	cache  *Cache
}

// NewCachedReference wraps source with cache.
func NewCachedReference(source ReferenceSource, cache *Cache) *CachedReference {
	return &CachedReference{source: source, cache: cache}
}

// UtilityTypes implements ReferenceSource.
func (r *CachedReference) UtilityTypes(ctx context.Context) ([]billing.UtilityType, error) {
	return cached(ctx, r.cache, refUtilityTypes, r.source.UtilityTypes)
}

// TariffPlans implements ReferenceSource.
func (r *CachedReference) TariffPlans(ctx context.Context) ([]billing.TariffPlan, error) {
	return cached(ctx, r.cache, refTariffPlans, r.source.TariffPlans)
}

// BillingCycles implements ReferenceSource.
func (r *CachedReference) BillingCycles(ctx context.Context) ([]billing.BillingCycle, error) {
	return cached(ctx, r.cache, refBillingCycles, r.source.BillingCycles)
}

// Warm invalidates the cache and repopulates every reference list.
func (r *CachedReference) Warm(ctx context.Context) (int64, error) {
	ver, err := r.cache.Bump(ctx)
	if err != nil {
		return 0, fmt.Errorf("dashboard: bump reference cache: %w", err)
	}
	if _, err := r.UtilityTypes(ctx); err != nil {
		return ver, fmt.Errorf("dashboard: warm %s: %w", refUtilityTypes, err)
	}
	if _, err := r.TariffPlans(ctx); err != nil {
		return ver, fmt.Errorf("dashboard: warm %s: %w", refTariffPlans, err)
	}
	if _, err := r.BillingCycles(ctx); err != nil {
		return ver, fmt.Errorf("dashboard: warm %s: %w", refBillingCycles, err)
	}
	return ver, nil
}
