package paypropsync

import (
	"context"
	"time"

	"bitbucket.org/oakcrm/lettings_backend/models"
)

// LeaseMatcher finds the lease a financial row belongs to. Strategies
// run in order and the first hit wins:
//
//  1. direct lookup by external lease id, when the row carries one
//  2. leases on the property whose interval covers the transaction date
//  3. among those, the lease whose tenant matches the row's tenant id;
//     a supplied tenant id that matches no candidate is a no-match
//  4. with no tenant id, the most recently started covering lease
//
// A date no lease covers is a deliberate no-match: guessing across a
// void gap misattributes money, orphaning is recoverable later.
type LeaseMatcher struct {
	Leases LeaseStore
}

func NewLeaseMatcher(leases LeaseStore) *LeaseMatcher {
	return &LeaseMatcher{Leases: leases}
}

// Match resolves a lease for the given row attributes. propertyId is
// the local property id, zero when the property itself is unresolved.
// leasePaypropId and tenantPaypropId may be empty.
func (m *LeaseMatcher) Match(ctx context.Context, agencyId string, propertyId uint, leasePaypropId, tenantPaypropId string, txnDate time.Time) (MatchResult, error) {
	if leasePaypropId != "" {
		lease, err := m.Leases.LeaseByPaypropId(ctx, agencyId, leasePaypropId)
		if err != nil {
			return MatchResult{}, err
		}
		if lease == nil {
			// An explicit reference that resolves to nothing is a
			// no-match, not a cue to start guessing.
			return MatchResult{}, nil
		}
		return MatchResult{LeaseId: lease.ID, Strategy: MatchStrategyDirect, Matched: true}, nil
	}

	if propertyId == 0 {
		return MatchResult{}, nil
	}

	leases, err := m.Leases.LeasesForProperty(ctx, agencyId, propertyId)
	if err != nil {
		return MatchResult{}, err
	}

	var candidates []models.Lease
	for _, lease := range leases {
		if lease.Covers(txnDate) {
			candidates = append(candidates, lease)
		}
	}
	if len(candidates) == 0 {
		return MatchResult{}, nil
	}

	// A supplied tenant id is authoritative: match that tenant's lease
	// or nothing. Attributing income to another tenant's lease is
	// worse than leaving the row unlinked.
	if tenantPaypropId != "" {
		for _, lease := range candidates {
			if lease.Tenant != nil && lease.Tenant.PaypropId != nil && *lease.Tenant.PaypropId == tenantPaypropId {
				return MatchResult{LeaseId: lease.ID, Strategy: MatchStrategyTenant, Matched: true}, nil
			}
		}
		return MatchResult{}, nil
	}

	if len(candidates) == 1 {
		return MatchResult{LeaseId: candidates[0].ID, Strategy: MatchStrategyInterval, Matched: true}, nil
	}

	best := candidates[0]
	for _, lease := range candidates[1:] {
		if lease.StartDate.After(best.StartDate) {
			best = lease
			continue
		}
		if lease.StartDate.Equal(best.StartDate) && lease.ID < best.ID {
			best = lease
		}
	}
	return MatchResult{LeaseId: best.ID, Strategy: MatchStrategyMostRecent, Matched: true}, nil
}
