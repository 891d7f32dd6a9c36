package paypropsync

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"bitbucket.org/oakcrm/lettings_backend/config"
	"bitbucket.org/oakcrm/lettings_backend/models"
	"bitbucket.org/oakcrm/lettings_backend/utils"
)

// EntityFetcher is the slice of the external API the resolver needs:
// one bulk export per entity kind, plus a targeted fetch for records
// the bulk export misses.
type EntityFetcher interface {
	FetchAllEntities(ctx context.Context, kind models.EntityKind) (map[string]json.RawMessage, error)
	FetchEntityById(ctx context.Context, kind models.EntityKind, id string) (json.RawMessage, bool, error)
}

// OrphanResolver backfills local rows for external ids that ledger
// rows reference but no entity table contains. Each resolution is its
// own write: a bad record is recorded and skipped, never allowed to
// stall the rest of the pass.
type OrphanResolver struct {
	AgencyId     string
	Transactions TransactionStore
	Entities     EntityStore
	Fetcher      EntityFetcher
}

// Resolve runs one pass for the given entity kind and reports counts
// plus the ids it could not resolve. It returns an error only when the
// pass as a whole cannot run, e.g. the export endpoint is unreachable.
func (r *OrphanResolver) Resolve(ctx context.Context, kind models.EntityKind) (ResolutionResult, error) {
	result := ResolutionResult{Kind: string(kind)}

	orphanIds, err := r.Transactions.OrphanEntityRefs(ctx, r.AgencyId, kind)
	if err != nil {
		return result, err
	}
	result.Orphaned = len(orphanIds)
	if len(orphanIds) == 0 {
		return result, nil
	}

	bulk, err := r.Fetcher.FetchAllEntities(ctx, kind)
	if err != nil {
		return result, err
	}

	for _, id := range orphanIds {
		raw, ok := bulk[id]
		if !ok {
			fetched, found, fetchErr := r.Fetcher.FetchEntityById(ctx, kind, id)
			if fetchErr != nil {
				result.Failed++
				result.FailedIds = append(result.FailedIds, id)
				config.LogError(config.GetLogger(), "paypropsync", "Resolve",
					"targeted fetch for orphaned "+string(kind), id, fetchErr)
				continue
			}
			if !found {
				result.Failed++
				result.FailedIds = append(result.FailedIds, id)
				continue
			}
			raw = fetched
		}

		if err := r.persist(ctx, kind, id, raw); err != nil {
			result.Failed++
			result.FailedIds = append(result.FailedIds, id)
			config.LogError(config.GetLogger(), "paypropsync", "Resolve",
				"persisting resolved "+string(kind), id, err)
			continue
		}
		result.Resolved++
	}

	return result, nil
}

func (r *OrphanResolver) persist(ctx context.Context, kind models.EntityKind, id string, raw json.RawMessage) error {
	switch kind {
	case models.EntityKindProperty:
		var row rawProperty
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		row.ID = id
		return r.persistProperty(ctx, row)
	default:
		var row rawTenant
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		row.ID = id
		return r.persistCustomer(ctx, row, kind)
	}
}

func (r *OrphanResolver) persistProperty(ctx context.Context, row rawProperty) error {
	existing, err := r.Entities.PropertyByPaypropId(ctx, r.AgencyId, row.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	now := time.Now()
	property := models.Property{
		AgencyId:     r.AgencyId,
		PaypropId:    &row.ID,
		Name:         propertyName(row),
		AddressLine1: row.AddressLine1,
		AddressLine2: row.AddressLine2,
		City:         row.City,
		Postcode:     row.Postcode,
		IsArchived:   row.IsArchived,
		LastSyncedAt: &now,
	}
	if row.MonthlyRent.String() != "" {
		if rent, err := utils.ParseDecimal(row.MonthlyRent.String()); err == nil {
			property.MonthlyRent = rent
		}
	}
	return r.Entities.SaveProperty(ctx, &property)
}

func (r *OrphanResolver) persistCustomer(ctx context.Context, row rawTenant, kind models.EntityKind) error {
	existing, err := r.Entities.CustomerByPaypropId(ctx, r.AgencyId, row.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		if kind == models.EntityKindTenant && !existing.IsTenant {
			existing.IsTenant = true
			return r.Entities.SaveCustomer(ctx, existing)
		}
		if kind == models.EntityKindBeneficiary && !existing.IsPropertyOwner {
			existing.IsPropertyOwner = true
			return r.Entities.SaveCustomer(ctx, existing)
		}
		return nil
	}

	now := time.Now()
	customer := models.Customer{
		AgencyId:        r.AgencyId,
		PaypropId:       &row.ID,
		AccountType:     models.AccountType(row.AccountType),
		FirstName:       row.FirstName,
		LastName:        row.LastName,
		BusinessName:    row.BusinessName,
		Email:           row.Email,
		Phone:           row.Phone,
		IsTenant:        kind == models.EntityKindTenant,
		IsPropertyOwner: kind == models.EntityKindBeneficiary,
		LastSyncedAt:    &now,
	}
	if customer.AccountType == "" {
		customer.AccountType = models.AccountTypeIndividual
	}
	return r.Entities.SaveCustomer(ctx, &customer)
}

func propertyName(row rawProperty) string {
	if row.Name != "" {
		return row.Name
	}
	if row.AddressLine1 != "" {
		return row.AddressLine1
	}
	return "Property " + row.ID
}

// FetchAllEntities walks the bulk export for a kind into an id-keyed
// map. One paginated walk amortizes the network cost across every
// orphan of that kind.
func (c *paypropClient) FetchAllEntities(ctx context.Context, kind models.EntityKind) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	err := c.fetchAllPages(ctx, "/export/"+string(kind), url.Values{}, func(raw json.RawMessage) error {
		var probe struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil || probe.ID == "" {
			return nil
		}
		out[probe.ID] = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchEntityById does a targeted export lookup. A 404-style miss is
// (nil, false, nil), not an error.
func (c *paypropClient) FetchEntityById(ctx context.Context, kind models.EntityKind, id string) (json.RawMessage, bool, error) {
	var out json.RawMessage
	err := c.fetchById(ctx, string(kind), id, &out)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}
