package models

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/oakcrm/lettings_backend/config"
)

// GormStores is the database-backed implementation of the store
// interfaces the sync package consumes. A zero DB falls back to the
// global connection so handler code does not have to thread it.
type GormStores struct {
	DB *gorm.DB
}

func NewGormStores() *GormStores {
	return &GormStores{}
}

func (s *GormStores) conn(ctx context.Context) *gorm.DB {
	if s.DB != nil {
		return s.DB.WithContext(ctx)
	}
	return config.GetDB().WithContext(ctx)
}

// --- leases ---

func (s *GormStores) LeaseByPaypropId(ctx context.Context, agencyId, paypropId string) (*Lease, error) {
	var lease Lease
	err := s.conn(ctx).
		Where("agency_id = ? AND payprop_id = ?", agencyId, paypropId).
		Preload("Tenant").Preload("Property").
		First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (s *GormStores) LeaseById(ctx context.Context, agencyId string, id uint) (*Lease, error) {
	var lease Lease
	err := s.conn(ctx).
		Where("agency_id = ? AND id = ?", agencyId, id).
		First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (s *GormStores) LeasesForProperty(ctx context.Context, agencyId string, propertyId uint) ([]Lease, error) {
	var leases []Lease
	err := s.conn(ctx).
		Where("agency_id = ? AND property_id = ?", agencyId, propertyId).
		Preload("Tenant").
		Order("start_date DESC, id ASC").
		Find(&leases).Error
	return leases, err
}

func (s *GormStores) SaveLease(ctx context.Context, lease *Lease) error {
	return s.conn(ctx).Save(lease).Error
}

// --- properties and customers ---

func (s *GormStores) PropertyByPaypropId(ctx context.Context, agencyId, paypropId string) (*Property, error) {
	var property Property
	err := s.conn(ctx).
		Where("agency_id = ? AND payprop_id = ?", agencyId, paypropId).
		First(&property).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (s *GormStores) SaveProperty(ctx context.Context, property *Property) error {
	return s.conn(ctx).Save(property).Error
}

func (s *GormStores) CustomerByPaypropId(ctx context.Context, agencyId, paypropId string) (*Customer, error) {
	var customer Customer
	err := s.conn(ctx).
		Where("agency_id = ? AND payprop_id = ?", agencyId, paypropId).
		First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *GormStores) SaveCustomer(ctx context.Context, customer *Customer) error {
	return s.conn(ctx).Save(customer).Error
}

// --- transactions ---

// InsertTransactionIfAbsent writes the row unless one with the same
// source reference already exists. Returns true when a row was
// actually inserted.
func (s *GormStores) InsertTransactionIfAbsent(ctx context.Context, txn *FinancialTransaction) (bool, error) {
	result := s.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_reference"}},
			DoNothing: true,
		}).
		Create(txn)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStores) TransactionBySourceReference(ctx context.Context, agencyId, sourceReference string) (*FinancialTransaction, error) {
	var txn FinancialTransaction
	err := s.conn(ctx).
		Where("agency_id = ? AND source_reference = ?", agencyId, sourceReference).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// UnlinkedLeaseRefs returns the distinct external lease ids of ledger
// rows that carry a lease reference but were never linked to a local
// lease. Input to the backfill stage.
func (s *GormStores) UnlinkedLeaseRefs(ctx context.Context, agencyId string) ([]string, error) {
	var refs []string
	err := s.conn(ctx).
		Model(&FinancialTransaction{}).
		Distinct("lease_payprop_id").
		Where("agency_id = ? AND lease_payprop_id IS NOT NULL AND lease_id IS NULL", agencyId).
		Pluck("lease_payprop_id", &refs).Error
	return refs, err
}

// BackfillLeaseLinks points every unlinked ledger row referencing the
// external lease id at the local lease. Returns rows updated.
func (s *GormStores) BackfillLeaseLinks(ctx context.Context, agencyId, leasePaypropId string, leaseId uint) (int64, error) {
	result := s.conn(ctx).
		Model(&FinancialTransaction{}).
		Where("agency_id = ? AND lease_payprop_id = ? AND lease_id IS NULL", agencyId, leasePaypropId).
		Update("lease_id", leaseId)
	return result.RowsAffected, result.Error
}

// OrphanEntityRefs finds external ids referenced by ledger rows with
// no matching local entity, via an anti-join on the entity table.
func (s *GormStores) OrphanEntityRefs(ctx context.Context, agencyId string, kind EntityKind) ([]string, error) {
	var refColumn, table string
	switch kind {
	case EntityKindProperty:
		refColumn, table = "property_payprop_id", "properties"
	case EntityKindTenant:
		refColumn, table = "tenant_payprop_id", "customers"
	case EntityKindBeneficiary:
		refColumn, table = "beneficiary_payprop_id", "customers"
	default:
		return nil, fmt.Errorf("orphan detection not supported for entity kind %q", kind)
	}
	var refs []string
	query := fmt.Sprintf(
		`SELECT DISTINCT t.%[1]s
		   FROM financial_transactions t
		   LEFT JOIN %[2]s e ON e.payprop_id = t.%[1]s AND e.agency_id = t.agency_id
		  WHERE t.agency_id = ? AND t.%[1]s IS NOT NULL AND e.id IS NULL`,
		refColumn, table)
	err := s.conn(ctx).Raw(query, agencyId).Scan(&refs).Error
	return refs, err
}

// --- categories ---

func (s *GormStores) ActivePaymentCategories(ctx context.Context, agencyId string) ([]PaymentCategory, error) {
	var rows []PaymentCategory
	err := s.conn(ctx).
		Where("agency_id = ? AND is_active = ?", agencyId, true).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// --- sync runs ---

func (s *GormStores) CreateSyncRun(ctx context.Context, run *SyncRun) error {
	return s.conn(ctx).Create(run).Error
}

func (s *GormStores) UpdateSyncRun(ctx context.Context, run *SyncRun) error {
	return s.conn(ctx).Save(run).Error
}

func (s *GormStores) CreateSyncError(ctx context.Context, syncErr *SyncError) error {
	return s.conn(ctx).Create(syncErr).Error
}

func (s *GormStores) RecentSyncRuns(ctx context.Context, agencyId string, limit int) ([]SyncRun, error) {
	var runs []SyncRun
	err := s.conn(ctx).
		Where("agency_id = ?", agencyId).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (s *GormStores) SyncRunById(ctx context.Context, agencyId string, id uint) (*SyncRun, []SyncError, error) {
	var run SyncRun
	err := s.conn(ctx).
		Where("agency_id = ? AND id = ?", agencyId, id).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var syncErrors []SyncError
	if err := s.conn(ctx).
		Where("sync_run_id = ?", run.ID).
		Order("id ASC").
		Find(&syncErrors).Error; err != nil {
		return nil, nil, err
	}
	return &run, syncErrors, nil
}
