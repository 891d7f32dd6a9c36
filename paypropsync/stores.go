package paypropsync

import (
	"context"

	"bitbucket.org/oakcrm/lettings_backend/models"
)

// The store interfaces below are satisfied by models.GormStores in
// production and by in-memory fakes in tests.

type LeaseStore interface {
	LeaseByPaypropId(ctx context.Context, agencyId, paypropId string) (*models.Lease, error)
	LeaseById(ctx context.Context, agencyId string, id uint) (*models.Lease, error)
	LeasesForProperty(ctx context.Context, agencyId string, propertyId uint) ([]models.Lease, error)
	SaveLease(ctx context.Context, lease *models.Lease) error
}

type EntityStore interface {
	PropertyByPaypropId(ctx context.Context, agencyId, paypropId string) (*models.Property, error)
	SaveProperty(ctx context.Context, property *models.Property) error
	CustomerByPaypropId(ctx context.Context, agencyId, paypropId string) (*models.Customer, error)
	SaveCustomer(ctx context.Context, customer *models.Customer) error
}

type TransactionStore interface {
	InsertTransactionIfAbsent(ctx context.Context, txn *models.FinancialTransaction) (bool, error)
	TransactionBySourceReference(ctx context.Context, agencyId, sourceReference string) (*models.FinancialTransaction, error)
	UnlinkedLeaseRefs(ctx context.Context, agencyId string) ([]string, error)
	BackfillLeaseLinks(ctx context.Context, agencyId, leasePaypropId string, leaseId uint) (int64, error)
	OrphanEntityRefs(ctx context.Context, agencyId string, kind models.EntityKind) ([]string, error)
}

type CategoryStore interface {
	ActivePaymentCategories(ctx context.Context, agencyId string) ([]models.PaymentCategory, error)
}

type RunStore interface {
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	UpdateSyncRun(ctx context.Context, run *models.SyncRun) error
	CreateSyncError(ctx context.Context, syncErr *models.SyncError) error
}
