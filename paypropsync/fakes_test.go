package paypropsync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/oakcrm/lettings_backend/models"
)

// fakeStores is a map-backed stand-in for models.GormStores, keyed the
// same way the real schema is: external ids for entities, source
// references for ledger rows.
type fakeStores struct {
	leases       []*models.Lease
	properties   map[string]*models.Property
	customers    map[string]*models.Customer
	transactions map[string]*models.FinancialTransaction
	categories   []models.PaymentCategory
	runs         []*models.SyncRun
	syncErrors   []*models.SyncError

	categoriesErr error
	nextId        uint
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		properties:   make(map[string]*models.Property),
		customers:    make(map[string]*models.Customer),
		transactions: make(map[string]*models.FinancialTransaction),
	}
}

func (f *fakeStores) id() uint {
	f.nextId++
	return f.nextId
}

func (f *fakeStores) addProperty(paypropId string) *models.Property {
	ref := paypropId
	property := &models.Property{ID: f.id(), AgencyId: "ag1", PaypropId: &ref, Name: "Property " + paypropId}
	f.properties[paypropId] = property
	return property
}

func (f *fakeStores) addCustomer(paypropId string, isTenant bool) *models.Customer {
	ref := paypropId
	customer := &models.Customer{ID: f.id(), AgencyId: "ag1", PaypropId: &ref, FirstName: "C" + paypropId, IsTenant: isTenant}
	f.customers[paypropId] = customer
	return customer
}

func (f *fakeStores) addLease(paypropId string, property *models.Property, tenant *models.Customer, start time.Time, end *time.Time) *models.Lease {
	lease := &models.Lease{
		ID:         f.id(),
		AgencyId:   "ag1",
		PropertyId: property.ID,
		TenantId:   tenant.ID,
		Tenant:     tenant,
		StartDate:  start,
		EndDate:    end,
		IsActive:   true,
	}
	if paypropId != "" {
		ref := paypropId
		lease.PaypropId = &ref
	}
	f.leases = append(f.leases, lease)
	return lease
}

// --- LeaseStore ---

func (f *fakeStores) LeaseByPaypropId(_ context.Context, _, paypropId string) (*models.Lease, error) {
	for _, lease := range f.leases {
		if lease.PaypropId != nil && *lease.PaypropId == paypropId {
			return lease, nil
		}
	}
	return nil, nil
}

func (f *fakeStores) LeaseById(_ context.Context, _ string, id uint) (*models.Lease, error) {
	for _, lease := range f.leases {
		if lease.ID == id {
			return lease, nil
		}
	}
	return nil, nil
}

func (f *fakeStores) LeasesForProperty(_ context.Context, _ string, propertyId uint) ([]models.Lease, error) {
	var out []models.Lease
	for _, lease := range f.leases {
		if lease.PropertyId == propertyId {
			out = append(out, *lease)
		}
	}
	return out, nil
}

func (f *fakeStores) SaveLease(_ context.Context, lease *models.Lease) error {
	if lease.ID == 0 {
		lease.ID = f.id()
		f.leases = append(f.leases, lease)
		return nil
	}
	for i, existing := range f.leases {
		if existing.ID == lease.ID {
			f.leases[i] = lease
			return nil
		}
	}
	f.leases = append(f.leases, lease)
	return nil
}

// --- EntityStore ---

func (f *fakeStores) PropertyByPaypropId(_ context.Context, _, paypropId string) (*models.Property, error) {
	return f.properties[paypropId], nil
}

func (f *fakeStores) SaveProperty(_ context.Context, property *models.Property) error {
	if property.PaypropId == nil {
		return errors.New("property without external id")
	}
	if property.ID == 0 {
		property.ID = f.id()
	}
	f.properties[*property.PaypropId] = property
	return nil
}

func (f *fakeStores) CustomerByPaypropId(_ context.Context, _, paypropId string) (*models.Customer, error) {
	return f.customers[paypropId], nil
}

func (f *fakeStores) SaveCustomer(_ context.Context, customer *models.Customer) error {
	if customer.PaypropId == nil {
		return errors.New("customer without external id")
	}
	if customer.ID == 0 {
		customer.ID = f.id()
	}
	f.customers[*customer.PaypropId] = customer
	return nil
}

// --- TransactionStore ---

func (f *fakeStores) InsertTransactionIfAbsent(_ context.Context, txn *models.FinancialTransaction) (bool, error) {
	if _, exists := f.transactions[txn.SourceReference]; exists {
		return false, nil
	}
	txn.ID = f.id()
	stored := *txn
	f.transactions[txn.SourceReference] = &stored
	return true, nil
}

func (f *fakeStores) TransactionBySourceReference(_ context.Context, _, sourceReference string) (*models.FinancialTransaction, error) {
	return f.transactions[sourceReference], nil
}

func (f *fakeStores) UnlinkedLeaseRefs(_ context.Context, _ string) ([]string, error) {
	seen := make(map[string]bool)
	var refs []string
	for _, txn := range f.transactions {
		if txn.LeasePaypropId != nil && txn.LeaseId == nil && !seen[*txn.LeasePaypropId] {
			seen[*txn.LeasePaypropId] = true
			refs = append(refs, *txn.LeasePaypropId)
		}
	}
	return refs, nil
}

func (f *fakeStores) BackfillLeaseLinks(_ context.Context, _, leasePaypropId string, leaseId uint) (int64, error) {
	var updated int64
	for _, txn := range f.transactions {
		if txn.LeasePaypropId != nil && *txn.LeasePaypropId == leasePaypropId && txn.LeaseId == nil {
			id := leaseId
			txn.LeaseId = &id
			updated++
		}
	}
	return updated, nil
}

func (f *fakeStores) OrphanEntityRefs(_ context.Context, _ string, kind models.EntityKind) ([]string, error) {
	seen := make(map[string]bool)
	var refs []string
	for _, txn := range f.transactions {
		var ref *string
		switch kind {
		case models.EntityKindProperty:
			ref = txn.PropertyPaypropId
		case models.EntityKindBeneficiary:
			ref = txn.BeneficiaryPaypropId
		default:
			ref = txn.TenantPaypropId
		}
		if ref == nil || seen[*ref] {
			continue
		}
		seen[*ref] = true
		if kind == models.EntityKindProperty {
			if f.properties[*ref] == nil {
				refs = append(refs, *ref)
			}
		} else if f.customers[*ref] == nil {
			refs = append(refs, *ref)
		}
	}
	return refs, nil
}

// --- CategoryStore ---

func (f *fakeStores) ActivePaymentCategories(_ context.Context, _ string) ([]models.PaymentCategory, error) {
	if f.categoriesErr != nil {
		return nil, f.categoriesErr
	}
	return f.categories, nil
}

// --- RunStore ---

func (f *fakeStores) CreateSyncRun(_ context.Context, run *models.SyncRun) error {
	run.ID = f.id()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStores) UpdateSyncRun(_ context.Context, run *models.SyncRun) error {
	for i, existing := range f.runs {
		if existing.ID == run.ID {
			f.runs[i] = run
			return nil
		}
	}
	return errors.New("sync run not found")
}

func (f *fakeStores) CreateSyncError(_ context.Context, syncErr *models.SyncError) error {
	syncErr.ID = f.id()
	f.syncErrors = append(f.syncErrors, syncErr)
	return nil
}

// fakeFetcher serves canned API payloads.
type fakeFetcher struct {
	properties   []rawProperty
	tenants      []rawTenant
	beneficiarys []rawTenant
	instructions []rawInvoiceInstruction
	txnRows      []RawTransactionRow
	paymentRows  []PaymentRow

	bulkEntities map[models.EntityKind]map[string]json.RawMessage
	byIdEntities map[string]json.RawMessage

	txnRowsErr error
	bulkErr    error
}

func (f *fakeFetcher) FetchProperties(context.Context) ([]rawProperty, error) {
	return f.properties, nil
}

func (f *fakeFetcher) FetchTenants(context.Context) ([]rawTenant, error) {
	return f.tenants, nil
}

func (f *fakeFetcher) FetchBeneficiaries(context.Context) ([]rawTenant, error) {
	return f.beneficiarys, nil
}

func (f *fakeFetcher) FetchInvoiceInstructions(context.Context) ([]rawInvoiceInstruction, error) {
	return f.instructions, nil
}

func (f *fakeFetcher) FetchTransactionRows(context.Context, time.Time, time.Time) ([]RawTransactionRow, error) {
	if f.txnRowsErr != nil {
		return nil, f.txnRowsErr
	}
	return f.txnRows, nil
}

func (f *fakeFetcher) FetchPaymentRows(context.Context, time.Time, time.Time) ([]PaymentRow, error) {
	return f.paymentRows, nil
}

func (f *fakeFetcher) FetchAllEntities(_ context.Context, kind models.EntityKind) (map[string]json.RawMessage, error) {
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	bulk := f.bulkEntities[kind]
	if bulk == nil {
		bulk = map[string]json.RawMessage{}
	}
	return bulk, nil
}

func (f *fakeFetcher) FetchEntityById(_ context.Context, _ models.EntityKind, id string) (json.RawMessage, bool, error) {
	raw, ok := f.byIdEntities[id]
	return raw, ok, nil
}

func date(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(value string) *time.Time {
	t := date(value)
	return &t
}
