package paypropsync

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"bitbucket.org/oakcrm/lettings_backend/config"
	"bitbucket.org/oakcrm/lettings_backend/models"
	"bitbucket.org/oakcrm/lettings_backend/utils"
)

// Runner executes one full import run: entities, leases, invoice
// actuals, settlement batches, commissions, then the cleanup stages.
// Every stage is idempotent, so a crashed or cancelled run is resumed
// by simply running again.
type Runner struct {
	AgencyId string

	Fetcher       ReportFetcher
	EntityFetcher EntityFetcher
	Leases        LeaseStore
	Entities      EntityStore
	Transactions  TransactionStore
	Runs          RunStore
	Matcher       *LeaseMatcher
	Classifier    *CategoryClassifier

	validate *validator.Validate
}

// NewRunner wires the production runner: live API client and the
// database-backed stores.
func NewRunner(ctx context.Context, agencyId string) (*Runner, error) {
	client, err := newPaypropClient(ctx)
	if err != nil {
		return nil, err
	}
	stores := models.NewGormStores()
	return &Runner{
		AgencyId:      agencyId,
		Fetcher:       client,
		EntityFetcher: client,
		Leases:        stores,
		Entities:      stores,
		Transactions:  stores,
		Runs:          stores,
		Matcher:       NewLeaseMatcher(stores),
		Classifier:    classifierForAgency(agencyId),
	}, nil
}

func (r *Runner) validator() *validator.Validate {
	if r.validate == nil {
		r.validate = validator.New()
	}
	return r.validate
}

// Execute runs the pipeline over [from, to] and persists a SyncRun
// record with per-stage counters. It returns an error only when the
// run record itself cannot be written; stage failures are reported in
// the run, not raised.
func (r *Runner) Execute(ctx context.Context, triggeredBy string, from, to time.Time) (*models.SyncRun, error) {
	now := time.Now()
	run := models.SyncRun{
		AgencyId:    r.AgencyId,
		Status:      models.SyncRunStatusRunning,
		TriggeredBy: triggeredBy,
		FromDate:    &from,
		ToDate:      &to,
		StartedAt:   &now,
	}
	if err := r.Runs.CreateSyncRun(ctx, &run); err != nil {
		return nil, err
	}

	summary := RunSummary{}
	stageFailures := 0

	stages := []struct {
		name string
		fn   func(context.Context, *models.SyncRun, *RunSummary) error
	}{
		{"properties", r.syncProperties},
		{"tenants", r.syncTenants},
		{"beneficiaries", r.syncBeneficiaries},
		{"leases", r.syncLeases},
		{"invoice_transactions", func(ctx context.Context, run *models.SyncRun, s *RunSummary) error {
			return r.importInvoiceTransactions(ctx, run, s, from, to)
		}},
		{"settlements", func(ctx context.Context, run *models.SyncRun, s *RunSummary) error {
			return r.importSettlements(ctx, run, s, from, to)
		}},
		{"lease_link_backfill", r.backfillLeaseLinks},
		{"orphans", r.resolveOrphans},
	}

	for _, stage := range stages {
		if err := stage.fn(ctx, &run, &summary); err != nil {
			stageFailures++
			r.recordError(ctx, &run, &summary, stage.name, "", err)
			config.LogError(config.GetLogger(), "paypropsync", "Execute",
				"stage "+stage.name+" failed", r.AgencyId, err)
		}
		if ctx.Err() != nil {
			stageFailures++
			break
		}
	}

	finished := time.Now()
	run.FinishedAt = &finished
	run.RecordsSynced = summary.RecordsSynced()
	run.ErrorCount = summary.Errors
	if stats, err := json.Marshal(summary); err == nil {
		run.StatsJSON = stats
	}
	switch {
	case stageFailures > 0 && run.RecordsSynced == 0:
		run.Status = models.SyncRunStatusFailed
	case stageFailures > 0 || summary.Errors > 0:
		run.Status = models.SyncRunStatusPartial
	default:
		run.Status = models.SyncRunStatusSuccess
	}
	if err := r.Runs.UpdateSyncRun(ctx, &run); err != nil {
		return nil, err
	}

	config.LogInfo(config.GetLogger(), "paypropsync", "Execute", "import run finished", map[string]interface{}{
		"agencyId": r.AgencyId,
		"runId":    run.ID,
		"status":   run.Status,
		"records":  run.RecordsSynced,
		"errors":   run.ErrorCount,
	})
	return &run, nil
}

func (r *Runner) recordError(ctx context.Context, run *models.SyncRun, summary *RunSummary, stage, externalId string, err error) {
	summary.Errors++
	syncErr := models.SyncError{
		SyncRunId:  run.ID,
		AgencyId:   r.AgencyId,
		Stage:      stage,
		ExternalId: externalId,
		Message:    err.Error(),
	}
	if createErr := r.Runs.CreateSyncError(ctx, &syncErr); createErr != nil {
		config.LogError(config.GetLogger(), "paypropsync", "recordError",
			"writing sync error record", externalId, createErr)
	}
}

func (r *Runner) syncProperties(ctx context.Context, run *models.SyncRun, summary *RunSummary) error {
	rows, err := r.Fetcher.FetchProperties(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		if err := r.upsertProperty(ctx, row); err != nil {
			r.recordError(ctx, run, summary, "properties", row.ID, err)
			continue
		}
		summary.Properties++
	}
	return nil
}

func (r *Runner) upsertProperty(ctx context.Context, row rawProperty) error {
	now := time.Now()
	property, err := r.Entities.PropertyByPaypropId(ctx, r.AgencyId, row.ID)
	if err != nil {
		return err
	}
	if property == nil {
		property = &models.Property{AgencyId: r.AgencyId, PaypropId: &row.ID}
	}
	property.Name = propertyName(row)
	property.AddressLine1 = row.AddressLine1
	property.AddressLine2 = row.AddressLine2
	property.City = row.City
	property.Postcode = row.Postcode
	property.IsArchived = row.IsArchived
	property.LastSyncedAt = &now
	if rent, err := utils.ParseDecimal(row.MonthlyRent.String()); err == nil {
		property.MonthlyRent = rent
	}
	if commission, err := utils.ParseDecimal(row.Commission.String()); err == nil {
		property.Commission = commission
	}
	return r.Entities.SaveProperty(ctx, property)
}

func (r *Runner) syncTenants(ctx context.Context, run *models.SyncRun, summary *RunSummary) error {
	rows, err := r.Fetcher.FetchTenants(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		if err := r.upsertCustomer(ctx, row, models.EntityKindTenant); err != nil {
			r.recordError(ctx, run, summary, "tenants", row.ID, err)
			continue
		}
		summary.Tenants++
	}
	return nil
}

func (r *Runner) syncBeneficiaries(ctx context.Context, run *models.SyncRun, summary *RunSummary) error {
	rows, err := r.Fetcher.FetchBeneficiaries(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		if err := r.upsertCustomer(ctx, row, models.EntityKindBeneficiary); err != nil {
			r.recordError(ctx, run, summary, "beneficiaries", row.ID, err)
			continue
		}
		summary.Beneficiaries++
	}
	return nil
}

func (r *Runner) upsertCustomer(ctx context.Context, row rawTenant, kind models.EntityKind) error {
	now := time.Now()
	customer, err := r.Entities.CustomerByPaypropId(ctx, r.AgencyId, row.ID)
	if err != nil {
		return err
	}
	if customer == nil {
		customer = &models.Customer{AgencyId: r.AgencyId, PaypropId: &row.ID}
	}
	if row.AccountType != "" {
		customer.AccountType = models.AccountType(row.AccountType)
	}
	if customer.AccountType == "" {
		customer.AccountType = models.AccountTypeIndividual
	}
	customer.FirstName = row.FirstName
	customer.LastName = row.LastName
	customer.BusinessName = row.BusinessName
	customer.Email = row.Email
	customer.Phone = row.Phone
	if kind == models.EntityKindTenant {
		customer.IsTenant = true
	} else {
		customer.IsPropertyOwner = true
	}
	customer.LastSyncedAt = &now
	return r.Entities.SaveCustomer(ctx, customer)
}

func (r *Runner) syncLeases(ctx context.Context, run *models.SyncRun, summary *RunSummary) error {
	rows, err := r.Fetcher.FetchInvoiceInstructions(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		if err := r.upsertLease(ctx, row); err != nil {
			r.recordError(ctx, run, summary, "leases", row.ID, err)
			continue
		}
		summary.Leases++
	}
	return nil
}

func (r *Runner) upsertLease(ctx context.Context, row rawInvoiceInstruction) error {
	property, err := r.Entities.PropertyByPaypropId(ctx, r.AgencyId, row.PropertyId)
	if err != nil {
		return err
	}
	if property == nil {
		return &UnresolvedReferenceError{Kind: models.EntityKindProperty, ExternalId: row.PropertyId}
	}
	tenant, err := r.Entities.CustomerByPaypropId(ctx, r.AgencyId, row.TenantId)
	if err != nil {
		return err
	}
	if tenant == nil {
		return &UnresolvedReferenceError{Kind: models.EntityKindTenant, ExternalId: row.TenantId}
	}

	lease, err := r.Leases.LeaseByPaypropId(ctx, r.AgencyId, row.ID)
	if err != nil {
		return err
	}
	if lease == nil {
		lease = &models.Lease{AgencyId: r.AgencyId, PaypropId: &row.ID}
	}
	lease.PropertyId = property.ID
	lease.TenantId = tenant.ID
	lease.Frequency = mapFrequency(row.Frequency)
	lease.PaymentDay = row.PaymentDay
	if rent, err := utils.ParseDecimal(row.GrossAmount.String()); err == nil {
		lease.RentAmount = rent
	}
	if start, err := utils.ParseDate(row.FromDate); err == nil {
		lease.StartDate = start
	}
	if row.ToDate != "" {
		if end, err := utils.ParseDate(row.ToDate); err == nil {
			lease.EndDate = &end
		}
	} else {
		lease.EndDate = nil
	}
	if row.CategoryId != "" {
		categoryId := row.CategoryId
		lease.CategoryId = &categoryId
	}
	if row.DepositId != "" {
		depositId := row.DepositId
		lease.DepositId = &depositId
	}
	if lease.CommissionRate.IsZero() {
		lease.CommissionRate = property.Commission
	}
	lease.IsActive = lease.EndDate == nil || !lease.EndDate.Before(time.Now())
	now := time.Now()
	lease.LastSyncedAt = &now
	return r.Leases.SaveLease(ctx, lease)
}

func (r *Runner) importInvoiceTransactions(ctx context.Context, run *models.SyncRun, summary *RunSummary, from, to time.Time) error {
	rows, err := r.Fetcher.FetchTransactionRows(ctx, from, to)
	if err != nil {
		return err
	}
	// Date order keeps lease matching stable across runs.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TransactionDate != rows[j].TransactionDate {
			return rows[i].TransactionDate < rows[j].TransactionDate
		}
		return rows[i].ID < rows[j].ID
	})
	for _, row := range rows {
		if err := r.importInvoiceRow(ctx, summary, row); err != nil {
			r.recordError(ctx, run, summary, "invoice_transactions", row.ID, err)
		}
	}
	return nil
}

func (r *Runner) importInvoiceRow(ctx context.Context, summary *RunSummary, row RawTransactionRow) error {
	if err := r.validator().Struct(row); err != nil {
		return err
	}
	amount, err := utils.ParseDecimal(row.Amount.String())
	if err != nil {
		return err
	}
	txnDate, err := utils.ParseDate(row.TransactionDate)
	if err != nil {
		return err
	}
	if row.TransactionType == "credit_note" {
		amount = amount.Neg()
	}

	bucket := bucketForType(row.TransactionType)
	txn := models.FinancialTransaction{
		AgencyId:        r.AgencyId,
		SourceReference: "ICDN-" + row.ID,
		DataSource:      models.DataSourceInvoiceActual,
		TransactionType: row.TransactionType,
		Category:        r.Classifier.Classify(ctx, bucket, row.CategoryName),
		Amount:          amount,
		TransactionDate: txnDate,
		Description:     row.Description,
	}

	var propertyId uint
	if row.PropertyId != "" {
		propertyRef := row.PropertyId
		txn.PropertyPaypropId = &propertyRef
		property, err := r.Entities.PropertyByPaypropId(ctx, r.AgencyId, row.PropertyId)
		if err != nil {
			return err
		}
		if property != nil {
			propertyId = property.ID
			txn.PropertyId = &property.ID
		}
	}
	if row.TenantId != "" {
		tenantRef := row.TenantId
		txn.TenantPaypropId = &tenantRef
		tenant, err := r.Entities.CustomerByPaypropId(ctx, r.AgencyId, row.TenantId)
		if err != nil {
			return err
		}
		if tenant != nil {
			txn.CustomerId = &tenant.ID
		}
	}
	if row.InvoiceId != "" {
		leaseRef := row.InvoiceId
		txn.LeasePaypropId = &leaseRef
	}

	match, err := r.Matcher.Match(ctx, r.AgencyId, propertyId, row.InvoiceId, row.TenantId, txnDate)
	if err != nil {
		return err
	}
	var lease *models.Lease
	if match.Matched {
		leaseId := match.LeaseId
		txn.LeaseId = &leaseId
		lease, err = r.Leases.LeaseById(ctx, r.AgencyId, match.LeaseId)
		if err != nil {
			return err
		}
	}

	inserted, err := r.Transactions.InsertTransactionIfAbsent(ctx, &txn)
	if err != nil {
		return err
	}
	if inserted {
		summary.InvoiceTransactions++
	}

	if lease != nil && bucket == models.BucketInvoice && amount.GreaterThan(decimal.Zero) {
		calc := CommissionCalculator{AgencyId: r.AgencyId, Transactions: r.Transactions}
		commInserted, err := calc.Process(ctx, &txn, lease)
		if err != nil {
			return err
		}
		if commInserted {
			summary.CommissionsImported++
		}
	}
	return nil
}

func (r *Runner) importSettlements(ctx context.Context, run *models.SyncRun, summary *RunSummary, from, to time.Time) error {
	rows, err := r.Fetcher.FetchPaymentRows(ctx, from, to)
	if err != nil {
		return err
	}
	importer := SettlementImporter{
		AgencyId:     r.AgencyId,
		Transactions: r.Transactions,
		Entities:     r.Entities,
		Matcher:      r.Matcher,
		Classifier:   r.Classifier,
	}
	for _, batch := range GroupBatches(rows) {
		result := importer.ImportBatch(ctx, batch)
		summary.AllocationsImported += result.AllocationsInserted
		if result.TransferInserted {
			summary.BatchesImported++
		}
		for _, message := range result.Errors {
			r.recordError(ctx, run, summary, "settlements", batch.ID, &BatchImportError{Message: message})
		}
	}
	return nil
}

func (r *Runner) backfillLeaseLinks(ctx context.Context, run *models.SyncRun, summary *RunSummary) error {
	refs, err := r.Transactions.UnlinkedLeaseRefs(ctx, r.AgencyId)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		lease, err := r.Leases.LeaseByPaypropId(ctx, r.AgencyId, ref)
		if err != nil {
			r.recordError(ctx, run, summary, "lease_link_backfill", ref, err)
			continue
		}
		if lease == nil {
			continue
		}
		updated, err := r.Transactions.BackfillLeaseLinks(ctx, r.AgencyId, ref, lease.ID)
		if err != nil {
			r.recordError(ctx, run, summary, "lease_link_backfill", ref, err)
			continue
		}
		summary.LeaseLinksBackfilled += int(updated)
	}
	return nil
}

func (r *Runner) resolveOrphans(ctx context.Context, run *models.SyncRun, summary *RunSummary) error {
	resolver := OrphanResolver{
		AgencyId:     r.AgencyId,
		Transactions: r.Transactions,
		Entities:     r.Entities,
		Fetcher:      r.EntityFetcher,
	}
	for _, kind := range []models.EntityKind{models.EntityKindProperty, models.EntityKindTenant, models.EntityKindBeneficiary} {
		result, err := resolver.Resolve(ctx, kind)
		if err != nil {
			r.recordError(ctx, run, summary, "orphans", string(kind), err)
			continue
		}
		summary.OrphansResolved += result.Resolved
		summary.OrphansFailed += result.Failed
		for _, failedId := range result.FailedIds {
			r.recordError(ctx, run, summary, "orphans", failedId,
				&UnresolvedReferenceError{Kind: kind, ExternalId: failedId})
		}
	}
	return nil
}

func mapFrequency(raw string) models.Frequency {
	switch raw {
	case "W", "weekly":
		return models.FrequencyWeekly
	case "Q", "quarterly":
		return models.FrequencyQuarterly
	case "Y", "A", "yearly", "annually":
		return models.FrequencyYearly
	case "O", "one_time", "once":
		return models.FrequencyOneTime
	default:
		return models.FrequencyMonthly
	}
}
