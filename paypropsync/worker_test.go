package paypropsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/oakcrm/lettings_backend/models"
)

func newTestRunner(stores *fakeStores, fetcher *fakeFetcher) *Runner {
	return &Runner{
		AgencyId:      "ag1",
		Fetcher:       fetcher,
		EntityFetcher: fetcher,
		Leases:        stores,
		Entities:      stores,
		Transactions:  stores,
		Runs:          stores,
		Matcher:       NewLeaseMatcher(stores),
		Classifier:    NewCategoryClassifier("ag1", stores),
	}
}

func fullFetcher() *fakeFetcher {
	return &fakeFetcher{
		properties: []rawProperty{
			{ID: "P1", Name: "1 River Road", City: "Leeds", MonthlyRent: "995", Commission: "10"},
		},
		tenants: []rawTenant{
			{ID: "T1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		},
		beneficiarys: []rawTenant{
			{ID: "B1", AccountType: "business", BusinessName: "River Holdings Ltd"},
		},
		instructions: []rawInvoiceInstruction{
			{ID: "L1", PropertyId: "P1", TenantId: "T1", GrossAmount: "995", Frequency: "M", PaymentDay: 1, FromDate: "2024-01-01"},
		},
		txnRows: []RawTransactionRow{
			{ID: "R1", TransactionType: "invoice", CategoryName: "Rent", Amount: "995", TransactionDate: "2024-03-01", PropertyId: "P1", TenantId: "T1", InvoiceId: "L1"},
		},
		paymentRows: []PaymentRow{
			{ID: "A1", PaymentBatchId: "42", BeneficiaryId: "B1", PropertyId: "P1", Amount: "300", PaymentDate: "2024-03-05", ReconciledDate: "2024-03-10"},
			{ID: "A2", PaymentBatchId: "42", BeneficiaryId: "B1", PropertyId: "P1", Amount: "150", PaymentDate: "2024-03-07", ReconciledDate: "2024-03-10"},
		},
	}
}

func TestExecuteFullRun(t *testing.T) {
	stores := newFakeStores()
	runner := newTestRunner(stores, fullFetcher())

	run, err := runner.Execute(context.Background(), models.SyncTriggeredManual, date("2024-03-01"), date("2024-03-31"))
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.SyncRunStatusSuccess {
		t.Fatalf("status %s, errors: %+v", run.Status, stores.syncErrors)
	}

	if stores.properties["P1"] == nil || stores.customers["T1"] == nil || stores.customers["B1"] == nil {
		t.Fatal("entities not synced")
	}
	lease, _ := stores.LeaseByPaypropId(context.Background(), "ag1", "L1")
	if lease == nil {
		t.Fatal("lease not created from invoice instruction")
	}
	if !lease.RentAmount.Equal(decimal.RequireFromString("995")) || lease.Frequency != models.FrequencyMonthly {
		t.Errorf("lease fields wrong: %+v", lease)
	}
	if !lease.CommissionRate.Equal(decimal.NewFromInt(10)) {
		t.Errorf("commission rate not inherited from property: %s", lease.CommissionRate)
	}

	invoice := stores.transactions["ICDN-R1"]
	if invoice == nil {
		t.Fatal("invoice actual not imported")
	}
	if invoice.LeaseId == nil || *invoice.LeaseId != lease.ID {
		t.Errorf("invoice not matched to lease: %+v", invoice)
	}
	if invoice.Category != CategoryRent {
		t.Errorf("invoice category %s", invoice.Category)
	}

	commission := stores.transactions["COMM-ICDN-R1"]
	if commission == nil {
		t.Fatal("commission row not derived")
	}
	if !commission.Amount.Equal(decimal.RequireFromString("99.50")) {
		t.Errorf("commission %s, want 99.50", commission.Amount)
	}

	for _, ref := range []string{"ALLOC-A1", "ALLOC-A2", "BATCH-42"} {
		if stores.transactions[ref] == nil {
			t.Errorf("missing settlement row %s", ref)
		}
	}

	var summary RunSummary
	if err := json.Unmarshal(run.StatsJSON, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Properties != 1 || summary.Tenants != 1 || summary.Beneficiaries != 1 ||
		summary.Leases != 1 || summary.InvoiceTransactions != 1 ||
		summary.AllocationsImported != 2 || summary.BatchesImported != 1 || summary.CommissionsImported != 1 {
		t.Errorf("summary counters wrong: %+v", summary)
	}
	if run.FinishedAt == nil || run.RecordsSynced == 0 {
		t.Errorf("run record incomplete: %+v", run)
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	stores := newFakeStores()
	fetcher := fullFetcher()
	runner := newTestRunner(stores, fetcher)
	ctx := context.Background()
	from, to := date("2024-03-01"), date("2024-03-31")

	if _, err := runner.Execute(ctx, models.SyncTriggeredManual, from, to); err != nil {
		t.Fatal(err)
	}
	ledgerSize := len(stores.transactions)

	run, err := runner.Execute(ctx, models.SyncTriggeredRetry, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.SyncRunStatusSuccess {
		t.Fatalf("re-run status %s", run.Status)
	}
	if len(stores.transactions) != ledgerSize {
		t.Fatalf("re-run grew the ledger from %d to %d rows", ledgerSize, len(stores.transactions))
	}
}

func TestExecuteStageFailureMarksPartial(t *testing.T) {
	stores := newFakeStores()
	fetcher := fullFetcher()
	fetcher.txnRowsErr = errors.New("report endpoint down")
	runner := newTestRunner(stores, fetcher)

	run, err := runner.Execute(context.Background(), models.SyncTriggeredManual, date("2024-03-01"), date("2024-03-31"))
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.SyncRunStatusPartial {
		t.Fatalf("status %s, want partial", run.Status)
	}
	// Later stages still ran.
	if stores.transactions["BATCH-42"] == nil {
		t.Fatal("settlement stage skipped after invoice stage failure")
	}
	if len(stores.syncErrors) == 0 {
		t.Fatal("stage failure not recorded")
	}
}

func TestExecuteRecordsRowLevelErrors(t *testing.T) {
	stores := newFakeStores()
	fetcher := fullFetcher()
	// An instruction referencing an unknown property cannot be
	// upserted, but must not sink the run.
	fetcher.instructions = append(fetcher.instructions,
		rawInvoiceInstruction{ID: "L2", PropertyId: "P-MISSING", TenantId: "T1", FromDate: "2024-01-01"})
	runner := newTestRunner(stores, fetcher)

	run, err := runner.Execute(context.Background(), models.SyncTriggeredManual, date("2024-03-01"), date("2024-03-31"))
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.SyncRunStatusPartial || run.ErrorCount == 0 {
		t.Fatalf("row failure not reflected: %+v", run)
	}
	found := false
	for _, syncErr := range stores.syncErrors {
		if syncErr.Stage == "leases" && syncErr.ExternalId == "L2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing sync error for L2: %+v", stores.syncErrors)
	}
	if lease, _ := stores.LeaseByPaypropId(context.Background(), "ag1", "L1"); lease == nil {
		t.Fatal("valid lease blocked by invalid sibling")
	}
}

// An allocation paid to a beneficiary the entity sync never saw must
// keep its external reference and get the party backfilled by the
// orphan stage within the same run.
func TestExecuteResolvesUnknownBeneficiary(t *testing.T) {
	stores := newFakeStores()
	fetcher := fullFetcher()
	fetcher.paymentRows = append(fetcher.paymentRows, PaymentRow{
		ID: "A3", PaymentBatchId: "43", BeneficiaryId: "B-MISSING", PropertyId: "P1",
		Amount: "75", PaymentDate: "2024-03-08", ReconciledDate: "2024-03-12",
	})
	fetcher.byIdEntities = map[string]json.RawMessage{
		"B-MISSING": json.RawMessage(`{"first_name":"Grace","last_name":"Hopper"}`),
	}
	runner := newTestRunner(stores, fetcher)

	run, err := runner.Execute(context.Background(), models.SyncTriggeredManual, date("2024-03-01"), date("2024-03-31"))
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.SyncRunStatusSuccess {
		t.Fatalf("status %s, errors: %+v", run.Status, stores.syncErrors)
	}

	alloc := stores.transactions["ALLOC-A3"]
	if alloc == nil || alloc.BeneficiaryPaypropId == nil || *alloc.BeneficiaryPaypropId != "B-MISSING" {
		t.Fatalf("allocation lost its beneficiary reference: %+v", alloc)
	}
	created := stores.customers["B-MISSING"]
	if created == nil || !created.IsPropertyOwner {
		t.Fatalf("beneficiary not resolved from the platform: %+v", created)
	}

	var summary RunSummary
	if err := json.Unmarshal(run.StatsJSON, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.OrphansResolved == 0 {
		t.Error("orphan resolution not reflected in run stats")
	}
}

func TestBackfillLinksEarlierUnlinkedRows(t *testing.T) {
	stores := newFakeStores()
	leaseRef := "L1"
	stores.InsertTransactionIfAbsent(context.Background(), &models.FinancialTransaction{
		AgencyId:        "ag1",
		SourceReference: "ICDN-OLD",
		LeasePaypropId:  &leaseRef,
	})

	runner := newTestRunner(stores, fullFetcher())
	run, err := runner.Execute(context.Background(), models.SyncTriggeredManual, date("2024-03-01"), date("2024-03-31"))
	if err != nil {
		t.Fatal(err)
	}

	old := stores.transactions["ICDN-OLD"]
	if old.LeaseId == nil {
		t.Fatal("pre-existing row not backfilled once the lease arrived")
	}
	var summary RunSummary
	if err := json.Unmarshal(run.StatsJSON, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.LeaseLinksBackfilled == 0 {
		t.Error("backfill counter not reported")
	}
}

func TestExecuteTotalFailureMarksFailed(t *testing.T) {
	stores := newFakeStores()
	fetcher := &fakeFetcher{txnRowsErr: errors.New("down"), bulkErr: errors.New("down")}
	runner := newTestRunner(stores, fetcher)

	run, err := runner.Execute(context.Background(), models.SyncTriggeredManual, date("2024-03-01"), date("2024-03-31"))
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.SyncRunStatusFailed {
		t.Fatalf("status %s, want failed", run.Status)
	}
}

func TestMapFrequency(t *testing.T) {
	cases := map[string]models.Frequency{
		"M":       models.FrequencyMonthly,
		"W":       models.FrequencyWeekly,
		"Q":       models.FrequencyQuarterly,
		"Y":       models.FrequencyYearly,
		"O":       models.FrequencyOneTime,
		"monthly": models.FrequencyMonthly,
		"":        models.FrequencyMonthly,
	}
	for raw, want := range cases {
		if got := mapFrequency(raw); got != want {
			t.Errorf("%q: got %s, want %s", raw, got, want)
		}
	}
}

func TestResolveWindowDefaults(t *testing.T) {
	from, to, err := resolveWindow(triggerSyncRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !to.After(from) {
		t.Fatalf("default window inverted: %s .. %s", from, to)
	}
	if to.Sub(from) < 29*24*time.Hour {
		t.Fatalf("default window too short: %s", to.Sub(from))
	}

	if _, _, err := resolveWindow(triggerSyncRequest{FromDate: "2024-02-01", ToDate: "2024-01-01"}); err == nil {
		t.Fatal("inverted explicit window must error")
	}
}
