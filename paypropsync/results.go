package paypropsync

// MatchResult is the outcome of one lease-match attempt. Strategy
// names which rule produced the match; empty when no lease matched.
type MatchResult struct {
	LeaseId  uint
	Strategy string
	Matched  bool
}

const (
	MatchStrategyDirect     = "direct_external_id"
	MatchStrategyInterval   = "interval_containment"
	MatchStrategyTenant     = "tenant_exact"
	MatchStrategyMostRecent = "most_recent_start"
)

// BatchImportResult reports one settlement batch decomposition.
type BatchImportResult struct {
	BatchId             string
	AllocationsInserted int
	AllocationsSkipped  int
	TransferInserted    bool
	Errors              []string
}

// ResolutionResult reports one orphan-resolution pass for a single
// entity kind.
type ResolutionResult struct {
	Kind      string
	Orphaned  int
	Resolved  int
	Failed    int
	FailedIds []string
}

// RunSummary aggregates per-stage counters for a whole sync run.
type RunSummary struct {
	Properties           int `json:"properties"`
	Tenants              int `json:"tenants"`
	Beneficiaries        int `json:"beneficiaries"`
	Leases               int `json:"leases"`
	InvoiceTransactions  int `json:"invoice_transactions"`
	BatchesImported      int `json:"batches_imported"`
	AllocationsImported  int `json:"allocations_imported"`
	CommissionsImported  int `json:"commissions_imported"`
	LeaseLinksBackfilled int `json:"lease_links_backfilled"`
	OrphansResolved      int `json:"orphans_resolved"`
	OrphansFailed        int `json:"orphans_failed"`
	Errors               int `json:"errors"`
}

func (s *RunSummary) RecordsSynced() int {
	return s.Properties + s.Tenants + s.Beneficiaries + s.Leases +
		s.InvoiceTransactions + s.AllocationsImported + s.BatchesImported +
		s.CommissionsImported
}
