package models

// AccountType mirrors the external platform's account_type field.
type AccountType string

const (
	AccountTypeIndividual AccountType = "individual"
	AccountTypeBusiness   AccountType = "business"
)

// Frequency is the recurring charge cycle of a lease.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyOneTime   Frequency = "one_time"
)

// EntityKind identifies an external-platform entity class during
// orphan resolution and bulk fetches.
type EntityKind string

const (
	EntityKindProperty    EntityKind = "properties"
	EntityKindTenant      EntityKind = "tenants"
	EntityKindBeneficiary EntityKind = "beneficiaries"
)

// TransactionBucket groups raw transaction types for category mapping.
type TransactionBucket string

const (
	BucketInvoice TransactionBucket = "invoice"
	BucketFee     TransactionBucket = "fee"
	BucketPayment TransactionBucket = "payment"
)

// DataSource records which import path created a transaction row.
type DataSource string

const (
	DataSourceInvoiceActual     DataSource = "INVOICE_ACTUAL"
	DataSourceBatchAllocation   DataSource = "BATCH_ALLOCATION"
	DataSourceBatchTransfer     DataSource = "BATCH_TRANSFER"
	DataSourceCommissionPayment DataSource = "COMMISSION_PAYMENT"
)

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredCron   = "cron"
	SyncTriggeredRetry  = "retry"
)
