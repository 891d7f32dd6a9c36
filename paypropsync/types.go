package paypropsync

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RawTransactionRow is one financial row as the platform's report
// endpoints return it. Amounts arrive as json.Number because the API
// is inconsistent about quoting them.
type RawTransactionRow struct {
	ID              string      `json:"id" validate:"required"`
	TransactionType string      `json:"transaction_type"`
	CategoryName    string      `json:"category_name"`
	Amount          json.Number `json:"amount" validate:"required"`
	TransactionDate string      `json:"transaction_date" validate:"required"`
	Description     string      `json:"description"`
	PropertyId      string      `json:"property_id"`
	TenantId        string      `json:"tenant_id"`
	InvoiceId       string      `json:"invoice_id"`
	HasTax          bool        `json:"has_tax"`
}

// PaymentRow is one outgoing payment allocation from the all-payments
// report. Rows sharing a PaymentBatchId belong to one settlement.
type PaymentRow struct {
	ID             string      `json:"id" validate:"required"`
	PaymentBatchId string      `json:"payment_batch_id"`
	BeneficiaryId  string      `json:"beneficiary_id"`
	PropertyId     string      `json:"property_id"`
	TenantId       string      `json:"incoming_tenant_id"`
	CategoryName   string      `json:"category_name"`
	Amount         json.Number `json:"amount" validate:"required"`
	PaymentDate    string      `json:"payment_date"`
	ReconciledDate string      `json:"reconciliation_date"`
	Description    string      `json:"description"`
	Status         string      `json:"status"`
}

type rawProperty struct {
	ID           string `json:"id"`
	Name         string `json:"property_name"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	City         string `json:"city"`
	Postcode     string `json:"postal_code"`
	MonthlyRent  json.Number `json:"monthly_payment_required"`
	Commission   json.Number `json:"commission"`
	IsArchived   bool        `json:"is_archived"`
}

type rawTenant struct {
	ID           string `json:"id"`
	AccountType  string `json:"account_type"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	BusinessName string `json:"business_name"`
	Email        string `json:"email_address"`
	Phone        string `json:"mobile_number"`
}

type rawInvoiceInstruction struct {
	ID           string      `json:"id"`
	PropertyId   string      `json:"property_id"`
	TenantId     string      `json:"tenant_id"`
	CategoryId   string      `json:"category_id"`
	GrossAmount  json.Number `json:"gross_amount"`
	Frequency    string      `json:"frequency"`
	PaymentDay   int         `json:"payment_day"`
	FromDate     string      `json:"from_date"`
	ToDate       string      `json:"to_date"`
	DepositId    string      `json:"deposit_id"`
}

// SettlementAllocation is one beneficiary payout inside a settlement
// batch, normalized from a PaymentRow.
type SettlementAllocation struct {
	ID            string
	BeneficiaryId string
	PropertyId    string
	TenantId      string
	CategoryName  string
	Amount        decimal.Decimal
	DueDate       time.Time
	Description   string
}

// SettlementBatch is one reconciled transfer out of the client
// account, with the allocations it settles.
type SettlementBatch struct {
	ID             string
	TransferDate   time.Time
	EarliestCover  time.Time
	LatestCover    time.Time
	Allocations    []SettlementAllocation
}

// Total is the batch transfer amount: the sum of its allocations.
func (b *SettlementBatch) Total() decimal.Decimal {
	total := decimal.Zero
	for _, alloc := range b.Allocations {
		total = total.Add(alloc.Amount)
	}
	return total
}
