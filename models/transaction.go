package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinancialTransaction is one row of the append-only ledger. Amounts
// are signed: money in is positive, money out is negative.
//
// SourceReference is globally unique and is what makes every import
// path idempotent: re-importing the same external record is a no-op.
type FinancialTransaction struct {
	ID              uint            `gorm:"primary_key" json:"id"`
	AgencyId        string          `gorm:"index;not null" json:"agency_id"`
	SourceReference string          `gorm:"uniqueIndex;size:64;not null" json:"source_reference"`
	DataSource      DataSource      `gorm:"size:32;index;not null" json:"data_source"`
	TransactionType string          `gorm:"size:50" json:"transaction_type"`
	Category        string          `gorm:"size:100;index" json:"category"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	TransactionDate time.Time       `gorm:"type:date;index;not null" json:"transaction_date"`
	Description     string          `gorm:"type:text" json:"description"`
	PropertyId      *uint           `gorm:"index" json:"property_id"`
	LeaseId         *uint           `gorm:"index" json:"lease_id"`
	CustomerId      *uint           `gorm:"index" json:"customer_id"`

	// External references as the platform reported them. Kept even
	// when the local link could not be made at import time so that
	// orphan detection and the lease-link backfill can run later.
	PropertyPaypropId    *string `gorm:"index;size:32" json:"property_payprop_id"`
	TenantPaypropId      *string `gorm:"index;size:32" json:"tenant_payprop_id"`
	BeneficiaryPaypropId *string `gorm:"index;size:32" json:"beneficiary_payprop_id"`
	LeasePaypropId       *string `gorm:"index;size:32" json:"lease_payprop_id"`
	BatchPaypropId       *string `gorm:"index;size:32" json:"batch_payprop_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FinancialTransaction) TableName() string {
	return "financial_transactions"
}
