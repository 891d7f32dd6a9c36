package models

import "time"

// PaymentCategory is an agency-configurable mapping row that overrides
// or extends the built-in category baselines. ExternalLabel is the
// label as the external platform reports it; InternalName is the
// ledger category it maps to.
type PaymentCategory struct {
	ID            uint              `gorm:"primary_key" json:"id"`
	AgencyId      string            `gorm:"index;not null" json:"agency_id"`
	Bucket        TransactionBucket `gorm:"size:20;index;not null" json:"bucket"`
	ExternalLabel string            `gorm:"size:100;not null" json:"external_label"`
	InternalName  string            `gorm:"size:100;not null" json:"internal_name"`
	IsActive      bool              `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentCategory) TableName() string {
	return "payment_categories"
}
