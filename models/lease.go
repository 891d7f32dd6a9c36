package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lease is a tenancy agreement linking a tenant to a property over a
// date interval. EndDate is nil for open-ended tenancies.
type Lease struct {
	ID             uint            `gorm:"primary_key" json:"id"`
	AgencyId       string          `gorm:"index;not null" json:"agency_id"`
	PaypropId      *string         `gorm:"uniqueIndex;size:32" json:"payprop_id"`
	PropertyId     uint            `gorm:"index;not null" json:"property_id"`
	Property       *Property       `json:"property,omitempty"`
	TenantId       uint            `gorm:"index;not null" json:"tenant_id"`
	Tenant         *Customer       `gorm:"foreignKey:TenantId" json:"tenant,omitempty"`
	RentAmount     decimal.Decimal `gorm:"type:decimal(20,4)" json:"rent_amount"`
	Frequency      Frequency       `gorm:"size:20;default:'monthly'" json:"frequency"`
	PaymentDay     int             `json:"payment_day"`
	StartDate      time.Time       `gorm:"type:date;index;not null" json:"start_date"`
	EndDate        *time.Time      `gorm:"type:date" json:"end_date"`
	CategoryId     *string         `gorm:"size:32" json:"category_id"`
	DepositId      *string         `gorm:"size:32" json:"deposit_id"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(20,4)" json:"commission_rate"`
	IsActive       bool            `gorm:"default:true" json:"is_active"`
	LastSyncedAt   *time.Time      `json:"last_synced_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lease) TableName() string {
	return "leases"
}

// Covers reports whether d falls inside the lease interval. The start
// date is inclusive and a nil end date means the lease is open-ended.
func (l *Lease) Covers(d time.Time) bool {
	day := dateOnly(d)
	if day.Before(dateOnly(l.StartDate)) {
		return false
	}
	if l.EndDate == nil {
		return true
	}
	return !day.After(dateOnly(*l.EndDate))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
