package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Property struct {
	ID            uint            `gorm:"primary_key" json:"id"`
	AgencyId      string          `gorm:"index;not null" json:"agency_id"`
	PaypropId     *string         `gorm:"uniqueIndex;size:32" json:"payprop_id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	AddressLine1  string          `gorm:"size:255" json:"address_line_1"`
	AddressLine2  string          `gorm:"size:255" json:"address_line_2"`
	City          string          `gorm:"size:100" json:"city"`
	Postcode      string          `gorm:"size:20" json:"postcode"`
	MonthlyRent   decimal.Decimal `gorm:"type:decimal(20,4)" json:"monthly_rent"`
	Commission    decimal.Decimal `gorm:"type:decimal(20,4)" json:"commission"`
	IsArchived    bool            `gorm:"default:false" json:"is_archived"`
	LastSyncedAt  *time.Time      `json:"last_synced_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Property) TableName() string {
	return "properties"
}
