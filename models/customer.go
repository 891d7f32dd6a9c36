package models

import (
	"strings"
	"time"
)

// Customer is any party the agency deals with: tenants, property
// owners (beneficiaries) and contractors. The role flags are not
// mutually exclusive.
type Customer struct {
	ID              uint        `gorm:"primary_key" json:"id"`
	AgencyId        string      `gorm:"index;not null" json:"agency_id"`
	PaypropId       *string     `gorm:"uniqueIndex;size:32" json:"payprop_id"`
	AccountType     AccountType `gorm:"size:20;default:'individual'" json:"account_type"`
	FirstName       string      `gorm:"size:100" json:"first_name"`
	LastName        string      `gorm:"size:100" json:"last_name"`
	BusinessName    string      `gorm:"size:255" json:"business_name"`
	Email           string      `gorm:"size:255;index" json:"email"`
	Phone           string      `gorm:"size:50" json:"phone"`
	IsTenant        bool        `gorm:"default:false" json:"is_tenant"`
	IsPropertyOwner bool        `gorm:"default:false" json:"is_property_owner"`
	LastSyncedAt    *time.Time  `json:"last_synced_at"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// DisplayName returns the best available human-readable name,
// falling back through business name, first+last, email local part
// and finally the external id.
func (c *Customer) DisplayName() string {
	if c.AccountType == AccountTypeBusiness && c.BusinessName != "" {
		return c.BusinessName
	}
	full := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if full != "" {
		return full
	}
	if c.BusinessName != "" {
		return c.BusinessName
	}
	if c.Email != "" {
		if at := strings.Index(c.Email, "@"); at > 0 {
			return c.Email[:at]
		}
		return c.Email
	}
	if c.PaypropId != nil {
		return "Customer " + *c.PaypropId
	}
	return "Unknown Customer"
}
