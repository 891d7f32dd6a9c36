package models

import "gorm.io/gorm"

// Migrate runs the schema migrations for every table this service
// owns. Called once at startup after the database connection is up.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Property{},
		&Customer{},
		&Lease{},
		&FinancialTransaction{},
		&PaymentCategory{},
		&SyncRun{},
		&SyncError{},
	)
}
