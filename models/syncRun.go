package models

import "time"

// SyncRun is one end-to-end import run against the external platform.
// StatsJSON holds the per-stage counters serialized at completion.
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	AgencyId      string     `gorm:"index;not null" json:"agency_id"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	FromDate      *time.Time `gorm:"type:date" json:"from_date"`
	ToDate        *time.Time `gorm:"type:date" json:"to_date"`
	StatsJSON     []byte     `gorm:"type:json" json:"stats"`
	RecordsSynced int        `json:"records_synced"`
	ErrorCount    int        `json:"error_count"`
	ErrorSummary  string     `gorm:"type:text" json:"error_summary"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

// SyncError is one recorded failure inside a run, kept so a partial
// run can report exactly which external records were skipped.
type SyncError struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	SyncRunId  uint      `gorm:"index;not null" json:"sync_run_id"`
	AgencyId   string    `gorm:"index;not null" json:"agency_id"`
	Stage      string    `gorm:"size:50" json:"stage"`
	ExternalId string    `gorm:"size:64" json:"external_id"`
	Message    string    `gorm:"type:text" json:"message"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SyncError) TableName() string {
	return "sync_errors"
}
