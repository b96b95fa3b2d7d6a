package models

import (
	"encoding/json"
	"time"
)

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusRunning SyncStatus = "running"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// IsTerminal reports whether a run can no longer change state.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSuccess || s == SyncStatusFailed
}

// SyncRun is one attempt to push a source's data into the warehouse.
// Runs are append-only history: once a run reaches a terminal state it is
// never mutated again.
type SyncRun struct {
	ID           string          `json:"id" db:"id"`
	SourceID     string          `json:"source_id" db:"source_id"`
	Status       SyncStatus      `json:"status" db:"status"`
	StartedAt    *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	RowsSynced   *int64          `json:"rows_synced,omitempty" db:"rows_synced"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	TriggeredBy  *string         `json:"triggered_by,omitempty" db:"triggered_by"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
