package models

import (
	"encoding/json"
	"time"
)

type SourceType string

const (
	SourceTypeCSV          SourceType = "csv"
	SourceTypeGoogleSheets SourceType = "google_sheets"
	SourceTypePostgres     SourceType = "postgres"
	SourceTypeAPI          SourceType = "api"
)

// ColumnType is the closed set of types the schema inferencer can assign.
type ColumnType string

const (
	ColumnTypeInteger ColumnType = "INTEGER"
	ColumnTypeDouble  ColumnType = "DOUBLE"
	ColumnTypeBoolean ColumnType = "BOOLEAN"
	ColumnTypeDate    ColumnType = "DATE"
	ColumnTypeText    ColumnType = "TEXT"
)

type Source struct {
	ID                 string          `json:"id" db:"id"`
	OrganizationID     string          `json:"organization_id" db:"organization_id"`
	Name               string          `json:"name" db:"name"`
	Description        *string         `json:"description,omitempty" db:"description"`
	SourceType         SourceType      `json:"source_type" db:"source_type"`
	Config             json.RawMessage `json:"config,omitempty" db:"config"`
	WarehouseTableName string          `json:"warehouse_table_name" db:"warehouse_table_name"`
	LastSyncedAt       *time.Time      `json:"last_synced_at,omitempty" db:"last_synced_at"`
	CreatedBy          *string         `json:"created_by,omitempty" db:"created_by"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// SourceListing is the compact shape returned by source list endpoints.
type SourceListing struct {
	ID                 string     `json:"id" db:"id"`
	Name               string     `json:"name" db:"name"`
	SourceType         SourceType `json:"source_type" db:"source_type"`
	WarehouseTableName string     `json:"warehouse_table_name" db:"warehouse_table_name"`
	LastSyncedAt       *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	ColumnCount        int        `json:"column_count" db:"column_count"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// ColumnSchema describes one inferred column of a source. Order values are
// unique per source and dense from 0, matching the upload's column order.
type ColumnSchema struct {
	ID          string          `json:"id,omitempty" db:"id"`
	SourceID    string          `json:"source_id,omitempty" db:"source_id"`
	ColumnName  string          `json:"column_name" db:"column_name"`
	ColumnType  ColumnType      `json:"column_type" db:"column_type"`
	ColumnOrder int             `json:"column_order" db:"column_order"`
	IsNullable  bool            `json:"is_nullable" db:"is_nullable"`
	Metadata    json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}
