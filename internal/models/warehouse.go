package models

import (
	"encoding/json"
	"time"
)

// WarehouseConnection is the per-organization endpoint descriptor for the
// external warehouse. At most one live connection exists per organization;
// the service key is stored encrypted and decrypted just-in-time for calls.
type WarehouseConnection struct {
	ID              string          `json:"id" db:"id"`
	OrganizationID  string          `json:"organization_id" db:"organization_id"`
	BaseURL         string          `json:"base_url" db:"base_url"`
	KeyEncrypted    []byte          `json:"-" db:"key_encrypted"`
	SchemaName      string          `json:"schema_name" db:"schema_name"`
	IsConnected     bool            `json:"is_connected" db:"is_connected"`
	LastConnectedAt *time.Time      `json:"last_connected_at,omitempty" db:"last_connected_at"`
	Config          json.RawMessage `json:"config,omitempty" db:"config"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}
