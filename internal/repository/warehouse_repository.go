package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/tablo-data/tablo-api/internal/models"
)

type WarehouseRepository interface {
	// GetByOrg returns the organization's live connection.
	GetByOrg(orgID string) (models.WarehouseConnection, error)
	// Create rejects a second live connection for the same organization.
	Create(conn models.WarehouseConnection) (models.WarehouseConnection, error)
	Update(conn models.WarehouseConnection) (models.WarehouseConnection, error)
	// SetConnectionStatus records the outcome of a connectivity probe.
	SetConnectionStatus(id string, connected bool, verifiedAt time.Time) error
	SoftDelete(orgID string) error
}

type warehouseRepository struct {
	db *sql.DB
}

func NewWarehouseRepository(db *sql.DB) WarehouseRepository {
	return &warehouseRepository{db: db}
}

const warehouseColumns = `id, organization_id, base_url, key_encrypted, schema_name, is_connected, last_connected_at, config, created_at, updated_at`

func (r *warehouseRepository) GetByOrg(orgID string) (models.WarehouseConnection, error) {
	const query = `
		SELECT ` + warehouseColumns + `
		FROM platform.warehouse_connections
		WHERE organization_id = $1 AND deleted_at IS NULL
	`
	return scanWarehouse(r.db.QueryRow(query, orgID))
}

func (r *warehouseRepository) Create(conn models.WarehouseConnection) (models.WarehouseConnection, error) {
	if _, err := r.GetByOrg(conn.OrganizationID); err == nil {
		return models.WarehouseConnection{}, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return models.WarehouseConnection{}, err
	}

	if conn.SchemaName == "" {
		conn.SchemaName = "public"
	}
	if conn.Config == nil {
		conn.Config = json.RawMessage("{}")
	}

	const query = `
		INSERT INTO platform.warehouse_connections (organization_id, base_url, key_encrypted, schema_name, is_connected, config)
		SELECT $1, $2, $3, $4, FALSE, $5
		FROM platform.organizations o
		WHERE o.id = $1 AND o.deleted_at IS NULL
		RETURNING ` + warehouseColumns + `
	`
	created, err := scanWarehouse(r.db.QueryRow(query, conn.OrganizationID, conn.BaseURL, conn.KeyEncrypted, conn.SchemaName, []byte(conn.Config)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.WarehouseConnection{}, ErrNotFound
		}
		return models.WarehouseConnection{}, errors.Wrap(err, "create warehouse connection")
	}
	return created, nil
}

func (r *warehouseRepository) Update(conn models.WarehouseConnection) (models.WarehouseConnection, error) {
	// Changing endpoint or credential resets the connectivity flag until the
	// next successful probe.
	const query = `
		UPDATE platform.warehouse_connections
		SET base_url = $1, key_encrypted = $2, schema_name = $3, is_connected = FALSE, updated_at = NOW()
		WHERE organization_id = $4 AND deleted_at IS NULL
		RETURNING ` + warehouseColumns + `
	`
	updated, err := scanWarehouse(r.db.QueryRow(query, conn.BaseURL, conn.KeyEncrypted, conn.SchemaName, conn.OrganizationID))
	if err != nil {
		return models.WarehouseConnection{}, err
	}
	return updated, nil
}

func (r *warehouseRepository) SetConnectionStatus(id string, connected bool, verifiedAt time.Time) error {
	const query = `
		UPDATE platform.warehouse_connections
		SET is_connected = $1,
		    last_connected_at = CASE WHEN $1 THEN $2 ELSE last_connected_at END,
		    updated_at = NOW()
		WHERE id = $3 AND deleted_at IS NULL
	`
	_, err := r.db.Exec(query, connected, verifiedAt, id)
	return errors.Wrap(err, "update connection status")
}

func (r *warehouseRepository) SoftDelete(orgID string) error {
	const query = `
		UPDATE platform.warehouse_connections
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE organization_id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.Exec(query, orgID)
	if err != nil {
		return errors.Wrap(err, "delete warehouse connection")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWarehouse(row *sql.Row) (models.WarehouseConnection, error) {
	var conn models.WarehouseConnection
	var config []byte
	err := row.Scan(
		&conn.ID,
		&conn.OrganizationID,
		&conn.BaseURL,
		&conn.KeyEncrypted,
		&conn.SchemaName,
		&conn.IsConnected,
		&conn.LastConnectedAt,
		&config,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.WarehouseConnection{}, ErrNotFound
		}
		return models.WarehouseConnection{}, err
	}
	conn.Config = json.RawMessage(config)
	return conn, nil
}
