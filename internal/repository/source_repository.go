package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tablo-data/tablo-api/internal/models"
)

type SourceRepository interface {
	// Create persists a source together with its inferred column schema in
	// one transaction.
	Create(source models.Source, schema []models.ColumnSchema) (models.Source, error)
	List(orgID string) ([]models.SourceListing, error)
	Get(orgID, sourceID string) (models.Source, error)
	// GetSchema returns the active (non-deleted) columns ordered by column_order.
	GetSchema(sourceID string) ([]models.ColumnSchema, error)
	SoftDelete(orgID, sourceID string) error
}

type sourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) SourceRepository {
	return &sourceRepository{db: db}
}

func (r *sourceRepository) Create(source models.Source, schema []models.ColumnSchema) (models.Source, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return models.Source{}, errors.Wrap(err, "begin create source")
	}
	defer tx.Rollback()

	if source.Config == nil {
		source.Config = json.RawMessage("{}")
	}

	const sourceQuery = `
		INSERT INTO platform.sources (organization_id, name, description, source_type, config, warehouse_table_name, created_by)
		SELECT $1, $2, $3, $4, $5, $6, $7
		FROM platform.organizations o
		WHERE o.id = $1 AND o.deleted_at IS NULL
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(sourceQuery,
		source.OrganizationID,
		source.Name,
		source.Description,
		source.SourceType,
		[]byte(source.Config),
		source.WarehouseTableName,
		source.CreatedBy,
	).Scan(&source.ID, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Source{}, ErrNotFound
		}
		return models.Source{}, errors.Wrap(err, "insert source")
	}

	const columnQuery = `
		INSERT INTO platform.column_schemas (source_id, column_name, column_type, column_order, is_nullable, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	for i := range schema {
		col := &schema[i]
		col.SourceID = source.ID
		metadata := col.Metadata
		if metadata == nil {
			metadata = json.RawMessage("{}")
		}
		if err := tx.QueryRow(columnQuery, source.ID, col.ColumnName, col.ColumnType, col.ColumnOrder, col.IsNullable, []byte(metadata)).Scan(&col.ID); err != nil {
			return models.Source{}, errors.Wrap(err, "insert column schema")
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Source{}, errors.Wrap(err, "commit create source")
	}
	return source, nil
}

func (r *sourceRepository) List(orgID string) ([]models.SourceListing, error) {
	const query = `
		SELECT
			s.id, s.name, s.source_type, s.warehouse_table_name, s.last_synced_at,
			COUNT(cs.id) FILTER (WHERE cs.deleted_at IS NULL) AS column_count,
			s.created_at
		FROM platform.sources s
		LEFT JOIN platform.column_schemas cs ON cs.source_id = s.id
		WHERE s.organization_id = $1 AND s.deleted_at IS NULL
		GROUP BY s.id
		ORDER BY s.created_at DESC
	`
	rows, err := r.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []models.SourceListing{}
	for rows.Next() {
		var l models.SourceListing
		if err := rows.Scan(&l.ID, &l.Name, &l.SourceType, &l.WarehouseTableName, &l.LastSyncedAt, &l.ColumnCount, &l.CreatedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (r *sourceRepository) Get(orgID, sourceID string) (models.Source, error) {
	var source models.Source
	var config []byte

	const query = `
		SELECT id, organization_id, name, description, source_type, config, warehouse_table_name, last_synced_at, created_by, created_at, updated_at
		FROM platform.sources
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	err := r.db.QueryRow(query, sourceID, orgID).Scan(
		&source.ID,
		&source.OrganizationID,
		&source.Name,
		&source.Description,
		&source.SourceType,
		&config,
		&source.WarehouseTableName,
		&source.LastSyncedAt,
		&source.CreatedBy,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Source{}, ErrNotFound
		}
		return models.Source{}, err
	}
	source.Config = json.RawMessage(config)
	return source, nil
}

func (r *sourceRepository) GetSchema(sourceID string) ([]models.ColumnSchema, error) {
	const query = `
		SELECT id, source_id, column_name, column_type, column_order, is_nullable, metadata
		FROM platform.column_schemas
		WHERE source_id = $1 AND deleted_at IS NULL
		ORDER BY column_order
	`
	rows, err := r.db.Query(query, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schema []models.ColumnSchema
	for rows.Next() {
		var col models.ColumnSchema
		var metadata []byte
		if err := rows.Scan(&col.ID, &col.SourceID, &col.ColumnName, &col.ColumnType, &col.ColumnOrder, &col.IsNullable, &metadata); err != nil {
			return nil, err
		}
		col.Metadata = json.RawMessage(metadata)
		schema = append(schema, col)
	}
	return schema, rows.Err()
}

func (r *sourceRepository) SoftDelete(orgID, sourceID string) error {
	const query = `
		UPDATE platform.sources
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	res, err := r.db.Exec(query, sourceID, orgID)
	if err != nil {
		return errors.Wrap(err, "delete source")
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
