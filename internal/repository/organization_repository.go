package repository

import (
	"database/sql"

	"github.com/pkg/errors"
	"github.com/tablo-data/tablo-api/internal/models"
)

type OrganizationRepository interface {
	Create(name string) (models.Organization, error)
	Get(orgID string) (models.Organization, error)
}

type organizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) Create(name string) (models.Organization, error) {
	org := models.Organization{Name: name}
	const query = `
		INSERT INTO platform.organizations (name)
		VALUES ($1)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(query, name).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return models.Organization{}, errors.Wrap(err, "create organization")
	}
	return org, nil
}

func (r *organizationRepository) Get(orgID string) (models.Organization, error) {
	var org models.Organization
	const query = `
		SELECT id, name, created_at, updated_at
		FROM platform.organizations
		WHERE id = $1 AND deleted_at IS NULL
	`
	err := r.db.QueryRow(query, orgID).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Organization{}, ErrNotFound
		}
		return models.Organization{}, err
	}
	return org, nil
}
