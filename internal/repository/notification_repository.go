package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/tablo-data/tablo-api/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error)
	ListRecent(ctx context.Context, orgID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, orgID, notificationID string) (models.Notification, error)
}

type notificationRepository struct {
	db *sql.DB
}

type CreateNotificationParams struct {
	OrganizationID *string
	Event          models.NotificationEvent
	Severity       models.NotificationSeverity
	Title          string
	Message        string
	Metadata       map[string]interface{}
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error) {
	const query = `
		INSERT INTO platform.notifications (organization_id, event_type, severity, title, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, organization_id, event_type, severity, title, message, metadata, created_at, read_at
	`

	var orgID interface{}
	if params.OrganizationID != nil && strings.TrimSpace(*params.OrganizationID) != "" {
		orgID = strings.TrimSpace(*params.OrganizationID)
	}

	var metadata interface{}
	if len(params.Metadata) > 0 {
		bytes, err := json.Marshal(params.Metadata)
		if err != nil {
			return models.Notification{}, errors.Wrap(err, "marshal metadata")
		}
		metadata = bytes
	}

	row := r.db.QueryRowContext(ctx, query, orgID, params.Event, params.Severity, params.Title, params.Message, metadata)
	return scanNotification(row)
}

func (r *notificationRepository) ListRecent(ctx context.Context, orgID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	const query = `
		SELECT id, organization_id, event_type, severity, title, message, metadata, created_at, read_at
		FROM platform.notifications
		WHERE organization_id IS NULL OR organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, strings.TrimSpace(orgID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notif)
	}
	return notifications, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, orgID, notificationID string) (models.Notification, error) {
	const query = `
		UPDATE platform.notifications
		SET read_at = NOW()
		WHERE id = $1 AND (organization_id IS NULL OR organization_id = $2)
		RETURNING id, organization_id, event_type, severity, title, message, metadata, created_at, read_at
	`
	row := r.db.QueryRowContext(ctx, query, strings.TrimSpace(notificationID), strings.TrimSpace(orgID))
	return scanNotification(row)
}

func scanNotification(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Notification, error) {
	var (
		notif       models.Notification
		orgID       sql.NullString
		metadataRaw []byte
		readAt      sql.NullTime
	)

	if err := scanner.Scan(
		&notif.ID,
		&orgID,
		&notif.EventType,
		&notif.Severity,
		&notif.Title,
		&notif.Message,
		&metadataRaw,
		&notif.CreatedAt,
		&readAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Notification{}, ErrNotFound
		}
		return models.Notification{}, err
	}

	if orgID.Valid {
		notif.OrganizationID = &orgID.String
	}
	if len(metadataRaw) > 0 {
		notif.Metadata = json.RawMessage(metadataRaw)
	}
	if readAt.Valid {
		notif.ReadAt = &readAt.Time
	}
	return notif, nil
}
