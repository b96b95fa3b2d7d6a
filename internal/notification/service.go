// Package notification maintains the per-organization event feed: sync
// lifecycle outcomes and warehouse connectivity changes.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tablo-data/tablo-api/internal/models"
	"github.com/tablo-data/tablo-api/internal/repository"
)

type Event struct {
	OrganizationID string
	Event          models.NotificationEvent
	Severity       models.NotificationSeverity
	Title          string
	Message        string
	Metadata       map[string]interface{}
}

type Service interface {
	Publish(ctx context.Context, evt Event) (models.Notification, error)
	NotifySyncSucceeded(ctx context.Context, orgID, sourceID, runID, sourceName string, rowsSynced int64) error
	NotifySyncFailed(ctx context.Context, orgID, sourceID, runID, sourceName, reason string) error
	NotifyWarehouseConnected(ctx context.Context, orgID, baseURL string) error
	ListRecent(ctx context.Context, orgID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, orgID, notificationID string) (models.Notification, error)
}

type service struct {
	repo   repository.NotificationRepository
	logger zerolog.Logger
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *service) Publish(ctx context.Context, evt Event) (models.Notification, error) {
	if evt.Event == "" {
		return models.Notification{}, fmt.Errorf("event type is required")
	}
	if evt.Severity == "" {
		evt.Severity = models.NotificationSeverityInfo
	}
	title := strings.TrimSpace(evt.Title)
	if title == "" {
		title = string(evt.Event)
	}
	params := repository.CreateNotificationParams{
		Event:    evt.Event,
		Severity: evt.Severity,
		Title:    title,
		Message:  strings.TrimSpace(evt.Message),
		Metadata: evt.Metadata,
	}
	if oid := strings.TrimSpace(evt.OrganizationID); oid != "" {
		params.OrganizationID = &oid
	}

	notif, err := s.repo.Create(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(evt.Event)).Msg("failed to persist notification")
		return models.Notification{}, err
	}
	return notif, nil
}

func (s *service) NotifySyncSucceeded(ctx context.Context, orgID, sourceID, runID, sourceName string, rowsSynced int64) error {
	_, err := s.Publish(ctx, Event{
		OrganizationID: orgID,
		Event:          models.NotificationEventSyncSucceeded,
		Severity:       models.NotificationSeverityInfo,
		Title:          fmt.Sprintf("Sync succeeded: %s", sourceName),
		Message:        fmt.Sprintf("Source %s synced %d rows to the warehouse.", sourceName, rowsSynced),
		Metadata: map[string]interface{}{
			"source_id":   sourceID,
			"sync_run_id": runID,
			"rows_synced": rowsSynced,
		},
	})
	return err
}

func (s *service) NotifySyncFailed(ctx context.Context, orgID, sourceID, runID, sourceName, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Unknown error"
	}
	_, err := s.Publish(ctx, Event{
		OrganizationID: orgID,
		Event:          models.NotificationEventSyncFailed,
		Severity:       models.NotificationSeverityError,
		Title:          fmt.Sprintf("Sync failed: %s", sourceName),
		Message:        fmt.Sprintf("Source %s sync failed: %s", sourceName, reason),
		Metadata: map[string]interface{}{
			"source_id":   sourceID,
			"sync_run_id": runID,
			"reason":      reason,
		},
	})
	return err
}

func (s *service) NotifyWarehouseConnected(ctx context.Context, orgID, baseURL string) error {
	_, err := s.Publish(ctx, Event{
		OrganizationID: orgID,
		Event:          models.NotificationEventWarehouseConnected,
		Severity:       models.NotificationSeverityInfo,
		Title:          "Warehouse connected",
		Message:        fmt.Sprintf("Warehouse at %s verified successfully.", baseURL),
		Metadata:       map[string]interface{}{"base_url": baseURL},
	})
	return err
}

func (s *service) ListRecent(ctx context.Context, orgID string, limit int) ([]models.Notification, error) {
	return s.repo.ListRecent(ctx, orgID, limit)
}

func (s *service) MarkRead(ctx context.Context, orgID, notificationID string) (models.Notification, error) {
	return s.repo.MarkRead(ctx, orgID, notificationID)
}
