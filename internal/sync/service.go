// Package sync orchestrates the end-to-end push of a source's staged data
// into the organization's warehouse, recording every attempt as a run.
package sync

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tablo-data/tablo-api/internal/ingest"
	"github.com/tablo-data/tablo-api/internal/models"
	"github.com/tablo-data/tablo-api/internal/notification"
	"github.com/tablo-data/tablo-api/internal/repository"
	"github.com/tablo-data/tablo-api/internal/utils"
	"github.com/tablo-data/tablo-api/internal/warehouse"
	"golang.org/x/sync/singleflight"
)

// Precondition failures: rejected before any sync run is created.
var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrNoWarehouse     = errors.New("no warehouse connection configured")
	ErrEmptyDataset    = errors.New("no data to sync")
	ErrUnsupportedType = errors.New("source type sync not implemented")
)

// Outcome is what a sync trigger returns to callers. Failures during the
// push surface here as a failed outcome, never as a raw error.
type Outcome struct {
	SyncRunID string            `json:"sync_run_id"`
	Status    models.SyncStatus `json:"status"`
	Message   string            `json:"message"`
}

type Service struct {
	sources       repository.SourceRepository
	runs          repository.SyncRunRepository
	warehouses    repository.WarehouseRepository
	client        *warehouse.Client
	encryptor     *utils.Encryptor
	notifications notification.Service
	logger        zerolog.Logger

	// group coalesces concurrent syncs of the same source: the second caller
	// shares the in-flight run instead of racing a second full refresh.
	group singleflight.Group
}

func NewService(
	sources repository.SourceRepository,
	runs repository.SyncRunRepository,
	warehouses repository.WarehouseRepository,
	client *warehouse.Client,
	encryptor *utils.Encryptor,
	notifications notification.Service,
	logger zerolog.Logger,
) *Service {
	return &Service{
		sources:       sources,
		runs:          runs,
		warehouses:    warehouses,
		client:        client,
		encryptor:     encryptor,
		notifications: notifications,
		logger:        logger.With().Str("component", "sync_service").Logger(),
	}
}

// Sync pushes a source's staged rows to the warehouse as a full refresh.
// Precondition failures (missing source or connection, unsupported kind,
// empty payload) return an error and leave no run behind. Once a run is
// created it always reaches exactly one terminal state.
func (s *Service) Sync(ctx context.Context, orgID, sourceID, userID string) (Outcome, error) {
	v, err, _ := s.group.Do(sourceID, func() (interface{}, error) {
		return s.sync(ctx, orgID, sourceID, userID)
	})
	if err != nil {
		return Outcome{}, err
	}
	return v.(Outcome), nil
}

func (s *Service) sync(ctx context.Context, orgID, sourceID, userID string) (Outcome, error) {
	source, err := s.sources.Get(orgID, sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Outcome{}, ErrSourceNotFound
		}
		return Outcome{}, err
	}

	conn, err := s.warehouses.GetByOrg(orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Outcome{}, ErrNoWarehouse
		}
		return Outcome{}, err
	}

	rows, err := s.extractRows(source)
	if err != nil {
		return Outcome{}, err
	}

	// From here every attempt is observable in history: the run row is
	// persisted before any warehouse I/O.
	run, err := s.runs.Create(sourceID, userID)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.runs.Start(run.ID); err != nil {
		return s.fail(ctx, source, run, 0, err)
	}

	written, err := s.push(ctx, conn, source, rows)
	if err != nil {
		return s.fail(ctx, source, run, written, err)
	}

	if err := s.runs.CompleteSuccess(run.ID, source.ID, written); err != nil {
		return Outcome{}, err
	}
	s.logger.Info().
		Str("source_id", source.ID).
		Str("sync_run_id", run.ID).
		Int64("rows_synced", written).
		Msg("sync completed")

	if s.notifications != nil {
		if err := s.notifications.NotifySyncSucceeded(ctx, orgID, source.ID, run.ID, source.Name, written); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish sync notification")
		}
	}

	return Outcome{
		SyncRunID: run.ID,
		Status:    models.SyncStatusSuccess,
		Message:   fmt.Sprintf("Successfully synced %d rows", written),
	}, nil
}

func (s *Service) extractRows(source models.Source) ([]ingest.Row, error) {
	if source.SourceType != models.SourceTypeCSV {
		return nil, errors.Wrapf(ErrUnsupportedType, "source type %s", source.SourceType)
	}
	rows, err := ingest.StagedRows(source.Config)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	return rows, nil
}

func (s *Service) push(ctx context.Context, conn models.WarehouseConnection, source models.Source, rows []ingest.Row) (int64, error) {
	apiKey, err := s.encryptor.Decrypt(conn.KeyEncrypted)
	if err != nil {
		return 0, errors.Wrap(err, "decrypt warehouse key")
	}
	ep := warehouse.Endpoint{
		BaseURL:    conn.BaseURL,
		APIKey:     apiKey,
		SchemaName: conn.SchemaName,
	}

	table := source.WarehouseTableName
	if table == "" {
		table = ingest.SanitizeTableName(source.Name)
	}

	schema, err := s.sources.GetSchema(source.ID)
	if err != nil {
		return 0, err
	}

	return s.client.FullRefresh(ctx, ep, table, projectRows(rows, schema))
}

// projectRows restricts rows to the source's active columns, so values for
// soft-deleted columns never reach the warehouse.
func projectRows(rows []ingest.Row, schema []models.ColumnSchema) []ingest.Row {
	if len(schema) == 0 {
		return rows
	}
	projected := make([]ingest.Row, 0, len(rows))
	for _, row := range rows {
		out := make(ingest.Row, len(schema))
		for _, col := range schema {
			if v, ok := row[col.ColumnName]; ok {
				out[col.ColumnName] = v
			}
		}
		projected = append(projected, out)
	}
	return projected
}

// fail records the terminal failed state with the causal message verbatim.
// Rows committed before the failure stay in the warehouse; the count is kept
// in the run details for diagnosis.
func (s *Service) fail(ctx context.Context, source models.Source, run models.SyncRun, written int64, cause error) (Outcome, error) {
	details := map[string]interface{}{}
	if written > 0 {
		details["rows_written"] = written
	}
	if err := s.runs.CompleteFailure(run.ID, cause.Error(), details); err != nil {
		s.logger.Error().Err(err).Str("sync_run_id", run.ID).Msg("failed to record sync failure")
		return Outcome{}, err
	}
	s.logger.Warn().
		Str("source_id", source.ID).
		Str("sync_run_id", run.ID).
		Int64("rows_written", written).
		Err(cause).
		Msg("sync failed")

	if s.notifications != nil {
		if err := s.notifications.NotifySyncFailed(ctx, source.OrganizationID, source.ID, run.ID, source.Name, cause.Error()); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish sync notification")
		}
	}

	return Outcome{
		SyncRunID: run.ID,
		Status:    models.SyncStatusFailed,
		Message:   "Sync failed: " + cause.Error(),
	}, nil
}

// History returns a source's runs, most recent first.
func (s *Service) History(orgID, sourceID string, limit int) ([]models.SyncRun, error) {
	if _, err := s.sources.Get(orgID, sourceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}
	return s.runs.ListBySource(sourceID, limit)
}
