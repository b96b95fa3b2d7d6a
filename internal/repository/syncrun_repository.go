package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tablo-data/tablo-api/internal/models"
)

type SyncRunRepository interface {
	// Create records a new pending run. The row is persisted before any
	// warehouse I/O happens, so crashed attempts stay observable in history.
	Create(sourceID, triggeredBy string) (models.SyncRun, error)
	// Start moves a pending run to running and stamps started_at.
	Start(runID string) error
	// CompleteSuccess moves the run to its terminal success state and stamps
	// the source's last_synced_at in the same transaction.
	CompleteSuccess(runID, sourceID string, rowsSynced int64) error
	// CompleteFailure moves the run to its terminal failed state, keeping the
	// causal error message verbatim. Details carry diagnostic context such as
	// the partial row count written before the failure.
	CompleteFailure(runID, message string, details map[string]interface{}) error
	// ListBySource returns run history, most recent first.
	ListBySource(sourceID string, limit int) ([]models.SyncRun, error)
}

type syncRunRepository struct {
	db *sql.DB
}

func NewSyncRunRepository(db *sql.DB) SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) Create(sourceID, triggeredBy string) (models.SyncRun, error) {
	run := models.SyncRun{
		SourceID: sourceID,
		Status:   models.SyncStatusPending,
	}

	var triggered interface{}
	if triggeredBy != "" {
		triggered = triggeredBy
		run.TriggeredBy = &triggeredBy
	}

	const query = `
		INSERT INTO platform.sync_runs (source_id, status, triggered_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(query, sourceID, run.Status, triggered).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return models.SyncRun{}, errors.Wrap(err, "create sync run")
	}
	return run, nil
}

func (r *syncRunRepository) Start(runID string) error {
	const query = `
		UPDATE platform.sync_runs
		SET status = $1, started_at = NOW()
		WHERE id = $2 AND status = $3
	`
	res, err := r.db.Exec(query, models.SyncStatusRunning, runID, models.SyncStatusPending)
	if err != nil {
		return errors.Wrap(err, "start sync run")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("sync run is not pending")
	}
	return nil
}

func (r *syncRunRepository) CompleteSuccess(runID, sourceID string, rowsSynced int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin complete sync run")
	}
	defer tx.Rollback()

	const runQuery = `
		UPDATE platform.sync_runs
		SET status = $1, completed_at = NOW(), rows_synced = $2
		WHERE id = $3 AND completed_at IS NULL
	`
	res, err := tx.Exec(runQuery, models.SyncStatusSuccess, rowsSynced, runID)
	if err != nil {
		return errors.Wrap(err, "complete sync run")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("sync run already completed")
	}

	const sourceQuery = `
		UPDATE platform.sources
		SET last_synced_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.Exec(sourceQuery, sourceID); err != nil {
		return errors.Wrap(err, "stamp source last_synced_at")
	}

	return tx.Commit()
}

func (r *syncRunRepository) CompleteFailure(runID, message string, details map[string]interface{}) error {
	var detailsJSON interface{}
	if len(details) > 0 {
		bytes, err := json.Marshal(details)
		if err != nil {
			return errors.Wrap(err, "marshal run details")
		}
		detailsJSON = bytes
	}

	const query = `
		UPDATE platform.sync_runs
		SET status = $1, completed_at = NOW(), error_message = $2, details = COALESCE($3, details)
		WHERE id = $4 AND completed_at IS NULL
	`
	res, err := r.db.Exec(query, models.SyncStatusFailed, message, detailsJSON, runID)
	if err != nil {
		return errors.Wrap(err, "fail sync run")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("sync run already completed")
	}
	return nil
}

func (r *syncRunRepository) ListBySource(sourceID string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	const query = `
		SELECT id, source_id, status, started_at, completed_at, rows_synced, error_message, details, triggered_by, created_at
		FROM platform.sync_runs
		WHERE source_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(query, sourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []models.SyncRun{}
	for rows.Next() {
		var run models.SyncRun
		var details []byte
		if err := rows.Scan(
			&run.ID,
			&run.SourceID,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.RowsSynced,
			&run.ErrorMessage,
			&details,
			&run.TriggeredBy,
			&run.CreatedAt,
		); err != nil {
			return nil, err
		}
		run.Details = json.RawMessage(details)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
