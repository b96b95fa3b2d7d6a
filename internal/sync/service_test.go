package sync

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablo-data/tablo-api/internal/ingest"
	"github.com/tablo-data/tablo-api/internal/models"
	"github.com/tablo-data/tablo-api/internal/repository"
	"github.com/tablo-data/tablo-api/internal/utils"
	"github.com/tablo-data/tablo-api/internal/warehouse"
)

type fakeSourceRepo struct {
	source models.Source
	schema []models.ColumnSchema
	err    error
}

func (f *fakeSourceRepo) Create(source models.Source, schema []models.ColumnSchema) (models.Source, error) {
	return source, nil
}

func (f *fakeSourceRepo) List(orgID string) ([]models.SourceListing, error) { return nil, nil }

func (f *fakeSourceRepo) Get(orgID, sourceID string) (models.Source, error) {
	if f.err != nil {
		return models.Source{}, f.err
	}
	if f.source.ID != sourceID || f.source.OrganizationID != orgID {
		return models.Source{}, repository.ErrNotFound
	}
	return f.source, nil
}

func (f *fakeSourceRepo) GetSchema(sourceID string) ([]models.ColumnSchema, error) {
	return f.schema, nil
}

func (f *fakeSourceRepo) SoftDelete(orgID, sourceID string) error { return nil }

type fakeRunRepo struct {
	created   []models.SyncRun
	succeeded map[string]int64
	failed    map[string]string
	details   map[string]map[string]interface{}
	nextID    int
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{
		succeeded: map[string]int64{},
		failed:    map[string]string{},
		details:   map[string]map[string]interface{}{},
	}
}

func (f *fakeRunRepo) Create(sourceID, triggeredBy string) (models.SyncRun, error) {
	f.nextID++
	run := models.SyncRun{
		ID:       "run-" + strconv.Itoa(f.nextID),
		SourceID: sourceID,
		Status:   models.SyncStatusPending,
	}
	f.created = append(f.created, run)
	return run, nil
}

func (f *fakeRunRepo) Start(runID string) error {
	for i := range f.created {
		if f.created[i].ID == runID {
			now := time.Now()
			f.created[i].Status = models.SyncStatusRunning
			f.created[i].StartedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeRunRepo) CompleteSuccess(runID, sourceID string, rowsSynced int64) error {
	f.succeeded[runID] = rowsSynced
	return nil
}

func (f *fakeRunRepo) CompleteFailure(runID, message string, details map[string]interface{}) error {
	f.failed[runID] = message
	f.details[runID] = details
	return nil
}

func (f *fakeRunRepo) ListBySource(sourceID string, limit int) ([]models.SyncRun, error) {
	return f.created, nil
}

type fakeWarehouseRepo struct {
	conn models.WarehouseConnection
	err  error
}

func (f *fakeWarehouseRepo) GetByOrg(orgID string) (models.WarehouseConnection, error) {
	if f.err != nil {
		return models.WarehouseConnection{}, f.err
	}
	return f.conn, nil
}

func (f *fakeWarehouseRepo) Create(conn models.WarehouseConnection) (models.WarehouseConnection, error) {
	return conn, nil
}

func (f *fakeWarehouseRepo) Update(conn models.WarehouseConnection) (models.WarehouseConnection, error) {
	return conn, nil
}

func (f *fakeWarehouseRepo) SetConnectionStatus(id string, connected bool, verifiedAt time.Time) error {
	return nil
}

func (f *fakeWarehouseRepo) SoftDelete(orgID string) error { return nil }

func newTestEncryptor(t *testing.T) *utils.Encryptor {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	enc, err := utils.NewEncryptor(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return enc
}

func stagedSource(t *testing.T, rows []ingest.Row) models.Source {
	t.Helper()
	config, err := json.Marshal(ingest.StagedConfig{RowCount: len(rows), CSVData: rows})
	require.NoError(t, err)
	return models.Source{
		ID:                 "src-1",
		OrganizationID:     "org-1",
		Name:               "Sales Data",
		SourceType:         models.SourceTypeCSV,
		Config:             config,
		WarehouseTableName: "sales_data",
	}
}

type harness struct {
	service  *Service
	sources  *fakeSourceRepo
	runs     *fakeRunRepo
	inserted *[][]ingest.Row
}

// newHarness wires a service against an in-memory warehouse endpoint.
// failBatch rejects the nth insert request (1-based); 0 accepts everything.
func newHarness(t *testing.T, source models.Source, failBatch int) *harness {
	t.Helper()
	encryptor := newTestEncryptor(t)

	var inserted [][]ingest.Row
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			requests++
			if failBatch > 0 && requests == failBatch {
				http.Error(w, "permission denied for table", http.StatusForbidden)
				return
			}
			var batch []ingest.Row
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
			inserted = append(inserted, batch)
			w.WriteHeader(http.StatusCreated)
		}
	}))
	t.Cleanup(server.Close)

	keyEncrypted, err := encryptor.Encrypt("warehouse-key")
	require.NoError(t, err)

	sources := &fakeSourceRepo{source: source}
	runs := newFakeRunRepo()
	warehouses := &fakeWarehouseRepo{conn: models.WarehouseConnection{
		ID:             "wh-1",
		OrganizationID: "org-1",
		BaseURL:        server.URL,
		KeyEncrypted:   keyEncrypted,
		SchemaName:     "public",
	}}

	service := NewService(sources, runs, warehouses,
		warehouse.NewClient(zerolog.Nop(), warehouse.WithBatchSize(2)),
		encryptor, nil, zerolog.Nop())

	return &harness{service: service, sources: sources, runs: runs, inserted: &inserted}
}

func TestSync_Success(t *testing.T) {
	rows := []ingest.Row{{"id": "1"}, {"id": "2"}, {"id": "3"}}
	h := newHarness(t, stagedSource(t, rows), 0)

	outcome, err := h.service.Sync(context.Background(), "org-1", "src-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusSuccess, outcome.Status)
	assert.Equal(t, "Successfully synced 3 rows", outcome.Message)
	require.Len(t, h.runs.created, 1)
	assert.Equal(t, int64(3), h.runs.succeeded[outcome.SyncRunID])
	assert.Len(t, *h.inserted, 2)
}

func TestSync_SourceNotFound(t *testing.T) {
	h := newHarness(t, stagedSource(t, []ingest.Row{{"id": "1"}}), 0)

	_, err := h.service.Sync(context.Background(), "org-1", "missing", "user-1")
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.Empty(t, h.runs.created)
}

func TestSync_NoWarehouseConnection(t *testing.T) {
	source := stagedSource(t, []ingest.Row{{"id": "1"}})
	runs := newFakeRunRepo()
	service := NewService(
		&fakeSourceRepo{source: source},
		runs,
		&fakeWarehouseRepo{err: repository.ErrNotFound},
		warehouse.NewClient(zerolog.Nop()),
		newTestEncryptor(t), nil, zerolog.Nop())

	_, err := service.Sync(context.Background(), "org-1", "src-1", "user-1")
	assert.ErrorIs(t, err, ErrNoWarehouse)
	assert.Empty(t, runs.created)
}

func TestSync_EmptyDatasetLeavesNoRun(t *testing.T) {
	h := newHarness(t, stagedSource(t, nil), 0)

	_, err := h.service.Sync(context.Background(), "org-1", "src-1", "user-1")
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Empty(t, h.runs.created)
}

func TestSync_UnsupportedSourceType(t *testing.T) {
	source := stagedSource(t, []ingest.Row{{"id": "1"}})
	source.SourceType = models.SourceTypePostgres
	h := newHarness(t, source, 0)

	_, err := h.service.Sync(context.Background(), "org-1", "src-1", "user-1")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Empty(t, h.runs.created)
}

func TestSync_FailureRecordsVerbatimMessageAndPartialCount(t *testing.T) {
	rows := []ingest.Row{{"id": "1"}, {"id": "2"}, {"id": "3"}, {"id": "4"}}
	h := newHarness(t, stagedSource(t, rows), 2) // second batch rejected

	outcome, err := h.service.Sync(context.Background(), "org-1", "src-1", "user-1")
	require.NoError(t, err, "push failures are outcomes, not errors")

	assert.Equal(t, models.SyncStatusFailed, outcome.Status)
	assert.Contains(t, outcome.Message, "Sync failed:")
	assert.Contains(t, outcome.Message, "permission denied for table")

	require.Len(t, h.runs.created, 1)
	runID := h.runs.created[0].ID
	assert.Contains(t, h.runs.failed[runID], "permission denied for table")
	assert.Equal(t, int64(2), h.runs.details[runID]["rows_written"])
	_, succeeded := h.runs.succeeded[runID]
	assert.False(t, succeeded)
}

func TestSync_ProjectsRowsOntoActiveSchema(t *testing.T) {
	rows := []ingest.Row{{"id": "1", "secret": "x"}, {"id": "2", "secret": "y"}}
	h := newHarness(t, stagedSource(t, rows), 0)
	h.sources.schema = []models.ColumnSchema{{ColumnName: "id", ColumnType: models.ColumnTypeInteger}}

	_, err := h.service.Sync(context.Background(), "org-1", "src-1", "user-1")
	require.NoError(t, err)

	require.Len(t, *h.inserted, 1)
	for _, row := range (*h.inserted)[0] {
		assert.NotContains(t, row, "secret")
		assert.Contains(t, row, "id")
	}
}

func TestSync_EachTriggerGetsItsOwnRun(t *testing.T) {
	rows := []ingest.Row{{"id": "1"}}
	h := newHarness(t, stagedSource(t, rows), 0)

	first, err := h.service.Sync(context.Background(), "org-1", "src-1", "user-1")
	require.NoError(t, err)
	second, err := h.service.Sync(context.Background(), "org-1", "src-1", "user-2")
	require.NoError(t, err)

	assert.NotEqual(t, first.SyncRunID, second.SyncRunID)
	assert.Len(t, h.runs.created, 2)
}

func TestHistory_UnknownSource(t *testing.T) {
	h := newHarness(t, stagedSource(t, []ingest.Row{{"id": "1"}}), 0)

	_, err := h.service.History("org-1", "missing", 10)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}
