package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tablo-data/tablo-api/internal/authz"
	"github.com/tablo-data/tablo-api/internal/ingest"
	"github.com/tablo-data/tablo-api/internal/models"
	"github.com/tablo-data/tablo-api/internal/notification"
	"github.com/tablo-data/tablo-api/internal/repository"
	syncsvc "github.com/tablo-data/tablo-api/internal/sync"
)

// maxUploadBytes caps CSV uploads at 50MB.
const maxUploadBytes = 50 << 20

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type SourceHandler struct {
	repo          repository.SourceRepository
	syncService   *syncsvc.Service
	notifications notification.Service
	logger        zerolog.Logger
}

func NewSourceHandler(repo repository.SourceRepository, syncService *syncsvc.Service, notifications notification.Service, logger zerolog.Logger) *SourceHandler {
	return &SourceHandler{
		repo:          repo,
		syncService:   syncService,
		notifications: notifications,
		logger:        logger.With().Str("handler", "source").Logger(),
	}
}

type uploadResponse struct {
	SourceID    string                `json:"source_id"`
	Name        string                `json:"name"`
	RowCount    int                   `json:"row_count"`
	Columns     []models.ColumnSchema `json:"columns"`
	PreviewData []ingest.Row          `json:"preview_data"`
}

type sourceDetailResponse struct {
	models.Source
	SchemaColumns []models.ColumnSchema `json:"schema_columns"`
}

type previewResponse struct {
	Columns   []models.ColumnSchema `json:"columns"`
	Rows      []ingest.Row          `json:"rows"`
	TotalRows int                   `json:"total_rows"`
}

func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}

	listings, err := h.repo.List(orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list sources")
		http.Error(w, "Failed to list sources", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// UploadCSV ingests a CSV file as a new source: parse, infer the column
// schema, derive the warehouse table name, and stage the rows for sync.
func (h *SourceHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}
	userID, _ := authz.UserIDFromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "File too large. Maximum size is 50MB", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "CSV file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		http.Error(w, "Only CSV files are supported", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	tableName := strings.TrimSpace(r.FormValue("warehouse_table_name"))
	if tableName != "" && !tableNamePattern.MatchString(tableName) {
		http.Error(w, "Table name must be lowercase letters, digits and underscores", http.StatusBadRequest)
		return
	}
	if tableName == "" {
		tableName = ingest.SanitizeTableName(name)
	}

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	rows, columns, err := ingest.ParseCSV(content)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyDataset) {
			http.Error(w, "CSV file is empty", http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to parse CSV: "+err.Error(), http.StatusBadRequest)
		return
	}

	schema := ingest.InferSchema(rows, columns)

	config, err := json.Marshal(ingest.StagedConfig{
		OriginalFilename: header.Filename,
		RowCount:         len(rows),
		Columns:          columns,
		CSVData:          rows,
	})
	if err != nil {
		http.Error(w, "Failed to stage data", http.StatusInternalServerError)
		return
	}

	source := models.Source{
		OrganizationID:     orgID,
		Name:               name,
		SourceType:         models.SourceTypeCSV,
		Config:             config,
		WarehouseTableName: tableName,
	}
	if desc := strings.TrimSpace(r.FormValue("description")); desc != "" {
		source.Description = &desc
	}
	if userID != "" {
		source.CreatedBy = &userID
	}

	created, err := h.repo.Create(source, schema)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Organization not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create source")
		http.Error(w, "Failed to create source", http.StatusInternalServerError)
		return
	}

	if h.notifications != nil {
		_, err := h.notifications.Publish(r.Context(), notification.Event{
			OrganizationID: orgID,
			Event:          models.NotificationEventSourceCreated,
			Severity:       models.NotificationSeverityInfo,
			Title:          "Source created: " + created.Name,
			Message:        "Uploaded " + header.Filename + " with " + strconv.Itoa(len(rows)) + " rows.",
			Metadata:       map[string]interface{}{"source_id": created.ID},
		})
		if err != nil {
			h.logger.Warn().Err(err).Msg("failed to publish source_created notification")
		}
	}

	preview := rows
	if len(preview) > 10 {
		preview = preview[:10]
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		SourceID:    created.ID,
		Name:        created.Name,
		RowCount:    len(rows),
		Columns:     schema,
		PreviewData: preview,
	})
}

func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}
	sourceID := mux.Vars(r)["sourceID"]

	source, err := h.repo.Get(orgID, sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Source not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get source", http.StatusInternalServerError)
		return
	}

	schema, err := h.repo.GetSchema(sourceID)
	if err != nil {
		http.Error(w, "Failed to load schema", http.StatusInternalServerError)
		return
	}

	source.Config = publicConfig(source.Config)
	writeJSON(w, http.StatusOK, sourceDetailResponse{Source: source, SchemaColumns: schema})
}

func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}
	sourceID := mux.Vars(r)["sourceID"]

	if err := h.repo.SoftDelete(orgID, sourceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Source not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete source", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SourceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}
	sourceID := mux.Vars(r)["sourceID"]

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	source, err := h.repo.Get(orgID, sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Source not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get source", http.StatusInternalServerError)
		return
	}

	schema, err := h.repo.GetSchema(sourceID)
	if err != nil {
		http.Error(w, "Failed to load schema", http.StatusInternalServerError)
		return
	}

	resp := previewResponse{Columns: schema, Rows: []ingest.Row{}}
	if source.SourceType == models.SourceTypeCSV {
		rows, err := ingest.StagedRows(source.Config)
		if err != nil {
			http.Error(w, "Failed to decode staged data", http.StatusInternalServerError)
			return
		}
		resp.TotalRows = len(rows)
		if len(rows) > limit {
			rows = rows[:limit]
		}
		if rows != nil {
			resp.Rows = rows
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// TriggerSync kicks off a warehouse sync for the source. Precondition
// failures map to client errors; push failures come back as a failed outcome
// with its run id.
func (h *SourceHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}
	userID, _ := authz.UserIDFromRequest(r)
	sourceID := mux.Vars(r)["sourceID"]

	outcome, err := h.syncService.Sync(r.Context(), orgID, sourceID, userID)
	if err != nil {
		switch {
		case errors.Is(err, syncsvc.ErrSourceNotFound):
			http.Error(w, "Source not found", http.StatusNotFound)
		case errors.Is(err, syncsvc.ErrNoWarehouse),
			errors.Is(err, syncsvc.ErrEmptyDataset),
			errors.Is(err, syncsvc.ErrUnsupportedType):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error().Err(err).Str("source_id", sourceID).Msg("sync trigger failed")
			http.Error(w, "Failed to trigger sync", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *SourceHandler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}
	sourceID := mux.Vars(r)["sourceID"]

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.syncService.History(orgID, sourceID, limit)
	if err != nil {
		if errors.Is(err, syncsvc.ErrSourceNotFound) {
			http.Error(w, "Source not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load sync history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// publicConfig strips the staged row payload from a config document before
// it leaves the API.
func publicConfig(config json.RawMessage) json.RawMessage {
	if len(config) == 0 {
		return config
	}
	var staged ingest.StagedConfig
	if err := json.Unmarshal(config, &staged); err != nil {
		return json.RawMessage("{}")
	}
	staged.CSVData = nil
	out, err := json.Marshal(staged)
	if err != nil {
		return json.RawMessage("{}")
	}
	return out
}
