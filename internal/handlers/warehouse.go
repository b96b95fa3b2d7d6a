package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tablo-data/tablo-api/internal/authz"
	"github.com/tablo-data/tablo-api/internal/models"
	"github.com/tablo-data/tablo-api/internal/notification"
	"github.com/tablo-data/tablo-api/internal/repository"
	"github.com/tablo-data/tablo-api/internal/warehouse"
)

type WarehouseHandler struct {
	service       *warehouse.Service
	notifications notification.Service
	logger        zerolog.Logger
}

func NewWarehouseHandler(service *warehouse.Service, notifications notification.Service, logger zerolog.Logger) *WarehouseHandler {
	return &WarehouseHandler{
		service:       service,
		notifications: notifications,
		logger:        logger.With().Str("handler", "warehouse").Logger(),
	}
}

type warehouseRequest struct {
	BaseURL    string `json:"base_url"`
	APIKey     string `json:"api_key"`
	SchemaName string `json:"schema_name"`
}

func (r *warehouseRequest) validate() error {
	r.BaseURL = strings.TrimRight(strings.TrimSpace(r.BaseURL), "/")
	r.APIKey = strings.TrimSpace(r.APIKey)
	r.SchemaName = strings.TrimSpace(r.SchemaName)

	if r.BaseURL == "" {
		return errors.New("base_url is required")
	}
	parsed, err := url.Parse(r.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return errors.New("base_url must be a valid http(s) URL")
	}
	if r.APIKey == "" {
		return errors.New("api_key is required")
	}
	if r.SchemaName == "" {
		r.SchemaName = "public"
	}
	return nil
}

func (h *WarehouseHandler) Status(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}

	status, err := h.service.Status(orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load warehouse status")
		http.Error(w, "Failed to load warehouse status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *WarehouseHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}

	var req warehouseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.service.Create(orgID, req.BaseURL, req.APIKey, req.SchemaName)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			http.Error(w, "A warehouse connection already exists for this organization", http.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create warehouse connection")
		http.Error(w, "Failed to create warehouse connection", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

func (h *WarehouseHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}

	var req warehouseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.service.Update(orgID, req.BaseURL, req.APIKey, req.SchemaName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "No warehouse connection configured", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to update warehouse connection")
		http.Error(w, "Failed to update warehouse connection", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// Test probes the warehouse and records the result. A failing probe is a 200
// with success=false, not an error status.
func (h *WarehouseHandler) Test(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}

	result, err := h.service.TestConnection(r.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("warehouse test failed")
		http.Error(w, "Failed to test warehouse connection", http.StatusInternalServerError)
		return
	}

	if h.notifications != nil {
		if result.Success {
			status, statusErr := h.service.Status(orgID)
			if statusErr == nil {
				if err := h.notifications.NotifyWarehouseConnected(r.Context(), orgID, status.BaseURL); err != nil {
					h.logger.Warn().Err(err).Msg("failed to publish warehouse_connected notification")
				}
			}
		} else if result.Message != "No warehouse connection configured" {
			_, err := h.notifications.Publish(r.Context(), notification.Event{
				OrganizationID: orgID,
				Event:          models.NotificationEventWarehouseUnreachable,
				Severity:       models.NotificationSeverityWarning,
				Title:          "Warehouse unreachable",
				Message:        result.Message,
			})
			if err != nil {
				h.logger.Warn().Err(err).Msg("failed to publish warehouse_unreachable notification")
			}
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *WarehouseHandler) Tables(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}

	tables, err := h.service.ListTables(r.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list warehouse tables")
		http.Error(w, "Failed to list warehouse tables", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (h *WarehouseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}

	if err := h.service.Delete(orgID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "No warehouse connection configured", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete warehouse connection")
		http.Error(w, "Failed to delete warehouse connection", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
