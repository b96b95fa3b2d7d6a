package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tablo-data/tablo-api/internal/authz"
	"github.com/tablo-data/tablo-api/internal/notification"
	"github.com/tablo-data/tablo-api/internal/repository"
)

type NotificationHandler struct {
	service notification.Service
	logger  zerolog.Logger
}

func NewNotificationHandler(service notification.Service, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("handler", "notification").Logger(),
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	notifications, err := h.service.ListRecent(r.Context(), orgID, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing organization context", http.StatusUnauthorized)
		return
	}
	notificationID := mux.Vars(r)["notificationID"]

	notif, err := h.service.MarkRead(r.Context(), orgID, notificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Notification not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to mark notification read")
		http.Error(w, "Failed to mark notification read", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notif)
}
