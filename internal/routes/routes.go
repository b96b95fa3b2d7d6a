package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tablo-data/tablo-api/internal/authz"
	"github.com/tablo-data/tablo-api/internal/handlers"
	"github.com/tablo-data/tablo-api/internal/models"
)

type Handlers struct {
	Auth          *handlers.AuthHandler
	Source        *handlers.SourceHandler
	Warehouse     *handlers.WarehouseHandler
	Notifications *handlers.NotificationHandler
}

// NewRouter sets up the API routes.
func NewRouter(h Handlers) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", h.Auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", h.Auth.Login).Methods(http.MethodPost)

	// Everything under /api/orgs/{orgID} requires a token whose org claim
	// matches the path.
	org := router.PathPrefix("/api/orgs/{orgID}").Subrouter()
	org.Use(h.Auth.JWTMiddleware, authz.RequireOrg)

	org.HandleFunc("/sources", h.Source.List).Methods(http.MethodGet)
	org.HandleFunc("/sources/csv", h.Source.UploadCSV).Methods(http.MethodPost)
	org.HandleFunc("/sources/{sourceID}", h.Source.Get).Methods(http.MethodGet)
	org.HandleFunc("/sources/{sourceID}", h.Source.Delete).Methods(http.MethodDelete)
	org.HandleFunc("/sources/{sourceID}/preview", h.Source.Preview).Methods(http.MethodGet)
	org.HandleFunc("/sources/{sourceID}/sync", h.Source.TriggerSync).Methods(http.MethodPost)
	org.HandleFunc("/sources/{sourceID}/runs", h.Source.SyncHistory).Methods(http.MethodGet)

	org.HandleFunc("/warehouse", h.Warehouse.Status).Methods(http.MethodGet)
	org.HandleFunc("/warehouse/test", h.Warehouse.Test).Methods(http.MethodPost)
	org.HandleFunc("/warehouse/tables", h.Warehouse.Tables).Methods(http.MethodGet)

	// Warehouse mutations are admin-only.
	admin := org.PathPrefix("/warehouse").Subrouter()
	admin.Use(authz.RequireRole(models.RoleAdmin))
	admin.HandleFunc("", h.Warehouse.Create).Methods(http.MethodPost)
	admin.HandleFunc("", h.Warehouse.Update).Methods(http.MethodPut)
	admin.HandleFunc("", h.Warehouse.Delete).Methods(http.MethodDelete)

	org.HandleFunc("/notifications", h.Notifications.List).Methods(http.MethodGet)
	org.HandleFunc("/notifications/{notificationID}/read", h.Notifications.MarkRead).Methods(http.MethodPost)

	return router
}
