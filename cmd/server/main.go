package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/tablo-data/tablo-api/internal/config"
	"github.com/tablo-data/tablo-api/internal/handlers"
	"github.com/tablo-data/tablo-api/internal/middleware"
	"github.com/tablo-data/tablo-api/internal/migration"
	"github.com/tablo-data/tablo-api/internal/notification"
	"github.com/tablo-data/tablo-api/internal/repository"
	"github.com/tablo-data/tablo-api/internal/routes"
	syncsvc "github.com/tablo-data/tablo-api/internal/sync"
	"github.com/tablo-data/tablo-api/internal/utils"
	"github.com/tablo-data/tablo-api/internal/warehouse"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config        *config.Config
	db            *sql.DB
	logger        zerolog.Logger
	notifications notification.Service
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	goose.SetLogger(migration.NewGooseAdapter(logger))

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Initialize notification service.
	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := notification.NewService(notificationRepo, logger)

	// Create the application instance.
	app := &application{
		config:        cfg,
		db:            db,
		logger:        logger,
		notifications: notificationService,
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	// Repositories
	sourceRepo := repository.NewSourceRepository(app.db)
	syncRunRepo := repository.NewSyncRunRepository(app.db)
	warehouseRepo := repository.NewWarehouseRepository(app.db)

	// Credential encryption for warehouse API keys.
	encryptor, err := utils.NewEncryptor(app.config.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryptor")
	}

	// Warehouse REST client and services.
	warehouseClient := warehouse.NewClient(logger,
		warehouse.WithBatchSize(app.config.Warehouse.BatchSize),
		warehouse.WithTimeouts(
			app.config.Warehouse.DeleteTimeout,
			app.config.Warehouse.InsertTimeout,
			app.config.Warehouse.DiscoveryTimeout,
		),
	)
	warehouseService := warehouse.NewService(warehouseRepo, warehouseClient, encryptor, logger)
	syncService := syncsvc.NewService(sourceRepo, syncRunRepo, warehouseRepo, warehouseClient, encryptor, app.notifications, logger)

	// Handlers
	authHandler := handlers.NewAuthHandler(app.db, app.config, logger)
	sourceHandler := handlers.NewSourceHandler(sourceRepo, syncService, app.notifications, logger)
	warehouseHandler := handlers.NewWarehouseHandler(warehouseService, app.notifications, logger)
	notificationHandler := handlers.NewNotificationHandler(app.notifications, logger)

	return routes.NewRouter(routes.Handlers{
		Auth:          authHandler,
		Source:        sourceHandler,
		Warehouse:     warehouseHandler,
		Notifications: notificationHandler,
	})
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
