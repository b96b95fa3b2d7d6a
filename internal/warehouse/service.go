package warehouse

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tablo-data/tablo-api/internal/models"
	"github.com/tablo-data/tablo-api/internal/repository"
	"github.com/tablo-data/tablo-api/internal/utils"
)

var ErrNoConnection = errors.New("no warehouse connection configured")

// ConnectionStatus is the caller-facing view of an organization's warehouse.
type ConnectionStatus struct {
	Connected       bool       `json:"connected"`
	HasWarehouse    bool       `json:"has_warehouse"`
	BaseURL         string     `json:"base_url,omitempty"`
	SchemaName      string     `json:"schema_name,omitempty"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
}

// TestResult is the structured outcome of a connectivity probe. Probe
// failures are results, not errors: nothing escapes past this boundary.
type TestResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	TablesFound *int   `json:"tables_found,omitempty"`
}

// Service manages per-organization warehouse connections: credential
// encryption at rest, connectivity probes, and schema discovery.
type Service struct {
	repo      repository.WarehouseRepository
	client    *Client
	encryptor *utils.Encryptor
	logger    zerolog.Logger
}

func NewService(repo repository.WarehouseRepository, client *Client, encryptor *utils.Encryptor, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		client:    client,
		encryptor: encryptor,
		logger:    logger.With().Str("component", "warehouse_service").Logger(),
	}
}

func (s *Service) Status(orgID string) (ConnectionStatus, error) {
	conn, err := s.repo.GetByOrg(orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ConnectionStatus{}, nil
		}
		return ConnectionStatus{}, err
	}

	return ConnectionStatus{
		Connected:       conn.IsConnected,
		HasWarehouse:    true,
		BaseURL:         conn.BaseURL,
		SchemaName:      conn.SchemaName,
		LastConnectedAt: conn.LastConnectedAt,
	}, nil
}

func (s *Service) Create(orgID, baseURL, apiKey, schemaName string) (models.WarehouseConnection, error) {
	encrypted, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return models.WarehouseConnection{}, errors.Wrap(err, "encrypt warehouse key")
	}

	return s.repo.Create(models.WarehouseConnection{
		OrganizationID: orgID,
		BaseURL:        baseURL,
		KeyEncrypted:   encrypted,
		SchemaName:     schemaName,
	})
}

func (s *Service) Update(orgID, baseURL, apiKey, schemaName string) (models.WarehouseConnection, error) {
	encrypted, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return models.WarehouseConnection{}, errors.Wrap(err, "encrypt warehouse key")
	}

	if schemaName == "" {
		schemaName = "public"
	}
	return s.repo.Update(models.WarehouseConnection{
		OrganizationID: orgID,
		BaseURL:        baseURL,
		KeyEncrypted:   encrypted,
		SchemaName:     schemaName,
	})
}

// TestConnection probes the warehouse and records the outcome on the
// connection record. Network failures and bad credentials come back as a
// failed TestResult, never as an error.
func (s *Service) TestConnection(ctx context.Context, orgID string) (TestResult, error) {
	conn, err := s.repo.GetByOrg(orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TestResult{Success: false, Message: "No warehouse connection configured"}, nil
		}
		return TestResult{}, err
	}

	ep, err := s.endpointFor(conn)
	if err != nil {
		return TestResult{}, err
	}

	tables, err := s.client.ListTables(ctx, ep)
	if err != nil {
		s.logger.Warn().Err(err).Str("organization_id", orgID).Msg("warehouse connectivity probe failed")
		if statusErr := s.repo.SetConnectionStatus(conn.ID, false, time.Time{}); statusErr != nil {
			return TestResult{}, statusErr
		}
		return TestResult{Success: false, Message: "Connection failed: " + err.Error()}, nil
	}

	if err := s.repo.SetConnectionStatus(conn.ID, true, time.Now().UTC()); err != nil {
		return TestResult{}, err
	}

	count := len(tables)
	return TestResult{Success: true, Message: "Connection successful", TablesFound: &count}, nil
}

// ListTables returns the discovery listing, or an empty list when no
// connection exists or the warehouse is unreachable.
func (s *Service) ListTables(ctx context.Context, orgID string) ([]TableInfo, error) {
	conn, err := s.repo.GetByOrg(orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []TableInfo{}, nil
		}
		return nil, err
	}

	ep, err := s.endpointFor(conn)
	if err != nil {
		return nil, err
	}

	tables, err := s.client.ListTables(ctx, ep)
	if err != nil {
		s.logger.Warn().Err(err).Str("organization_id", orgID).Msg("warehouse table discovery failed")
		return []TableInfo{}, nil
	}
	return tables, nil
}

func (s *Service) Delete(orgID string) error {
	return s.repo.SoftDelete(orgID)
}

// endpointFor decrypts the stored credential just-in-time. The plaintext key
// lives only on the returned Endpoint for the duration of one call.
func (s *Service) endpointFor(conn models.WarehouseConnection) (Endpoint, error) {
	apiKey, err := s.encryptor.Decrypt(conn.KeyEncrypted)
	if err != nil {
		return Endpoint{}, errors.Wrap(err, "decrypt warehouse key")
	}
	return Endpoint{
		BaseURL:    conn.BaseURL,
		APIKey:     apiKey,
		SchemaName: conn.SchemaName,
	}, nil
}
