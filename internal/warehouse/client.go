// Package warehouse talks to an organization's external warehouse over its
// PostgREST-style interface: full-refresh data pushes, schema discovery, and
// connectivity probes.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tablo-data/tablo-api/internal/ingest"
)

const defaultBatchSize = 1000

// Endpoint carries everything one warehouse call needs. The APIKey is the
// just-in-time decrypted credential; Endpoint values are built per call and
// must not be retained or logged.
type Endpoint struct {
	BaseURL    string
	APIKey     string
	SchemaName string
}

type TableInfo struct {
	Name       string       `json:"name"`
	SchemaName string       `json:"schema_name"`
	Columns    []ColumnInfo `json:"columns"`
}

type ColumnInfo struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
}

// Client issues REST calls against warehouse endpoints. It holds no
// per-organization state and is safe for concurrent use.
type Client struct {
	httpClient       *http.Client
	logger           zerolog.Logger
	batchSize        int
	deleteTimeout    time.Duration
	insertTimeout    time.Duration
	discoveryTimeout time.Duration
}

type ClientOption func(*Client)

func WithBatchSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithTimeouts(delete, insert, discovery time.Duration) ClientOption {
	return func(c *Client) {
		if delete > 0 {
			c.deleteTimeout = delete
		}
		if insert > 0 {
			c.insertTimeout = insert
		}
		if discovery > 0 {
			c.discoveryTimeout = discovery
		}
	}
}

func NewClient(logger zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:       &http.Client{},
		logger:           logger.With().Str("component", "warehouse_client").Logger(),
		batchSize:        defaultBatchSize,
		deleteTimeout:    30 * time.Second,
		insertTimeout:    60 * time.Second,
		discoveryTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FullRefresh replaces the remote table's contents: delete everything, then
// insert the given rows in order, one batch per request. The returned count
// is the number of rows written, which on error reflects only the batches
// committed before the failure; those rows stay in the warehouse. The delete
// and the inserts are not one transaction -- the REST interface exposes no
// cross-statement boundary, so a crash in between leaves the table empty.
func (c *Client) FullRefresh(ctx context.Context, ep Endpoint, table string, rows []ingest.Row) (int64, error) {
	if err := c.deleteAllRows(ctx, ep, table); err != nil {
		return 0, err
	}

	var written int64
	for start := 0; start < len(rows); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return written, errors.Wrap(err, "sync cancelled")
		}

		end := start + c.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		if err := c.insertBatch(ctx, ep, table, batch); err != nil {
			return written, err
		}
		written += int64(len(batch))

		c.logger.Debug().
			Str("table", table).
			Int64("rows_written", written).
			Int("total_rows", len(rows)).
			Msg("batch inserted")
	}

	return written, nil
}

func (c *Client) deleteAllRows(ctx context.Context, ep Endpoint, table string) error {
	ctx, cancel := context.WithTimeout(ctx, c.deleteTimeout)
	defer cancel()

	// The negated-equality filter on the primary key matches every row.
	url := fmt.Sprintf("%s/rest/v1/%s?id=neq.", strings.TrimRight(ep.BaseURL, "/"), table)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return errors.Wrap(err, "build delete request")
	}
	setAuthHeaders(req, ep.APIKey)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "delete existing rows")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to delete existing rows: HTTP %d: %s", resp.StatusCode, readBody(resp.Body))
	}
	return nil
}

func (c *Client) insertBatch(ctx context.Context, ep Endpoint, table string, batch []ingest.Row) error {
	ctx, cancel := context.WithTimeout(ctx, c.insertTimeout)
	defer cancel()

	body, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "encode batch")
	}

	url := fmt.Sprintf("%s/rest/v1/%s", strings.TrimRight(ep.BaseURL, "/"), table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build insert request")
	}
	setAuthHeaders(req, ep.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "insert batch")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("failed to insert data: HTTP %d: %s", resp.StatusCode, readBody(resp.Body))
	}
	return nil
}

// ListTables derives table and column descriptors from the endpoint's
// self-describing schema document. Entries with the internal-prefix marker
// are excluded; column nullability defaults to true when unknown.
func (c *Client) ListTables(ctx context.Context, ep Endpoint) ([]TableInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.discoveryTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/rest/v1/", strings.TrimRight(ep.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build discovery request")
	}
	setAuthHeaders(req, ep.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch schema document")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to connect: HTTP %d", resp.StatusCode)
	}

	var doc struct {
		Definitions map[string]struct {
			Properties map[string]struct {
				Type string `json:"type"`
			} `json:"properties"`
		} `json:"definitions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode schema document")
	}

	tables := []TableInfo{}
	for name, def := range doc.Definitions {
		if strings.HasPrefix(name, "_") {
			continue
		}

		columns := []ColumnInfo{}
		for colName, colDef := range def.Properties {
			dataType := colDef.Type
			if dataType == "" {
				dataType = "unknown"
			}
			columns = append(columns, ColumnInfo{
				Name:       colName,
				DataType:   dataType,
				IsNullable: true,
			})
		}
		sort.Slice(columns, func(i, j int) bool { return columns[i].Name < columns[j].Name })

		tables = append(tables, TableInfo{
			Name:       name,
			SchemaName: ep.SchemaName,
			Columns:    columns,
		})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	return tables, nil
}

// Ping is the lightweight connectivity probe: a schema-document fetch that
// must come back 2xx.
func (c *Client) Ping(ctx context.Context, ep Endpoint) error {
	_, err := c.ListTables(ctx, ep)
	return err
}

func setAuthHeaders(req *http.Request, apiKey string) {
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

func readBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}
