package ingest

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// StagedConfig is the shape of a source's config map while it transiently
// stages uploaded rows under "csv_data".
type StagedConfig struct {
	OriginalFilename string   `json:"original_filename,omitempty"`
	RowCount         int      `json:"row_count"`
	Columns          []string `json:"columns,omitempty"`
	CSVData          []Row    `json:"csv_data,omitempty"`
}

// StagedRows extracts the staged row payload from a source config document.
func StagedRows(config json.RawMessage) ([]Row, error) {
	if len(config) == 0 {
		return nil, nil
	}
	var staged StagedConfig
	if err := json.Unmarshal(config, &staged); err != nil {
		return nil, errors.Wrap(err, "decode staged rows")
	}
	return staged.CSVData, nil
}
