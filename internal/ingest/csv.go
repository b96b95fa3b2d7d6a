// Package ingest turns raw uploaded tabular data into typed source schemas:
// CSV parsing, bounded-sample schema inference, and warehouse table naming.
package ingest

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/pkg/errors"
)

// Row is one record keyed by column name. Values are the raw text from the
// upload; typing happens at inference time, not parse time.
type Row map[string]string

var ErrEmptyDataset = errors.New("dataset contains no data rows")

// ParseCSV reads an uploaded CSV payload into rows plus the header order.
// The header order is preserved separately because Go maps do not keep it,
// and the inferred schema must match the file's column order exactly.
func ParseCSV(content []byte) ([]Row, []string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "read csv header")
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "read csv record")
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, nil, ErrEmptyDataset
	}
	return rows, header, nil
}
