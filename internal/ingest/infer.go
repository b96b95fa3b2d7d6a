package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tablo-data/tablo-api/internal/models"
)

// sampleLimit bounds how many rows are inspected per column so inference
// stays cheap on large uploads.
const sampleLimit = 100

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), // YYYY-MM-DD
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), // MM/DD/YYYY
	regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`), // DD-MM-YYYY
}

// InferSchema derives one ColumnSchema per column from sampled row values.
// Columns follow the given order and get dense order values from 0. A column
// is nullable if any sampled value is absent or empty; its type is decided by
// the first predicate that holds for every non-null sampled value, falling
// back to TEXT.
func InferSchema(rows []Row, columns []string) []models.ColumnSchema {
	sample := rows
	if len(sample) > sampleLimit {
		sample = sample[:sampleLimit]
	}

	schema := make([]models.ColumnSchema, 0, len(columns))
	for i, col := range columns {
		nullable := false
		nonNull := make([]string, 0, len(sample))
		for _, row := range sample {
			v, ok := row[col]
			if !ok || v == "" {
				nullable = true
				continue
			}
			nonNull = append(nonNull, v)
		}

		schema = append(schema, models.ColumnSchema{
			ColumnName:  col,
			ColumnType:  inferColumnType(nonNull),
			ColumnOrder: i,
			IsNullable:  nullable,
		})
	}
	return schema
}

// inferColumnType applies the precedence INTEGER > DOUBLE > BOOLEAN > DATE,
// defaulting to TEXT. An all-null column is TEXT.
func inferColumnType(values []string) models.ColumnType {
	if len(values) == 0 {
		return models.ColumnTypeText
	}
	if allMatch(values, isInteger) {
		return models.ColumnTypeInteger
	}
	if allMatch(values, isFloat) {
		return models.ColumnTypeDouble
	}
	if allMatch(values, isBoolean) {
		return models.ColumnTypeBoolean
	}
	if allMatch(values, isDate) {
		return models.ColumnTypeDate
	}
	return models.ColumnTypeText
}

func allMatch(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func isInteger(value string) bool {
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

func isFloat(value string) bool {
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

func isBoolean(value string) bool {
	switch strings.ToLower(value) {
	case "true", "false", "yes", "no", "1", "0":
		return true
	}
	return false
}

func isDate(value string) bool {
	for _, p := range datePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}
