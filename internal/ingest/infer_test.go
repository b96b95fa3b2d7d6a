package ingest

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablo-data/tablo-api/internal/models"
)

func TestInferSchema_TypePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		values   []string
		expected models.ColumnType
	}{
		{
			name:     "all integers",
			values:   []string{"1", "42", "-7", "0"},
			expected: models.ColumnTypeInteger,
		},
		{
			name:     "integers with a decimal becomes double",
			values:   []string{"1", "2.5", "3"},
			expected: models.ColumnTypeDouble,
		},
		{
			name:     "scientific notation is double",
			values:   []string{"1e3", "2.5"},
			expected: models.ColumnTypeDouble,
		},
		{
			name:     "true false yes no",
			values:   []string{"true", "FALSE", "Yes", "no"},
			expected: models.ColumnTypeBoolean,
		},
		{
			name:     "all zeros and ones are integer not boolean",
			values:   []string{"1", "0", "1"},
			expected: models.ColumnTypeInteger,
		},
		{
			name:     "iso dates",
			values:   []string{"2024-01-15", "2023-12-31"},
			expected: models.ColumnTypeDate,
		},
		{
			name:     "us slash dates",
			values:   []string{"01/15/2024", "12/31/2023"},
			expected: models.ColumnTypeDate,
		},
		{
			name:     "dash dates",
			values:   []string{"15-01-2024"},
			expected: models.ColumnTypeDate,
		},
		{
			name:     "mixed date formats still date",
			values:   []string{"2024-01-15", "01/15/2024"},
			expected: models.ColumnTypeDate,
		},
		{
			name:     "one free-text value degrades to text",
			values:   []string{"2024-01-15", "next tuesday"},
			expected: models.ColumnTypeText,
		},
		{
			name:     "plain strings",
			values:   []string{"alice", "bob"},
			expected: models.ColumnTypeText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]Row, len(tt.values))
			for i, v := range tt.values {
				rows[i] = Row{"col": v}
			}

			schema := InferSchema(rows, []string{"col"})
			require.Len(t, schema, 1)
			assert.Equal(t, tt.expected, schema[0].ColumnType)
			assert.False(t, schema[0].IsNullable)
		})
	}
}

func TestInferSchema_Nullability(t *testing.T) {
	rows := []Row{
		{"id": "1", "name": "alice", "score": "10"},
		{"id": "2", "name": "", "score": "20"},
		{"id": "3", "name": "carol"},
	}

	schema := InferSchema(rows, []string{"id", "name", "score"})
	require.Len(t, schema, 3)

	assert.False(t, schema[0].IsNullable, "id has a value in every row")
	assert.True(t, schema[1].IsNullable, "name has an empty value")
	assert.True(t, schema[2].IsNullable, "score is missing in one row")

	// Empty values do not poison typing of the rest.
	assert.Equal(t, models.ColumnTypeInteger, schema[2].ColumnType)
}

func TestInferSchema_AllNullColumnIsText(t *testing.T) {
	rows := []Row{{"empty": ""}, {"empty": ""}}

	schema := InferSchema(rows, []string{"empty"})
	require.Len(t, schema, 1)
	assert.Equal(t, models.ColumnTypeText, schema[0].ColumnType)
	assert.True(t, schema[0].IsNullable)
}

func TestInferSchema_ColumnOrderIsDense(t *testing.T) {
	rows := []Row{{"a": "1", "b": "x", "c": "true"}}

	schema := InferSchema(rows, []string{"a", "b", "c"})
	require.Len(t, schema, 3)
	for i, col := range schema {
		assert.Equal(t, i, col.ColumnOrder)
	}
	assert.Equal(t, "a", schema[0].ColumnName)
	assert.Equal(t, "b", schema[1].ColumnName)
	assert.Equal(t, "c", schema[2].ColumnName)
}

func TestInferSchema_SamplingBound(t *testing.T) {
	// First 100 rows are integers; the junk after the sample window must not
	// change the verdict.
	rows := make([]Row, 0, sampleLimit+50)
	for i := 0; i < sampleLimit; i++ {
		rows = append(rows, Row{"n": strconv.Itoa(i)})
	}
	for i := 0; i < 50; i++ {
		rows = append(rows, Row{"n": "not a number"})
	}

	schema := InferSchema(rows, []string{"n"})
	require.Len(t, schema, 1)
	assert.Equal(t, models.ColumnTypeInteger, schema[0].ColumnType)
}

func TestInferSchema_NoRows(t *testing.T) {
	schema := InferSchema(nil, []string{"a", "b"})
	require.Len(t, schema, 2)
	for _, col := range schema {
		assert.Equal(t, models.ColumnTypeText, col.ColumnType)
	}
}
