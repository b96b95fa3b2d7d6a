package ingest

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTableName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "mixed punctuation and case",
			input:    "My Sales Data #1!",
			expected: "my_sales_data_1",
		},
		{
			name:     "already valid",
			input:    "orders_2024",
			expected: "orders_2024",
		},
		{
			name:     "leading digits stripped",
			input:    "2024 orders",
			expected: "orders",
		},
		{
			name:     "repeated separators collapse",
			input:    "a  --  b",
			expected: "a_b",
		},
		{
			name:     "leading and trailing underscores trimmed",
			input:    "_hidden_",
			expected: "hidden",
		},
		{
			name:     "unicode and symbols only",
			input:    "!!!",
			expected: FallbackTableName,
		},
		{
			name:     "digits only",
			input:    "12345",
			expected: FallbackTableName,
		},
		{
			name:     "digit runs interleaved with separators",
			input:    "1 2",
			expected: FallbackTableName,
		},
		{
			name:     "empty string",
			input:    "",
			expected: FallbackTableName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeTableName(tt.input))
		})
	}
}

func TestSanitizeTableName_Idempotent(t *testing.T) {
	inputs := []string{"My Sales Data #1!", "2024 orders", "1 2", "", "orders_2024", "Δата"}
	for _, in := range inputs {
		once := SanitizeTableName(in)
		assert.Equal(t, once, SanitizeTableName(once), "input %q", in)
	}
}

func TestSanitizeTableName_AlwaysValidIdentifier(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	inputs := []string{
		"My Sales Data #1!", "2024 orders", "1 2", "", "___", "a", "9lives",
		"customers (eu)", "Q3-revenue", "αβγ",
	}
	for _, in := range inputs {
		out := SanitizeTableName(in)
		assert.True(t, valid.MatchString(out), "input %q produced %q", in, out)
	}
}
