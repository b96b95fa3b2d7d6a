package ingest

import (
	"regexp"
	"strings"
)

// FallbackTableName is used when sanitizing leaves nothing usable.
const FallbackTableName = "untitled_source"

var (
	invalidTableChars = regexp.MustCompile(`[^a-z0-9]`)
	leadingDigits     = regexp.MustCompile(`^[0-9]+`)
	repeatUnderscores = regexp.MustCompile(`_+`)
)

// SanitizeTableName maps a human-provided name to a valid lowercase SQL
// identifier. The result always matches ^[a-z_][a-z0-9_]*$ and sanitizing is
// idempotent: an already-sanitized name comes back unchanged.
func SanitizeTableName(name string) string {
	sanitized := invalidTableChars.ReplaceAllString(strings.ToLower(name), "_")

	// Trimming underscores can re-expose a digit run (e.g. "1 2" -> "_2"),
	// so strip and trim until stable.
	for {
		stripped := leadingDigits.ReplaceAllString(sanitized, "")
		stripped = repeatUnderscores.ReplaceAllString(stripped, "_")
		stripped = strings.Trim(stripped, "_")
		if stripped == sanitized {
			break
		}
		sanitized = stripped
	}

	if sanitized == "" {
		return FallbackTableName
	}
	return sanitized
}
