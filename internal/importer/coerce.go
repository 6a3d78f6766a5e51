package importer

import (
	"database/sql"
	"strconv"
	"strings"
)

// flagValue reports whether a single-letter yes/no extract code means yes.
// Anything other than Y (case-insensitive) coerces to false, including
// absent and malformed values.
func flagValue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "Y")
}

// clean trims whitespace and maps blank strings to NULL, so presentation
// code sees a single "no value" sentinel instead of empty strings.
func clean(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullFloat parses a float column, coercing blank or malformed values to
// NULL rather than failing the row.
func nullFloat(s string) (sql.NullFloat64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, false
	}
	return sql.NullFloat64{Float64: f, Valid: true}, true
}

// nullInt parses an integer column, coercing blank or malformed values to
// NULL rather than failing the row.
func nullInt(s string) (sql.NullInt64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullInt64{}, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return sql.NullInt64{}, false
	}
	return sql.NullInt64{Int64: n, Valid: true}, true
}
