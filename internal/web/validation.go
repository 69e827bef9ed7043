// internal/web/validation.go
package web

import (
	"regexp"
	"sort"
	"strings"
)

var isbnPattern = regexp.MustCompile(`^([0-9]{10}|[0-9]{13})$`)

// ValidISBN reports whether isbn is made of exactly 10 or 13 digits.
func ValidISBN(isbn string) bool {
	return isbnPattern.MatchString(isbn)
}

// ValidationError maps field names to the first problem found with them.
type ValidationError map[string]string

func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has an error.
func (v ValidationError) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Err returns v as an error, or nil when no field failed.
func (v ValidationError) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
