package domain

import (
	"fmt"
	"strings"
)

// ValidationResult reports whether a dataset satisfies the structural contract
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidationError is returned when an upload fails validation
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Reasons, "; "))
}

// ParseError indicates a malformed file or an unparseable cell.
// Row is 1-based over data rows; 0 means the error is not tied to a row.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("parse error at row %d, column %q (value %q): %v", e.Row, e.Column, e.Value, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
