package features

import (
	"fmt"
	"strings"
)

// SchemaError reports a table with no usable close-price or date column.
type SchemaError struct {
	Columns []string
	Reason  string
}

func (e *SchemaError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no close or adj close column"
	}
	quoted := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return fmt.Sprintf("features: %s (columns: [%s])", reason, strings.Join(quoted, ", "))
}

// InsufficientDataError reports fewer valid rows than the training floor.
type InsufficientDataError struct {
	Rows int
	Min  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("features: insufficient data: %d valid rows, need at least %d", e.Rows, e.Min)
}

// DateParseError is returned in strict mode for a date cell that cannot be parsed.
type DateParseError struct {
	Row   int
	Value any
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("features: unparseable date %v at row %d", e.Value, e.Row)
}
