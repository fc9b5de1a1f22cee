package errors

import "fmt"

// ParseError wraps a specific error with context about where it occurred.
type ParseError struct {
	Line   int
	Record []string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %v (record: %v)", e.Line, e.Err, e.Record)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ColumnError reports a required input column that is absent from the header.
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingColumn, e.Column)
}

func (e *ColumnError) Unwrap() error {
	return ErrMissingColumn
}

// Malformed input errors. A row-level error drops the row; ErrMissingColumn
// and ErrNoValidRows reject the whole input.
var (
	ErrMissingColumn     = fmt.Errorf("missing required column")
	ErrInvalidFieldCount = fmt.Errorf("invalid field count")
	ErrInvalidTimestamp  = fmt.Errorf("invalid timestamp")
	ErrEmptyRecord       = fmt.Errorf("empty record")
	ErrNoValidRows       = fmt.Errorf("no parseable rows")
)
