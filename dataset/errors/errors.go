package errors

import (
	"fmt"
	"strings"
)

type InputNotFoundError struct {
	Err  error
	Path string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("input path %s does not exist: %s", e.Path, e.Err)
}

func (e *InputNotFoundError) Unwrap() error {
	return e.Err
}

type MissingColumnsError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("table %s is missing required column(s): %s",
		e.Table, strings.Join(e.Columns, ", "))
}

// ColumnConflictError is returned when two tables being merged carry the same non-key column
type ColumnConflictError struct {
	Columns []string
}

func (e *ColumnConflictError) Error() string {
	return fmt.Sprintf("column(s) present in both tables: %s", strings.Join(e.Columns, ", "))
}

type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Msg)
}
