package repositories

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrInvalidColumn  = errors.New("invalid column name")
	ErrInvalidTable   = errors.New("invalid table name")
	ErrRowMissingData = errors.New("row has no columns")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateTable(table string) error {
	if !identifierPattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return nil
}

func validateColumns(columns []string) error {
	for _, column := range columns {
		if !identifierPattern.MatchString(column) {
			return fmt.Errorf("%w: %q", ErrInvalidColumn, column)
		}
	}
	return nil
}
