package sheetsql

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error values. Callers match them with errors.Is.
var (
	// ErrSourceUnavailable indicates the workbook could not be opened after all retries
	ErrSourceUnavailable = errors.New("sheetsql: source unavailable")

	// ErrUnsupportedFormat indicates an unsupported file format
	ErrUnsupportedFormat = errors.New("sheetsql: unsupported file format")

	// ErrNoSheets indicates the workbook contains no sheets
	ErrNoSheets = errors.New("sheetsql: workbook has no sheets")

	// ErrDestinationLocked indicates another writer holds the destination store
	ErrDestinationLocked = errors.New("sheetsql: destination store is locked")

	// ErrIndexCreation indicates a secondary index could not be created
	ErrIndexCreation = errors.New("sheetsql: index creation failed")

	// ErrUnknownView indicates a report name that no table, strategy or fallback serves
	ErrUnknownView = errors.New("sheetsql: unknown view")

	// ErrInvalidIdentifier indicates a name that cannot be quoted safely
	ErrInvalidIdentifier = errors.New("sheetsql: invalid identifier")
)

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	Source    string
	TableName string
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, source string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		Source:    source,
	}
}

// WithTable adds table context to the error
func (ec *ErrorContext) WithTable(tableName string) *ErrorContext {
	ec.TableName = tableName
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	parts := []string{fmt.Sprintf("sheetsql: %s failed", ec.Operation)}

	if ec.Source != "" {
		parts = append(parts, "source: "+ec.Source)
	}
	if ec.TableName != "" {
		parts = append(parts, "table: "+ec.TableName)
	}
	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	msg := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", msg, baseErr)
	}
	return errors.New(msg)
}
