package domain

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// NotFoundError reports a missing entity. Never retried.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports malformed input, rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// BusinessError reports a domain-rule violation, e.g. insufficient stock.
type BusinessError struct {
	Reason string
}

func (e *BusinessError) Error() string { return e.Reason }

// ConflictError reports a duplicate unique key or a duplicated request.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// UnexpectedError wraps a store failure that has no domain meaning.
// Eligible for bounded retry in batch operations.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string { return "unexpected error: " + e.Err.Error() }
func (e *UnexpectedError) Unwrap() error { return e.Err }

func NewNotFound(entity, id string) error     { return &NotFoundError{Entity: entity, ID: id} }
func NewValidation(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }
func NewBusiness(format string, args ...any) error {
	return &BusinessError{Reason: fmt.Sprintf(format, args...)}
}
func NewConflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err belongs to the taxonomy of expected
// failures. Domain errors are final: the transaction manager never retries
// them.
func IsDomainError(err error) bool {
	var nf *NotFoundError
	var ve *ValidationError
	var be *BusinessError
	var ce *ConflictError
	return errors.As(err, &nf) || errors.As(err, &ve) || errors.As(err, &be) || errors.As(err, &ce)
}

const mysqlErrDuplicateEntry = 1062

// ClassifyStoreError maps a raw store failure onto the taxonomy so that no
// unclassified error crosses the repository boundary.
func ClassifyStoreError(entity string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFound(entity, "")
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
		return NewConflict("%s already exists", entity)
	}
	return &UnexpectedError{Err: err}
}
