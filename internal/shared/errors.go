package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Code is the machine readable error category surfaced to API clients.
type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeDuplicateNumber Code = "DUPLICATE_NUMBER"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeTransport       Code = "TRANSPORT"
	CodePartial         Code = "PARTIAL"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeInternal        Code = "INTERNAL"
)

var (
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateNumber is returned by the advisory number check before create.
	ErrDuplicateNumber = errors.New("duplicate record number")
	// ErrForbidden indicates a role or ownership violation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict is a storage level uniqueness race.
	ErrConflict = errors.New("conflict")
	// ErrTransport wraps failures of remote collaborators.
	ErrTransport = errors.New("transport failure")
	// ErrPartial marks a batch with mixed outcomes. It never fails a call.
	ErrPartial = errors.New("partial batch failure")
	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrValidation, CodeValidation},
	{ErrDuplicateNumber, CodeDuplicateNumber},
	{ErrForbidden, CodeForbidden},
	{ErrNotFound, CodeNotFound},
	{ErrConflict, CodeConflict},
	{ErrTransport, CodeTransport},
	{ErrPartial, CodePartial},
	{ErrUnauthorized, CodeUnauthorized},
}

// CodeOf returns the taxonomy code of err, or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Validationf builds a VALIDATION error with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// MapPgError translates pgx errors into the taxonomy. Unknown errors pass through.
func MapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		case "23514":
			return fmt.Errorf("%w: %s", ErrValidation, pgErr.ConstraintName)
		}
	}
	return err
}
