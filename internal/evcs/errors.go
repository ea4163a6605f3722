package evcs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// NotFoundError is returned when an operation requires a current version and
// none exists for the (root, branch) it was aimed at.
type NotFoundError struct {
	Entity string
	RootID uuid.UUID
	Branch string
}

func (e *NotFoundError) Error() string {
	if e.Branch != "" {
		return fmt.Sprintf("%s: no current version for root %s on branch %q", e.Entity, e.RootID, e.Branch)
	}
	return fmt.Sprintf("%s: no current version for root %s", e.Entity, e.RootID)
}

// ValidationError is returned for structurally valid requests whose semantics
// cannot be satisfied (revert without a target, undo after an intervening
// operation, parent from a different root).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ConflictError is returned when a concurrent operation raced this one to
// close or open the current version. Callers may retry; the engine never does.
type ConflictError struct {
	Entity string
	RootID uuid.UUID
	Branch string
}

func (e *ConflictError) Error() string {
	if e.Branch != "" {
		return fmt.Sprintf("%s: concurrent version change for root %s on branch %q", e.Entity, e.RootID, e.Branch)
	}
	return fmt.Sprintf("%s: concurrent version change for root %s", e.Entity, e.RootID)
}

// IntegrityError wraps store-level constraint violations the engine did not
// anticipate. Fatal from the engine's point of view: logged, never retried.
type IntegrityError struct {
	Err error
}

func (e *IntegrityError) Error() string { return fmt.Sprintf("version store integrity: %v", e.Err) }
func (e *IntegrityError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// translateWriteError maps a store error on the close/open path into the
// engine taxonomy. A unique violation on the partial current-row index means
// another transaction opened a competing current version, which is a
// retryable conflict rather than corruption.
func translateWriteError(err error, entity string, rootID uuid.UUID, branch string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return &ConflictError{Entity: entity, RootID: rootID, Branch: branch}
	}
	return &IntegrityError{Err: err}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// sqlite (tests) reports constraint failures as plain strings.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}
