package evcs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Metadata travels with every mutating command: who acted, why, and the
// operation timestamp that stamps both the closed and the opened span.
// It feeds audit fields only, never authorization.
type Metadata struct {
	ActorID     *uuid.UUID
	Description string
	Timestamp   time.Time
}

func (m Metadata) at() time.Time {
	if m.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return m.Timestamp
}

// Receipt is the journal a command hands back from Execute: exactly the ids
// needed to compensate the operation later. Commands keep no state between
// Execute and Undo, so one command value is safe to reuse.
type Receipt struct {
	Entity        string
	RootID        uuid.UUID
	Branch        string
	NewVersionID  uuid.UUID
	PrevVersionID *uuid.UUID
	ClosedAt      *time.Time
}

// currentScope appends the "current snapshot" predicate: validity open-ended
// and not soft-deleted. Commands and read paths must share this so their
// notions of "current" agree.
func currentScope(q *gorm.DB) *gorm.DB {
	return q.Where("valid_to IS NULL").Where("deleted_at IS NULL")
}

// containsScope is the "interval contains instant" predicate over the
// [valid_from, valid_to) column pair.
func containsScope(q *gorm.DB, at time.Time) *gorm.DB {
	return q.Where("valid_from <= ?", at).
		Where("(valid_to IS NULL OR valid_to > ?)", at)
}

func fetchCurrent[T any](ctx context.Context, tx *gorm.DB, rootColumn string, rootID uuid.UUID) (*T, error) {
	var row T
	err := currentScope(tx.WithContext(ctx).Where(rootColumn+" = ?", rootID)).
		Order("valid_from DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &IntegrityError{Err: err}
	}
	return &row, nil
}

func fetchCurrentOnBranch[T any](ctx context.Context, tx *gorm.DB, rootColumn string, rootID uuid.UUID, branch string) (*T, error) {
	var row T
	err := currentScope(tx.WithContext(ctx).
		Where(rootColumn+" = ?", rootID).
		Where("branch = ?", branch)).
		Order("valid_from DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &IntegrityError{Err: err}
	}
	return &row, nil
}

// fetchOpenSpan ignores the delete marker: it finds the open-ended row for a
// root even when that row says "currently deleted". Soft delete and undelete
// need this wider view.
func fetchOpenSpan[T any](ctx context.Context, tx *gorm.DB, rootColumn string, rootID uuid.UUID) (*T, error) {
	var row T
	err := tx.WithContext(ctx).
		Where(rootColumn+" = ?", rootID).
		Where("valid_to IS NULL").
		Order("valid_from DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &IntegrityError{Err: err}
	}
	return &row, nil
}

// fetchOpenSpanOnBranch is fetchOpenSpan scoped to one branch.
func fetchOpenSpanOnBranch[T any](ctx context.Context, tx *gorm.DB, rootColumn string, rootID uuid.UUID, branch string) (*T, error) {
	var row T
	err := tx.WithContext(ctx).
		Where(rootColumn+" = ?", rootID).
		Where("branch = ?", branch).
		Where("valid_to IS NULL").
		Order("valid_from DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &IntegrityError{Err: err}
	}
	return &row, nil
}

// closeVersion sets the upper bound of a snapshot's validity with a single
// conditional UPDATE. The WHERE valid_to IS NULL guard means two racing
// closers cannot both succeed; the loser sees zero rows and gets a conflict.
func closeVersion[T any](ctx context.Context, tx *gorm.DB, entity string, snap Snapshot, at time.Time) error {
	var model T
	res := tx.WithContext(ctx).Model(&model).
		Where("id = ?", snap.VersionID()).
		Where("valid_to IS NULL").
		Update("valid_to", at)
	if res.Error != nil {
		return translateWriteError(res.Error, entity, snap.RootID(), "")
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Entity: entity, RootID: snap.RootID()}
	}
	return nil
}

func insertVersion(ctx context.Context, tx *gorm.DB, entity string, snap Snapshot, branch string) error {
	if err := tx.WithContext(ctx).Create(snap).Error; err != nil {
		return translateWriteError(err, entity, snap.RootID(), branch)
	}
	return nil
}

func entityName[T any]() string {
	var zero T
	return typeName(zero)
}
