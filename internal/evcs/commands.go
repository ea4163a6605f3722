package evcs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Versioned-entity commands. Every mutating command runs inside the caller's
// transaction and follows the same sequence: locate the current snapshot,
// validate, close it with a conditional UPDATE, insert the successor. Either
// the whole close/open pair applies or none of it does.

// CreateVersionCommand inserts the first snapshot of a new root. The caller
// builds the version value with business fields and root id set; the command
// stamps identity, validity, and audit fields.
//
// If a current snapshot already exists for the root, the partial unique index
// rejects the insert and the error surfaces as a conflict.
type CreateVersionCommand[T any, PT SnapshotPtr[T]] struct {
	Meta    Metadata
	Version PT
}

func (c CreateVersionCommand[T, PT]) Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error) {
	entity := entityName[T]()
	at := c.Meta.at()
	if c.Version.RootID() == uuid.Nil {
		c.Version.SetRootID(uuid.New())
	}
	c.Version.BeginSpan(uuid.New(), at, c.Meta.ActorID)
	if err := insertVersion(ctx, tx, entity, c.Version, ""); err != nil {
		return nil, Receipt{}, err
	}
	receipt := Receipt{
		Entity:       entity,
		RootID:       c.Version.RootID(),
		NewVersionID: c.Version.VersionID(),
	}
	return (*T)(c.Version), receipt, nil
}

// UpdateVersionCommand closes the current snapshot and opens its successor:
// a full value copy of the current state with Apply's changes layered on top
// and temporal/audit fields freshly assigned.
type UpdateVersionCommand[T any, PT SnapshotPtr[T]] struct {
	Meta   Metadata
	RootID uuid.UUID
	Apply  func(PT)
}

func (c UpdateVersionCommand[T, PT]) Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error) {
	entity := entityName[T]()
	rootColumn := RootColumn((*T)(nil))
	at := c.Meta.at()

	cur, err := fetchCurrent[T](ctx, tx, rootColumn, c.RootID)
	if err != nil {
		return nil, Receipt{}, err
	}
	if cur == nil {
		return nil, Receipt{}, &NotFoundError{Entity: entity, RootID: c.RootID}
	}
	curSnap := PT(cur)

	next := *cur
	nextSnap := PT(&next)
	nextSnap.BeginSpan(uuid.New(), at, c.Meta.ActorID)
	if c.Apply != nil {
		c.Apply(nextSnap)
	}

	if err := closeVersion[T](ctx, tx, entity, curSnap, at); err != nil {
		return nil, Receipt{}, err
	}
	if err := insertVersion(ctx, tx, entity, nextSnap, ""); err != nil {
		return nil, Receipt{}, err
	}

	prevID := curSnap.VersionID()
	receipt := Receipt{
		Entity:        entity,
		RootID:        c.RootID,
		NewVersionID:  nextSnap.VersionID(),
		PrevVersionID: &prevID,
		ClosedAt:      &at,
	}
	return &next, receipt, nil
}

// SoftDeleteCommand marks the open snapshot of a non-branch entity as
// deleted in place. The open span stays open; the delete marker is metadata
// layered over it, so undeleting later restores the same row. Idempotent:
// deleting an already-deleted root re-confirms the deletion.
type SoftDeleteCommand[T any, PT SnapshotPtr[T]] struct {
	Meta   Metadata
	RootID uuid.UUID
}

func (c SoftDeleteCommand[T, PT]) Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error) {
	entity := entityName[T]()
	rootColumn := RootColumn((*T)(nil))
	at := c.Meta.at()

	open, err := fetchOpenSpan[T](ctx, tx, rootColumn, c.RootID)
	if err != nil {
		return nil, Receipt{}, err
	}
	if open == nil {
		return nil, Receipt{}, &NotFoundError{Entity: entity, RootID: c.RootID}
	}
	snap := PT(open)
	receipt := Receipt{Entity: entity, RootID: c.RootID, NewVersionID: snap.VersionID()}
	if snap.DeletedTime() != nil {
		return open, receipt, nil
	}

	var model T
	res := tx.WithContext(ctx).Model(&model).
		Where("id = ?", snap.VersionID()).
		Where("deleted_at IS NULL").
		Update("deleted_at", at)
	if res.Error != nil {
		return nil, Receipt{}, translateWriteError(res.Error, entity, c.RootID, "")
	}
	// Zero rows means a concurrent delete won; the outcome is the same.
	snap.MarkDeleted(at)
	return open, receipt, nil
}

// UndeleteCommand clears the delete marker on the open snapshot, restoring
// the root to its pre-deletion state. No-op when the root is not deleted.
type UndeleteCommand[T any, PT SnapshotPtr[T]] struct {
	Meta   Metadata
	RootID uuid.UUID
}

func (c UndeleteCommand[T, PT]) Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error) {
	entity := entityName[T]()
	rootColumn := RootColumn((*T)(nil))

	open, err := fetchOpenSpan[T](ctx, tx, rootColumn, c.RootID)
	if err != nil {
		return nil, Receipt{}, err
	}
	if open == nil {
		return nil, Receipt{}, &NotFoundError{Entity: entity, RootID: c.RootID}
	}
	snap := PT(open)
	receipt := Receipt{Entity: entity, RootID: c.RootID, NewVersionID: snap.VersionID()}
	if snap.DeletedTime() == nil {
		return open, receipt, nil
	}

	var model T
	res := tx.WithContext(ctx).Model(&model).
		Where("id = ?", snap.VersionID()).
		Where("deleted_at IS NOT NULL").
		Update("deleted_at", nil)
	if res.Error != nil {
		return nil, Receipt{}, translateWriteError(res.Error, entity, c.RootID, "")
	}
	snap.ClearDeleted()
	return open, receipt, nil
}

// UndoCreate compensates a create: it removes every snapshot of the root.
// Precondition: the created snapshot is still the only one. Any intervening
// operation makes the undo ambiguous, so it is rejected instead of guessed
// at. Head-table cleanup belongs to the calling service.
func UndoCreate[T any, PT SnapshotPtr[T]](ctx context.Context, tx *gorm.DB, receipt Receipt) error {
	entity := entityName[T]()
	rootColumn := RootColumn((*T)(nil))

	var rows []T
	if err := tx.WithContext(ctx).Where(rootColumn+" = ?", receipt.RootID).Find(&rows).Error; err != nil {
		return &IntegrityError{Err: err}
	}
	if len(rows) == 0 {
		return &ValidationError{Reason: fmt.Sprintf("%s: undo create: no versions left for root %s", entity, receipt.RootID)}
	}
	if len(rows) > 1 || PT(&rows[0]).VersionID() != receipt.NewVersionID {
		return &ValidationError{Reason: fmt.Sprintf("%s: undo create: root %s was modified since creation", entity, receipt.RootID)}
	}
	var model T
	if err := tx.WithContext(ctx).Where(rootColumn+" = ?", receipt.RootID).Delete(&model).Error; err != nil {
		return &IntegrityError{Err: err}
	}
	return nil
}

// UndoUpdate compensates one close/open pair: it deletes the opened snapshot
// and reopens the one it closed. Precondition: the opened snapshot is still
// the current one and the closed snapshot still carries the bound this
// operation wrote. Otherwise the history has moved on and the undo is
// rejected with a ValidationError.
//
// Works for every command that returns a close/open receipt: updates on
// either entity kind, merges, and reverts. A receipt without PrevVersionID
// (create-branch) only deletes the opened snapshot.
func UndoUpdate[T any, PT SnapshotPtr[T]](ctx context.Context, tx *gorm.DB, receipt Receipt) error {
	entity := entityName[T]()

	var model T
	res := tx.WithContext(ctx).
		Where("id = ?", receipt.NewVersionID).
		Where("valid_to IS NULL").
		Delete(&model)
	if res.Error != nil {
		return &IntegrityError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &ValidationError{Reason: fmt.Sprintf("%s: undo: version %s is no longer current", entity, receipt.NewVersionID)}
	}

	if receipt.PrevVersionID == nil {
		return nil
	}
	reopen := tx.WithContext(ctx).Model(&model).
		Where("id = ?", *receipt.PrevVersionID)
	if receipt.ClosedAt != nil {
		reopen = reopen.Where("valid_to = ?", *receipt.ClosedAt)
	}
	res = reopen.Update("valid_to", nil)
	if res.Error != nil {
		return translateWriteError(res.Error, entity, receipt.RootID, receipt.Branch)
	}
	if res.RowsAffected == 0 {
		return &ValidationError{Reason: fmt.Sprintf("%s: undo: predecessor %s was modified since", entity, *receipt.PrevVersionID)}
	}
	return nil
}
