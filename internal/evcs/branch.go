package evcs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Branch-capable commands. Same close/open discipline as the versioned
// commands, scoped to (root, branch). Branches are independent timelines of
// the same root; snapshots link into a DAG through parent_id, with merge
// provenance in merge_from_branch.

// CreateBranchCommand forks the current snapshot of FromBranch onto
// NewBranch. The source snapshot is not closed: branching does not consume
// the source branch's current state.
type CreateBranchCommand[T any, PT BranchablePtr[T]] struct {
	Meta       Metadata
	RootID     uuid.UUID
	NewBranch  string
	FromBranch string
}

func (c CreateBranchCommand[T, PT]) Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error) {
	entity := entityName[T]()
	rootColumn := RootColumn((*T)(nil))
	at := c.Meta.at()

	source, err := fetchCurrentOnBranch[T](ctx, tx, rootColumn, c.RootID, c.FromBranch)
	if err != nil {
		return nil, Receipt{}, err
	}
	if source == nil {
		return nil, Receipt{}, &NotFoundError{Entity: entity, RootID: c.RootID, Branch: c.FromBranch}
	}
	sourceSnap := PT(source)

	branched := *source
	branchedSnap := PT(&branched)
	branchedSnap.BeginSpan(uuid.New(), at, c.Meta.ActorID)
	branchedSnap.SetBranchName(c.NewBranch)
	parentID := sourceSnap.VersionID()
	branchedSnap.SetParentVersionID(&parentID)
	branchedSnap.SetMergeSource(nil)

	if err := insertVersion(ctx, tx, entity, branchedSnap, c.NewBranch); err != nil {
		return nil, Receipt{}, err
	}
	receipt := Receipt{
		Entity:       entity,
		RootID:       c.RootID,
		Branch:       c.NewBranch,
		NewVersionID: branchedSnap.VersionID(),
	}
	return &branched, receipt, nil
}

// UpdateOnBranchCommand is UpdateVersionCommand scoped to one branch; the
// close/open pair only touches that branch's current snapshot.
type UpdateOnBranchCommand[T any, PT BranchablePtr[T]] struct {
	Meta   Metadata
	RootID uuid.UUID
	Branch string
	Apply  func(PT)
}

func (c UpdateOnBranchCommand[T, PT]) Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error) {
	entity := entityName[T]()
	rootColumn := RootColumn((*T)(nil))
	at := c.Meta.at()

	cur, err := fetchCurrentOnBranch[T](ctx, tx, rootColumn, c.RootID, c.Branch)
	if err != nil {
		return nil, Receipt{}, err
	}
	if cur == nil {
		return nil, Receipt{}, &NotFoundError{Entity: entity, RootID: c.RootID, Branch: c.Branch}
	}
	curSnap := PT(cur)

	next := *cur
	nextSnap := PT(&next)
	nextSnap.BeginSpan(uuid.New(), at, c.Meta.ActorID)
	parentID := curSnap.VersionID()
	nextSnap.SetParentVersionID(&parentID)
	nextSnap.SetMergeSource(nil)
	if c.Apply != nil {
		c.Apply(nextSnap)
	}

	if err := closeVersion[T](ctx, tx, entity, curSnap, at); err != nil {
		return nil, Receipt{}, err
	}
	if err := insertVersion(ctx, tx, entity, nextSnap, c.Branch); err != nil {
		return nil, Receipt{}, err
	}

	prevID := curSnap.VersionID()
	receipt := Receipt{
		Entity:        entity,
		RootID:        c.RootID,
		Branch:        c.Branch,
		NewVersionID:  nextSnap.VersionID(),
		PrevVersionID: &prevID,
		ClosedAt:      &at,
	}
	return &next, receipt, nil
}

// SoftDeleteOnBranchCommand preserves the close/open invariant for
// branch-capable entities: it closes the current snapshot and opens a
// successor carrying the delete marker. Idempotent like its non-branch
// counterpart.
type SoftDeleteOnBranchCommand[T any, PT BranchablePtr[T]] struct {
	Meta   Metadata
	RootID uuid.UUID
	Branch string
}

func (c SoftDeleteOnBranchCommand[T, PT]) Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error) {
	entity := entityName[T]()
	rootColumn := RootColumn((*T)(nil))
	at := c.Meta.at()

	cur, err := fetchCurrentOnBranch[T](ctx, tx, rootColumn, c.RootID, c.Branch)
	if err != nil {
		return nil, Receipt{}, err
	}
	if cur == nil {
		// Already deleted (or never existed): find the open deleted span to
		// re-confirm, otherwise the root is genuinely absent.
		open, ferr := fetchOpenSpanOnBranch[T](ctx, tx, rootColumn, c.RootID, c.Branch)
		if ferr != nil {
			return nil, Receipt{}, ferr
		}
		if open != nil && PT(open).DeletedTime() != nil {
			return open, Receipt{Entity: entity, RootID: c.RootID, Branch: c.Branch, NewVersionID: PT(open).VersionID()}, nil
		}
		return nil, Receipt{}, &NotFoundError{Entity: entity, RootID: c.RootID, Branch: c.Branch}
	}
	curSnap := PT(cur)

	next := *cur
	nextSnap := PT(&next)
	nextSnap.BeginSpan(uuid.New(), at, c.Meta.ActorID)
	parentID := curSnap.VersionID()
	nextSnap.SetParentVersionID(&parentID)
	nextSnap.SetMergeSource(nil)
	nextSnap.MarkDeleted(at)

	if err := closeVersion[T](ctx, tx, entity, curSnap, at); err != nil {
		return nil, Receipt{}, err
	}
	if err := insertVersion(ctx, tx, entity, nextSnap, c.Branch); err != nil {
		return nil, Receipt{}, err
	}

	prevID := curSnap.VersionID()
	receipt := Receipt{
		Entity:        entity,
		RootID:        c.RootID,
		Branch:        c.Branch,
		NewVersionID:  nextSnap.VersionID(),
		PrevVersionID: &prevID,
		ClosedAt:      &at,
	}
	return &next, receipt, nil
}

// MergeBranchCommand folds SourceBranch's current content into TargetBranch.
// Overwrite strategy: the new target snapshot's fields are a full copy of
// the source's, no field-level reconciliation. Lineage stays with the target
// (parent_id = old target head) and provenance is recorded in
// merge_from_branch. The source branch is left untouched. The target must
// already exist; create-on-merge is out of scope.
type MergeBranchCommand[T any, PT BranchablePtr[T]] struct {
	Meta         Metadata
	RootID       uuid.UUID
	SourceBranch string
	TargetBranch string
}

func (c MergeBranchCommand[T, PT]) Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error) {
	entity := entityName[T]()
	rootColumn := RootColumn((*T)(nil))
	at := c.Meta.at()

	source, err := fetchCurrentOnBranch[T](ctx, tx, rootColumn, c.RootID, c.SourceBranch)
	if err != nil {
		return nil, Receipt{}, err
	}
	if source == nil {
		return nil, Receipt{}, &NotFoundError{Entity: entity, RootID: c.RootID, Branch: c.SourceBranch}
	}
	target, err := fetchCurrentOnBranch[T](ctx, tx, rootColumn, c.RootID, c.TargetBranch)
	if err != nil {
		return nil, Receipt{}, err
	}
	if target == nil {
		return nil, Receipt{}, &NotFoundError{Entity: entity, RootID: c.RootID, Branch: c.TargetBranch}
	}
	targetSnap := PT(target)

	merged := *source
	mergedSnap := PT(&merged)
	mergedSnap.BeginSpan(uuid.New(), at, c.Meta.ActorID)
	mergedSnap.SetBranchName(c.TargetBranch)
	parentID := targetSnap.VersionID()
	mergedSnap.SetParentVersionID(&parentID)
	mergeFrom := c.SourceBranch
	mergedSnap.SetMergeSource(&mergeFrom)

	if err := closeVersion[T](ctx, tx, entity, targetSnap, at); err != nil {
		return nil, Receipt{}, err
	}
	if err := insertVersion(ctx, tx, entity, mergedSnap, c.TargetBranch); err != nil {
		return nil, Receipt{}, err
	}

	prevID := targetSnap.VersionID()
	receipt := Receipt{
		Entity:        entity,
		RootID:        c.RootID,
		Branch:        c.TargetBranch,
		NewVersionID:  mergedSnap.VersionID(),
		PrevVersionID: &prevID,
		ClosedAt:      &at,
	}
	return &merged, receipt, nil
}

// RevertCommand restores historical content as a new forward snapshot. The
// target is ToVersionID when given, else the current snapshot's parent. The
// revert snapshot's parent is the current head, so history stays linear; no
// rows are rewritten.
type RevertCommand[T any, PT BranchablePtr[T]] struct {
	Meta        Metadata
	RootID      uuid.UUID
	Branch      string
	ToVersionID *uuid.UUID
}

func (c RevertCommand[T, PT]) Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error) {
	entity := entityName[T]()
	rootColumn := RootColumn((*T)(nil))
	at := c.Meta.at()

	cur, err := fetchCurrentOnBranch[T](ctx, tx, rootColumn, c.RootID, c.Branch)
	if err != nil {
		return nil, Receipt{}, err
	}
	if cur == nil {
		return nil, Receipt{}, &NotFoundError{Entity: entity, RootID: c.RootID, Branch: c.Branch}
	}
	curSnap := PT(cur)

	targetID := c.ToVersionID
	if targetID == nil {
		targetID = curSnap.ParentVersionID()
	}
	if targetID == nil {
		return nil, Receipt{}, &ValidationError{Reason: fmt.Sprintf("%s: nothing to revert to for root %s on branch %q", entity, c.RootID, c.Branch)}
	}

	var target T
	err = tx.WithContext(ctx).Where("id = ?", *targetID).First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Receipt{}, &ValidationError{Reason: fmt.Sprintf("%s: revert target %s does not exist", entity, *targetID)}
		}
		return nil, Receipt{}, &IntegrityError{Err: err}
	}
	if PT(&target).RootID() != c.RootID {
		return nil, Receipt{}, &ValidationError{Reason: fmt.Sprintf("%s: revert target %s belongs to a different root", entity, *targetID)}
	}

	reverted := target
	revertedSnap := PT(&reverted)
	revertedSnap.BeginSpan(uuid.New(), at, c.Meta.ActorID)
	revertedSnap.SetBranchName(c.Branch)
	parentID := curSnap.VersionID()
	revertedSnap.SetParentVersionID(&parentID)
	revertedSnap.SetMergeSource(nil)

	if err := closeVersion[T](ctx, tx, entity, curSnap, at); err != nil {
		return nil, Receipt{}, err
	}
	if err := insertVersion(ctx, tx, entity, revertedSnap, c.Branch); err != nil {
		return nil, Receipt{}, err
	}

	prevID := curSnap.VersionID()
	receipt := Receipt{
		Entity:        entity,
		RootID:        c.RootID,
		Branch:        c.Branch,
		NewVersionID:  revertedSnap.VersionID(),
		PrevVersionID: &prevID,
		ClosedAt:      &at,
	}
	return &reverted, receipt, nil
}
