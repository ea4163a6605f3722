package evcs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelworks/orgvault/internal/logger"
)

// BranchableService is the façade for branch-capable entities. It threads a
// branch name through every operation; an empty branch means MainBranch.
type BranchableService[T any, PT BranchablePtr[T]] struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBranchableService[T any, PT BranchablePtr[T]](db *gorm.DB, log *logger.Logger) *BranchableService[T, PT] {
	serviceLog := log.With("service", "BranchableService", "entity", entityName[T]())
	return &BranchableService[T, PT]{db: db, log: serviceLog}
}

func branchOrMain(branch string) string {
	if branch == "" {
		return MainBranch
	}
	return branch
}

func (s *BranchableService[T, PT]) GetByVersionID(ctx context.Context, id uuid.UUID) (*T, error) {
	var row T
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &IntegrityError{Err: err}
	}
	return &row, nil
}

func (s *BranchableService[T, PT]) GetCurrent(ctx context.Context, rootID uuid.UUID, branch string) (*T, error) {
	return fetchCurrentOnBranch[T](ctx, s.db, RootColumn((*T)(nil)), rootID, branchOrMain(branch))
}

func (s *BranchableService[T, PT]) GetAsOf(ctx context.Context, rootID uuid.UUID, branch string, at time.Time) (*T, error) {
	var row T
	q := s.db.WithContext(ctx).
		Where(RootColumn((*T)(nil))+" = ?", rootID).
		Where("branch = ?", branchOrMain(branch))
	err := containsScope(q, at).
		Where("deleted_at IS NULL").
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

// ListCurrent pages over current snapshots on one branch.
func (s *BranchableService[T, PT]) ListCurrent(ctx context.Context, branch string, offset, limit int) ([]*T, error) {
	var rows []*T
	err := currentScope(s.db.WithContext(ctx).Where("branch = ?", branchOrMain(branch))).
		Order("valid_from DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, &IntegrityError{Err: err}
	}
	return rows, nil
}

// History returns every snapshot of a root on one branch, newest first.
func (s *BranchableService[T, PT]) History(ctx context.Context, rootID uuid.UUID, branch string) ([]*T, error) {
	var rows []*T
	err := s.db.WithContext(ctx).
		Where(RootColumn((*T)(nil))+" = ?", rootID).
		Where("branch = ?", branchOrMain(branch)).
		Order("valid_from DESC").
		Find(&rows).Error
	if err != nil {
		return nil, &IntegrityError{Err: err}
	}
	return rows, nil
}

// ListBranches names every branch that has at least one snapshot for a root.
func (s *BranchableService[T, PT]) ListBranches(ctx context.Context, rootID uuid.UUID) ([]string, error) {
	var model T
	var branches []string
	err := s.db.WithContext(ctx).Model(&model).
		Where(RootColumn((*T)(nil))+" = ?", rootID).
		Distinct().
		Order("branch").
		Pluck("branch", &branches).Error
	if err != nil {
		return nil, &IntegrityError{Err: err}
	}
	return branches, nil
}

// Create opens the first snapshot of a new root on a branch (main when
// empty).
func (s *BranchableService[T, PT]) Create(ctx context.Context, tx *gorm.DB, meta Metadata, version PT, branch string) (*T, Receipt, error) {
	version.SetBranchName(branchOrMain(branch))
	version.SetParentVersionID(nil)
	version.SetMergeSource(nil)
	return s.run(ctx, tx, CreateVersionCommand[T, PT]{Meta: meta, Version: version})
}

func (s *BranchableService[T, PT]) Update(ctx context.Context, tx *gorm.DB, meta Metadata, rootID uuid.UUID, branch string, apply func(PT)) (*T, Receipt, error) {
	return s.run(ctx, tx, UpdateOnBranchCommand[T, PT]{Meta: meta, RootID: rootID, Branch: branchOrMain(branch), Apply: apply})
}

func (s *BranchableService[T, PT]) Delete(ctx context.Context, tx *gorm.DB, meta Metadata, rootID uuid.UUID, branch string) (*T, Receipt, error) {
	return s.run(ctx, tx, SoftDeleteOnBranchCommand[T, PT]{Meta: meta, RootID: rootID, Branch: branchOrMain(branch)})
}

func (s *BranchableService[T, PT]) CreateBranch(ctx context.Context, tx *gorm.DB, meta Metadata, rootID uuid.UUID, newBranch, fromBranch string) (*T, Receipt, error) {
	return s.run(ctx, tx, CreateBranchCommand[T, PT]{Meta: meta, RootID: rootID, NewBranch: newBranch, FromBranch: branchOrMain(fromBranch)})
}

func (s *BranchableService[T, PT]) Merge(ctx context.Context, tx *gorm.DB, meta Metadata, rootID uuid.UUID, sourceBranch, targetBranch string) (*T, Receipt, error) {
	return s.run(ctx, tx, MergeBranchCommand[T, PT]{Meta: meta, RootID: rootID, SourceBranch: sourceBranch, TargetBranch: branchOrMain(targetBranch)})
}

func (s *BranchableService[T, PT]) Revert(ctx context.Context, tx *gorm.DB, meta Metadata, rootID uuid.UUID, branch string, toVersionID *uuid.UUID) (*T, Receipt, error) {
	return s.run(ctx, tx, RevertCommand[T, PT]{Meta: meta, RootID: rootID, Branch: branchOrMain(branch), ToVersionID: toVersionID})
}

func (s *BranchableService[T, PT]) UndoCreate(ctx context.Context, tx *gorm.DB, receipt Receipt) error {
	if tx != nil {
		return UndoCreate[T, PT](ctx, tx, receipt)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return UndoCreate[T, PT](ctx, tx, receipt)
	})
}

func (s *BranchableService[T, PT]) UndoUpdate(ctx context.Context, tx *gorm.DB, receipt Receipt) error {
	if tx != nil {
		return UndoUpdate[T, PT](ctx, tx, receipt)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return UndoUpdate[T, PT](ctx, tx, receipt)
	})
}

func (s *BranchableService[T, PT]) run(ctx context.Context, tx *gorm.DB, cmd executable[T]) (*T, Receipt, error) {
	if tx != nil {
		return cmd.Execute(ctx, tx)
	}
	var (
		out     *T
		receipt Receipt
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, receipt, err = cmd.Execute(ctx, tx)
		return err
	})
	if err != nil {
		return nil, Receipt{}, err
	}
	return out, receipt, nil
}
