package evcs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelworks/orgvault/internal/logger"
)

// TemporalService is the façade for versioned entities without branching.
// Every mutating method maps onto exactly one command executed in one
// transaction; read paths are side-effect free and share the commands'
// "containing interval" semantics so both agree on what "current" means.
//
// Mutating methods accept an optional tx. Passing nil runs the command in
// its own transaction; passing an open one joins it, which is how callers
// compose head-table writes with version writes atomically.
type TemporalService[T any, PT SnapshotPtr[T]] struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemporalService[T any, PT SnapshotPtr[T]](db *gorm.DB, log *logger.Logger) *TemporalService[T, PT] {
	serviceLog := log.With("service", "TemporalService", "entity", entityName[T]())
	return &TemporalService[T, PT]{db: db, log: serviceLog}
}

// GetByVersionID looks up one specific snapshot. Returns (nil, nil) when the
// snapshot does not exist: absence is not an error on read paths.
func (s *TemporalService[T, PT]) GetByVersionID(ctx context.Context, id uuid.UUID) (*T, error) {
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

// GetCurrent returns the open, non-deleted snapshot for a root, or (nil, nil).
func (s *TemporalService[T, PT]) GetCurrent(ctx context.Context, rootID uuid.UUID) (*T, error) {
	return fetchCurrent[T](ctx, s.db, RootColumn((*T)(nil)), rootID)
}

// GetAsOf time-travels: the snapshot whose valid interval contained the
// given instant, or (nil, nil) if the root had no live state then.
func (s *TemporalService[T, PT]) GetAsOf(ctx context.Context, rootID uuid.UUID, at time.Time) (*T, error) {
	var row T
	q := s.db.WithContext(ctx).Where(RootColumn((*T)(nil))+" = ?", rootID)
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

// ListCurrent pages over the current snapshots of all roots.
func (s *TemporalService[T, PT]) ListCurrent(ctx context.Context, offset, limit int) ([]*T, error) {
	var rows []*T
	err := currentScope(s.db.WithContext(ctx)).
		Order("valid_from DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, &IntegrityError{Err: err}
	}
	return rows, nil
}

// History returns every snapshot of a root, newest span first.
func (s *TemporalService[T, PT]) History(ctx context.Context, rootID uuid.UUID) ([]*T, error) {
	var rows []*T
	err := s.db.WithContext(ctx).
		Where(RootColumn((*T)(nil))+" = ?", rootID).
		Order("valid_from DESC").
		Find(&rows).Error
	if err != nil {
		return nil, &IntegrityError{Err: err}
	}
	return rows, nil
}

func (s *TemporalService[T, PT]) Create(ctx context.Context, tx *gorm.DB, meta Metadata, version PT) (*T, Receipt, error) {
	return s.run(ctx, tx, CreateVersionCommand[T, PT]{Meta: meta, Version: version})
}

func (s *TemporalService[T, PT]) Update(ctx context.Context, tx *gorm.DB, meta Metadata, rootID uuid.UUID, apply func(PT)) (*T, Receipt, error) {
	return s.run(ctx, tx, UpdateVersionCommand[T, PT]{Meta: meta, RootID: rootID, Apply: apply})
}

func (s *TemporalService[T, PT]) Delete(ctx context.Context, tx *gorm.DB, meta Metadata, rootID uuid.UUID) (*T, Receipt, error) {
	return s.run(ctx, tx, SoftDeleteCommand[T, PT]{Meta: meta, RootID: rootID})
}

func (s *TemporalService[T, PT]) Undelete(ctx context.Context, tx *gorm.DB, meta Metadata, rootID uuid.UUID) (*T, Receipt, error) {
	return s.run(ctx, tx, UndeleteCommand[T, PT]{Meta: meta, RootID: rootID})
}

// UndoCreate compensates a Create given its receipt. Version rows only; the
// caller owns head-table cleanup in the same transaction.
func (s *TemporalService[T, PT]) UndoCreate(ctx context.Context, tx *gorm.DB, receipt Receipt) error {
	if tx != nil {
		return UndoCreate[T, PT](ctx, tx, receipt)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return UndoCreate[T, PT](ctx, tx, receipt)
	})
}

// UndoUpdate compensates an Update given its receipt.
func (s *TemporalService[T, PT]) UndoUpdate(ctx context.Context, tx *gorm.DB, receipt Receipt) error {
	if tx != nil {
		return UndoUpdate[T, PT](ctx, tx, receipt)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return UndoUpdate[T, PT](ctx, tx, receipt)
	})
}

type executable[T any] interface {
	Execute(ctx context.Context, tx *gorm.DB) (*T, Receipt, error)
}

func (s *TemporalService[T, PT]) run(ctx context.Context, tx *gorm.DB, cmd executable[T]) (*T, Receipt, error) {
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
