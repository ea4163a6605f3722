package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/types"
)

type DepartmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, department *types.Department) (*types.Department, error)
	GetByID(ctx context.Context, tx *gorm.DB, departmentID uuid.UUID) (*types.Department, error)
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.Department, error)
	CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, departmentID uuid.UUID) error
}

type departmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDepartmentRepo(db *gorm.DB, baseLog *logger.Logger) DepartmentRepo {
	repoLog := baseLog.With("repo", "DepartmentRepo")
	return &departmentRepo{db: db, log: repoLog}
}

func (dr *departmentRepo) Create(ctx context.Context, tx *gorm.DB, department *types.Department) (*types.Department, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	if err := transaction.WithContext(ctx).Create(department).Error; err != nil {
		return nil, err
	}
	return department, nil
}

func (dr *departmentRepo) GetByID(ctx context.Context, tx *gorm.DB, departmentID uuid.UUID) (*types.Department, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.Department
	if err := transaction.WithContext(ctx).
		Where("id = ?", departmentID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (dr *departmentRepo) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.Department, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.Department
	if err := transaction.WithContext(ctx).
		Where("code = ?", code).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (dr *departmentRepo) CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Department{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	exists := count > 0
	return exists, nil
}

func (dr *departmentRepo) Delete(ctx context.Context, tx *gorm.DB, departmentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", departmentID).
		Delete(&types.Department{}).Error
}
