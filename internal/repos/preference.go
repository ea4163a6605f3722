package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/types"
)

type PreferenceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, preference *types.UserPreference) (*types.UserPreference, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserPreference, error)
	Delete(ctx context.Context, tx *gorm.DB, preferenceID uuid.UUID) error
}

type preferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferenceRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceRepo {
	repoLog := baseLog.With("repo", "PreferenceRepo")
	return &preferenceRepo{db: db, log: repoLog}
}

func (pr *preferenceRepo) Create(ctx context.Context, tx *gorm.DB, preference *types.UserPreference) (*types.UserPreference, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	if err := transaction.WithContext(ctx).Create(preference).Error; err != nil {
		return nil, err
	}
	return preference, nil
}

func (pr *preferenceRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserPreference, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	var result types.UserPreference
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (pr *preferenceRepo) Delete(ctx context.Context, tx *gorm.DB, preferenceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", preferenceID).
		Delete(&types.UserPreference{}).Error
}
