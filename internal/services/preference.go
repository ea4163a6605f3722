package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kestrelworks/orgvault/internal/evcs"
	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/repos"
	"github.com/kestrelworks/orgvault/internal/types"
)

type UpdatePreferenceInput struct {
	Theme    *string
	Locale   *string
	Settings json.RawMessage
}

// PreferenceService is keyed by user, not by preference id: the head row is
// created lazily on first write, so every user always "has" preferences.
type PreferenceService interface {
	GetForUser(ctx context.Context, userID uuid.UUID) (*types.UserPreferenceVersion, error)
	HistoryForUser(ctx context.Context, userID uuid.UUID) ([]*types.UserPreferenceVersion, error)
	UpdateForUser(ctx context.Context, userID uuid.UUID, input UpdatePreferenceInput) (*types.UserPreferenceVersion, evcs.Receipt, error)
}

type preferenceService struct {
	db             *gorm.DB
	log            *logger.Logger
	preferenceRepo repos.PreferenceRepo
	versioned      *evcs.TemporalService[types.UserPreferenceVersion, *types.UserPreferenceVersion]
}

func NewPreferenceService(db *gorm.DB, log *logger.Logger, preferenceRepo repos.PreferenceRepo) PreferenceService {
	serviceLog := log.With("service", "PreferenceService")
	return &preferenceService{
		db:             db,
		log:            serviceLog,
		preferenceRepo: preferenceRepo,
		versioned:      evcs.NewTemporalService[types.UserPreferenceVersion, *types.UserPreferenceVersion](db, log),
	}
}

func (ps *preferenceService) GetForUser(ctx context.Context, userID uuid.UUID) (*types.UserPreferenceVersion, error) {
	head, err := ps.preferenceRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, &evcs.IntegrityError{Err: err}
	}
	if head == nil {
		return nil, nil
	}
	return ps.versioned.GetCurrent(ctx, head.ID)
}

func (ps *preferenceService) HistoryForUser(ctx context.Context, userID uuid.UUID) ([]*types.UserPreferenceVersion, error) {
	head, err := ps.preferenceRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, &evcs.IntegrityError{Err: err}
	}
	if head == nil {
		return nil, nil
	}
	return ps.versioned.History(ctx, head.ID)
}

func (ps *preferenceService) UpdateForUser(ctx context.Context, userID uuid.UUID, input UpdatePreferenceInput) (*types.UserPreferenceVersion, evcs.Receipt, error) {
	if input.Settings != nil && !json.Valid(input.Settings) {
		return nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "settings must be valid JSON"}
	}

	var (
		version *types.UserPreferenceVersion
		receipt evcs.Receipt
	)
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		head, err := ps.preferenceRepo.GetByUserID(ctx, tx, userID)
		if err != nil {
			return &evcs.IntegrityError{Err: err}
		}
		if head == nil {
			head = &types.UserPreference{
				ID:        uuid.New(),
				UserID:    userID,
				CreatedAt: time.Now().UTC(),
			}
			if _, err := ps.preferenceRepo.Create(ctx, tx, head); err != nil {
				return &evcs.IntegrityError{Err: err}
			}
			initial := &types.UserPreferenceVersion{
				UserPreferenceID: head.ID,
				Theme:            "system",
				Locale:           "en",
			}
			applyPreferenceInput(initial, input)
			version, receipt, err = ps.versioned.Create(ctx, tx, metaFromContext(ctx, "create preferences"), initial)
			return err
		}
		version, receipt, err = ps.versioned.Update(ctx, tx, metaFromContext(ctx, "update preferences"), head.ID, func(v *types.UserPreferenceVersion) {
			applyPreferenceInput(v, input)
		})
		return err
	})
	if err != nil {
		return nil, evcs.Receipt{}, err
	}
	return version, receipt, nil
}

func applyPreferenceInput(v *types.UserPreferenceVersion, input UpdatePreferenceInput) {
	if input.Theme != nil {
		v.Theme = *input.Theme
	}
	if input.Locale != nil {
		v.Locale = *input.Locale
	}
	if input.Settings != nil {
		v.Settings = datatypes.JSON(input.Settings)
	}
}
