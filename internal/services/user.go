package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelworks/orgvault/internal/evcs"
	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/repos"
	"github.com/kestrelworks/orgvault/internal/types"
)

var validRoles = map[string]struct{}{
	"member":  {},
	"manager": {},
	"admin":   {},
}

type CreateUserInput struct {
	Email      string
	Password   string
	FullName   string
	Role       string
	Department *uuid.UUID
}

// UpdateUserInput is a typed patch: nil fields are untouched, and the
// versioning layer carries every other column forward unchanged.
type UpdateUserInput struct {
	FullName        *string
	Role            *string
	Department      *uuid.UUID
	ClearDepartment bool
	IsActive        *bool
}

type UserService interface {
	Create(ctx context.Context, input CreateUserInput) (*types.User, *types.UserVersion, evcs.Receipt, error)
	GetCurrent(ctx context.Context, userID uuid.UUID) (*types.UserVersion, error)
	GetByEmail(ctx context.Context, email string) (*types.User, *types.UserVersion, error)
	GetAsOf(ctx context.Context, userID uuid.UUID, at time.Time) (*types.UserVersion, error)
	List(ctx context.Context, offset, limit int) ([]*types.UserVersion, error)
	History(ctx context.Context, userID uuid.UUID) ([]*types.UserVersion, error)
	Update(ctx context.Context, userID uuid.UUID, input UpdateUserInput) (*types.UserVersion, evcs.Receipt, error)
	Delete(ctx context.Context, userID uuid.UUID) error
	Undelete(ctx context.Context, userID uuid.UUID) (*types.UserVersion, error)
	UndoCreate(ctx context.Context, receipt evcs.Receipt) error
	UndoUpdate(ctx context.Context, receipt evcs.Receipt) error
}

type userService struct {
	db        *gorm.DB
	log       *logger.Logger
	userRepo  repos.UserRepo
	versioned *evcs.TemporalService[types.UserVersion, *types.UserVersion]
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) UserService {
	serviceLog := log.With("service", "UserService")
	return &userService{
		db:        db,
		log:       serviceLog,
		userRepo:  userRepo,
		versioned: evcs.NewTemporalService[types.UserVersion, *types.UserVersion](db, log),
	}
}

func (us *userService) Create(ctx context.Context, input CreateUserInput) (*types.User, *types.UserVersion, evcs.Receipt, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "invalid email"}
	}
	if len(input.Password) < 8 {
		return nil, nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "password must be at least 8 characters"}
	}
	role := input.Role
	if role == "" {
		role = "member"
	}
	if _, ok := validRoles[role]; !ok {
		return nil, nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "unknown role " + role}
	}

	hashed, err := HashPassword(input.Password)
	if err != nil {
		return nil, nil, evcs.Receipt{}, err
	}

	var (
		user    *types.User
		version *types.UserVersion
		receipt evcs.Receipt
	)
	err = us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := us.userRepo.EmailExists(ctx, tx, email)
		if err != nil {
			return &evcs.IntegrityError{Err: err}
		}
		if exists {
			return &evcs.ValidationError{Reason: "email already registered"}
		}
		user = &types.User{
			ID:             uuid.New(),
			Email:          email,
			HashedPassword: hashed,
			CreatedAt:      time.Now().UTC(),
		}
		if _, err := us.userRepo.Create(ctx, tx, user); err != nil {
			return &evcs.IntegrityError{Err: err}
		}
		initial := &types.UserVersion{
			UserID:     user.ID,
			FullName:   strings.TrimSpace(input.FullName),
			Role:       role,
			Department: input.Department,
			IsActive:   true,
		}
		version, receipt, err = us.versioned.Create(ctx, tx, metaFromContext(ctx, "create user"), initial)
		return err
	})
	if err != nil {
		return nil, nil, evcs.Receipt{}, err
	}
	return user, version, receipt, nil
}

func (us *userService) GetCurrent(ctx context.Context, userID uuid.UUID) (*types.UserVersion, error) {
	return us.versioned.GetCurrent(ctx, userID)
}

func (us *userService) GetByEmail(ctx context.Context, email string) (*types.User, *types.UserVersion, error) {
	user, err := us.userRepo.GetByEmail(ctx, nil, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, &evcs.IntegrityError{Err: err}
	}
	if user == nil {
		return nil, nil, nil
	}
	version, err := us.versioned.GetCurrent(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, version, nil
}

func (us *userService) GetAsOf(ctx context.Context, userID uuid.UUID, at time.Time) (*types.UserVersion, error) {
	return us.versioned.GetAsOf(ctx, userID, at)
}

func (us *userService) List(ctx context.Context, offset, limit int) ([]*types.UserVersion, error) {
	return us.versioned.ListCurrent(ctx, offset, limit)
}

func (us *userService) History(ctx context.Context, userID uuid.UUID) ([]*types.UserVersion, error) {
	return us.versioned.History(ctx, userID)
}

func (us *userService) Update(ctx context.Context, userID uuid.UUID, input UpdateUserInput) (*types.UserVersion, evcs.Receipt, error) {
	if input.Role != nil {
		if _, ok := validRoles[*input.Role]; !ok {
			return nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "unknown role " + *input.Role}
		}
	}
	return us.versioned.Update(ctx, nil, metaFromContext(ctx, "update user"), userID, func(v *types.UserVersion) {
		if input.FullName != nil {
			v.FullName = strings.TrimSpace(*input.FullName)
		}
		if input.Role != nil {
			v.Role = *input.Role
		}
		if input.ClearDepartment {
			v.Department = nil
		} else if input.Department != nil {
			v.Department = input.Department
		}
		if input.IsActive != nil {
			v.IsActive = *input.IsActive
		}
	})
}

func (us *userService) Delete(ctx context.Context, userID uuid.UUID) error {
	_, _, err := us.versioned.Delete(ctx, nil, metaFromContext(ctx, "delete user"), userID)
	return err
}

func (us *userService) Undelete(ctx context.Context, userID uuid.UUID) (*types.UserVersion, error) {
	version, _, err := us.versioned.Undelete(ctx, nil, metaFromContext(ctx, "restore user"), userID)
	return version, err
}

// UndoCreate compensates an accidental Create: the versioning layer verifies
// no one touched the root since, then the head row goes too.
func (us *userService) UndoCreate(ctx context.Context, receipt evcs.Receipt) error {
	return us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := us.versioned.UndoCreate(ctx, tx, receipt); err != nil {
			return err
		}
		return us.userRepo.Delete(ctx, tx, receipt.RootID)
	})
}

func (us *userService) UndoUpdate(ctx context.Context, receipt evcs.Receipt) error {
	return us.versioned.UndoUpdate(ctx, nil, receipt)
}
