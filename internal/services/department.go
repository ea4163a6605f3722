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

type CreateDepartmentInput struct {
	Code      string
	Name      string
	ManagerID *uuid.UUID
}

type UpdateDepartmentInput struct {
	Name         *string
	ManagerID    *uuid.UUID
	ClearManager bool
	IsActive     *bool
}

type DepartmentService interface {
	Create(ctx context.Context, input CreateDepartmentInput) (*types.Department, *types.DepartmentVersion, evcs.Receipt, error)
	GetCurrent(ctx context.Context, departmentID uuid.UUID) (*types.DepartmentVersion, error)
	GetByCode(ctx context.Context, code string) (*types.Department, *types.DepartmentVersion, error)
	GetAsOf(ctx context.Context, departmentID uuid.UUID, at time.Time) (*types.DepartmentVersion, error)
	List(ctx context.Context, offset, limit int) ([]*types.DepartmentVersion, error)
	History(ctx context.Context, departmentID uuid.UUID) ([]*types.DepartmentVersion, error)
	Update(ctx context.Context, departmentID uuid.UUID, input UpdateDepartmentInput) (*types.DepartmentVersion, evcs.Receipt, error)
	Delete(ctx context.Context, departmentID uuid.UUID) error
	Undelete(ctx context.Context, departmentID uuid.UUID) (*types.DepartmentVersion, error)
	UndoCreate(ctx context.Context, receipt evcs.Receipt) error
	UndoUpdate(ctx context.Context, receipt evcs.Receipt) error
}

type departmentService struct {
	db             *gorm.DB
	log            *logger.Logger
	departmentRepo repos.DepartmentRepo
	versioned      *evcs.TemporalService[types.DepartmentVersion, *types.DepartmentVersion]
}

func NewDepartmentService(db *gorm.DB, log *logger.Logger, departmentRepo repos.DepartmentRepo) DepartmentService {
	serviceLog := log.With("service", "DepartmentService")
	return &departmentService{
		db:             db,
		log:            serviceLog,
		departmentRepo: departmentRepo,
		versioned:      evcs.NewTemporalService[types.DepartmentVersion, *types.DepartmentVersion](db, log),
	}
}

func (ds *departmentService) Create(ctx context.Context, input CreateDepartmentInput) (*types.Department, *types.DepartmentVersion, evcs.Receipt, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "department code required"}
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "department name required"}
	}

	var (
		department *types.Department
		version    *types.DepartmentVersion
		receipt    evcs.Receipt
	)
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := ds.departmentRepo.CodeExists(ctx, tx, code)
		if err != nil {
			return &evcs.IntegrityError{Err: err}
		}
		if exists {
			return &evcs.ValidationError{Reason: "department code already in use"}
		}
		department = &types.Department{
			ID:        uuid.New(),
			Code:      code,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := ds.departmentRepo.Create(ctx, tx, department); err != nil {
			return &evcs.IntegrityError{Err: err}
		}
		initial := &types.DepartmentVersion{
			DepartmentID: department.ID,
			Name:         name,
			ManagerID:    input.ManagerID,
			IsActive:     true,
		}
		version, receipt, err = ds.versioned.Create(ctx, tx, metaFromContext(ctx, "create department"), initial)
		return err
	})
	if err != nil {
		return nil, nil, evcs.Receipt{}, err
	}
	return department, version, receipt, nil
}

func (ds *departmentService) GetCurrent(ctx context.Context, departmentID uuid.UUID) (*types.DepartmentVersion, error) {
	return ds.versioned.GetCurrent(ctx, departmentID)
}

func (ds *departmentService) GetByCode(ctx context.Context, code string) (*types.Department, *types.DepartmentVersion, error) {
	department, err := ds.departmentRepo.GetByCode(ctx, nil, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, nil, &evcs.IntegrityError{Err: err}
	}
	if department == nil {
		return nil, nil, nil
	}
	version, err := ds.versioned.GetCurrent(ctx, department.ID)
	if err != nil {
		return nil, nil, err
	}
	return department, version, nil
}

func (ds *departmentService) GetAsOf(ctx context.Context, departmentID uuid.UUID, at time.Time) (*types.DepartmentVersion, error) {
	return ds.versioned.GetAsOf(ctx, departmentID, at)
}

func (ds *departmentService) List(ctx context.Context, offset, limit int) ([]*types.DepartmentVersion, error) {
	return ds.versioned.ListCurrent(ctx, offset, limit)
}

func (ds *departmentService) History(ctx context.Context, departmentID uuid.UUID) ([]*types.DepartmentVersion, error) {
	return ds.versioned.History(ctx, departmentID)
}

func (ds *departmentService) Update(ctx context.Context, departmentID uuid.UUID, input UpdateDepartmentInput) (*types.DepartmentVersion, evcs.Receipt, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "department name required"}
	}
	return ds.versioned.Update(ctx, nil, metaFromContext(ctx, "update department"), departmentID, func(v *types.DepartmentVersion) {
		if input.Name != nil {
			v.Name = strings.TrimSpace(*input.Name)
		}
		if input.ClearManager {
			v.ManagerID = nil
		} else if input.ManagerID != nil {
			v.ManagerID = input.ManagerID
		}
		if input.IsActive != nil {
			v.IsActive = *input.IsActive
		}
	})
}

func (ds *departmentService) Delete(ctx context.Context, departmentID uuid.UUID) error {
	_, _, err := ds.versioned.Delete(ctx, nil, metaFromContext(ctx, "delete department"), departmentID)
	return err
}

func (ds *departmentService) Undelete(ctx context.Context, departmentID uuid.UUID) (*types.DepartmentVersion, error) {
	version, _, err := ds.versioned.Undelete(ctx, nil, metaFromContext(ctx, "restore department"), departmentID)
	return version, err
}

func (ds *departmentService) UndoCreate(ctx context.Context, receipt evcs.Receipt) error {
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ds.versioned.UndoCreate(ctx, tx, receipt); err != nil {
			return err
		}
		return ds.departmentRepo.Delete(ctx, tx, receipt.RootID)
	})
}

func (ds *departmentService) UndoUpdate(ctx context.Context, receipt evcs.Receipt) error {
	return ds.versioned.UndoUpdate(ctx, nil, receipt)
}
