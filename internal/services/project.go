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

type CreateProjectInput struct {
	Name        string
	Description string
	Budget      int64
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
	Budget      *int64
}

type ProjectService interface {
	Create(ctx context.Context, input CreateProjectInput) (*types.Project, *types.ProjectVersion, evcs.Receipt, error)
	GetCurrent(ctx context.Context, projectID uuid.UUID, branch string) (*types.ProjectVersion, error)
	GetAsOf(ctx context.Context, projectID uuid.UUID, branch string, at time.Time) (*types.ProjectVersion, error)
	List(ctx context.Context, branch string, offset, limit int) ([]*types.ProjectVersion, error)
	History(ctx context.Context, projectID uuid.UUID, branch string) ([]*types.ProjectVersion, error)
	Branches(ctx context.Context, projectID uuid.UUID) ([]string, error)
	Update(ctx context.Context, projectID uuid.UUID, branch string, input UpdateProjectInput) (*types.ProjectVersion, evcs.Receipt, error)
	Delete(ctx context.Context, projectID uuid.UUID, branch string) error
	CreateBranch(ctx context.Context, projectID uuid.UUID, newBranch, fromBranch string) (*types.ProjectVersion, evcs.Receipt, error)
	Merge(ctx context.Context, projectID uuid.UUID, sourceBranch, targetBranch string) (*types.ProjectVersion, evcs.Receipt, error)
	Revert(ctx context.Context, projectID uuid.UUID, branch string, toVersionID *uuid.UUID) (*types.ProjectVersion, evcs.Receipt, error)
	UndoCreate(ctx context.Context, receipt evcs.Receipt) error
	UndoUpdate(ctx context.Context, receipt evcs.Receipt) error
}

type projectService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
	versioned   *evcs.BranchableService[types.ProjectVersion, *types.ProjectVersion]
}

func NewProjectService(db *gorm.DB, log *logger.Logger, projectRepo repos.ProjectRepo) ProjectService {
	serviceLog := log.With("service", "ProjectService")
	return &projectService{
		db:          db,
		log:         serviceLog,
		projectRepo: projectRepo,
		versioned:   evcs.NewBranchableService[types.ProjectVersion, *types.ProjectVersion](db, log),
	}
}

func (ps *projectService) Create(ctx context.Context, input CreateProjectInput) (*types.Project, *types.ProjectVersion, evcs.Receipt, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "project name required"}
	}
	if input.Budget < 0 {
		return nil, nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "budget must be non-negative"}
	}

	var (
		project *types.Project
		version *types.ProjectVersion
		receipt evcs.Receipt
	)
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project = &types.Project{
			ID:        uuid.New(),
			CreatedAt: time.Now().UTC(),
		}
		if _, err := ps.projectRepo.Create(ctx, tx, project); err != nil {
			return &evcs.IntegrityError{Err: err}
		}
		initial := &types.ProjectVersion{
			ProjectID:   project.ID,
			Name:        name,
			Description: strings.TrimSpace(input.Description),
			Budget:      input.Budget,
		}
		var err error
		version, receipt, err = ps.versioned.Create(ctx, tx, metaFromContext(ctx, "create project"), initial, evcs.MainBranch)
		return err
	})
	if err != nil {
		return nil, nil, evcs.Receipt{}, err
	}
	return project, version, receipt, nil
}

func (ps *projectService) GetCurrent(ctx context.Context, projectID uuid.UUID, branch string) (*types.ProjectVersion, error) {
	return ps.versioned.GetCurrent(ctx, projectID, branch)
}

func (ps *projectService) GetAsOf(ctx context.Context, projectID uuid.UUID, branch string, at time.Time) (*types.ProjectVersion, error) {
	return ps.versioned.GetAsOf(ctx, projectID, branch, at)
}

func (ps *projectService) List(ctx context.Context, branch string, offset, limit int) ([]*types.ProjectVersion, error) {
	return ps.versioned.ListCurrent(ctx, branch, offset, limit)
}

func (ps *projectService) History(ctx context.Context, projectID uuid.UUID, branch string) ([]*types.ProjectVersion, error) {
	return ps.versioned.History(ctx, projectID, branch)
}

func (ps *projectService) Branches(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	return ps.versioned.ListBranches(ctx, projectID)
}

func (ps *projectService) Update(ctx context.Context, projectID uuid.UUID, branch string, input UpdateProjectInput) (*types.ProjectVersion, evcs.Receipt, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "project name required"}
	}
	if input.Budget != nil && *input.Budget < 0 {
		return nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "budget must be non-negative"}
	}
	return ps.versioned.Update(ctx, nil, metaFromContext(ctx, "update project"), projectID, branch, func(v *types.ProjectVersion) {
		if input.Name != nil {
			v.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			v.Description = strings.TrimSpace(*input.Description)
		}
		if input.Budget != nil {
			v.Budget = *input.Budget
		}
	})
}

func (ps *projectService) Delete(ctx context.Context, projectID uuid.UUID, branch string) error {
	_, _, err := ps.versioned.Delete(ctx, nil, metaFromContext(ctx, "delete project"), projectID, branch)
	return err
}

func (ps *projectService) CreateBranch(ctx context.Context, projectID uuid.UUID, newBranch, fromBranch string) (*types.ProjectVersion, evcs.Receipt, error) {
	newBranch = strings.TrimSpace(newBranch)
	if newBranch == "" {
		return nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "branch name required"}
	}
	return ps.versioned.CreateBranch(ctx, nil, metaFromContext(ctx, "create branch "+newBranch), projectID, newBranch, fromBranch)
}

func (ps *projectService) Merge(ctx context.Context, projectID uuid.UUID, sourceBranch, targetBranch string) (*types.ProjectVersion, evcs.Receipt, error) {
	sourceBranch = strings.TrimSpace(sourceBranch)
	if sourceBranch == "" {
		return nil, evcs.Receipt{}, &evcs.ValidationError{Reason: "source branch required"}
	}
	return ps.versioned.Merge(ctx, nil, metaFromContext(ctx, "merge "+sourceBranch), projectID, sourceBranch, targetBranch)
}

func (ps *projectService) Revert(ctx context.Context, projectID uuid.UUID, branch string, toVersionID *uuid.UUID) (*types.ProjectVersion, evcs.Receipt, error) {
	return ps.versioned.Revert(ctx, nil, metaFromContext(ctx, "revert project"), projectID, branch, toVersionID)
}

func (ps *projectService) UndoCreate(ctx context.Context, receipt evcs.Receipt) error {
	return ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ps.versioned.UndoCreate(ctx, tx, receipt); err != nil {
			return err
		}
		return ps.projectRepo.Delete(ctx, tx, receipt.RootID)
	})
}

func (ps *projectService) UndoUpdate(ctx context.Context, receipt evcs.Receipt) error {
	return ps.versioned.UndoUpdate(ctx, nil, receipt)
}
