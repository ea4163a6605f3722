package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/orgvault/internal/evcs"
)

type Project struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectVersion is the branch-capable entity: every snapshot belongs to a
// named branch and the current state of a project differs per branch.
type ProjectVersion struct {
	evcs.VersionFields
	evcs.BranchFields
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;index;column:project_id" json:"project_id"`
	Project     *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	Name        string    `gorm:"not null;column:name" json:"name"`
	Description string    `gorm:"column:description" json:"description"`
	Budget      int64     `gorm:"not null;default:0;column:budget" json:"budget"`
}

func (ProjectVersion) TableName() string {
	return "project_versions"
}

func (v *ProjectVersion) RootID() uuid.UUID      { return v.ProjectID }
func (v *ProjectVersion) SetRootID(id uuid.UUID) { v.ProjectID = id }
