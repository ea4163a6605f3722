package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/orgvault/internal/evcs"
)

type Department struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;not null;column:code" json:"code"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Department) TableName() string {
	return "departments"
}

type DepartmentVersion struct {
	evcs.VersionFields
	DepartmentID uuid.UUID   `gorm:"type:uuid;not null;index;column:department_id" json:"department_id"`
	Department   *Department `gorm:"constraint:OnDelete:CASCADE;foreignKey:DepartmentID;references:ID" json:"department,omitempty"`
	Name         string      `gorm:"not null;column:name" json:"name"`
	ManagerID    *uuid.UUID  `gorm:"type:uuid;index;column:manager_id" json:"manager_id,omitempty"`
	IsActive     bool        `gorm:"not null;default:true;column:is_active" json:"is_active"`
}

func (DepartmentVersion) TableName() string {
	return "department_versions"
}

func (v *DepartmentVersion) RootID() uuid.UUID      { return v.DepartmentID }
func (v *DepartmentVersion) SetRootID(id uuid.UUID) { v.DepartmentID = id }
