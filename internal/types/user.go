package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/orgvault/internal/evcs"
)

// User is the head row: the stable identity and the credential material that
// never participates in versioning. Everything that changes over time lives
// on UserVersion.
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	HashedPassword string    `gorm:"not null;column:hashed_password" json:"-"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

type UserVersion struct {
	evcs.VersionFields
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	User       *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	FullName   string     `gorm:"not null;column:full_name" json:"full_name"`
	Role       string     `gorm:"not null;default:member;column:role" json:"role"`
	Department *uuid.UUID `gorm:"type:uuid;index;column:department_id" json:"department_id,omitempty"`
	IsActive   bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
}

func (UserVersion) TableName() string {
	return "user_versions"
}

func (v *UserVersion) RootID() uuid.UUID      { return v.UserID }
func (v *UserVersion) SetRootID(id uuid.UUID) { v.UserID = id }
