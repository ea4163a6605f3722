package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kestrelworks/orgvault/internal/evcs"
)

// UserPreference is a one-per-user head; the version rows carry the actual
// preference payload so edits to settings get full history.
type UserPreference struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;column:user_id" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (UserPreference) TableName() string {
	return "user_preferences"
}

type UserPreferenceVersion struct {
	evcs.VersionFields
	UserPreferenceID uuid.UUID       `gorm:"type:uuid;not null;index;column:user_preference_id" json:"user_preference_id"`
	UserPreference   *UserPreference `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserPreferenceID;references:ID" json:"user_preference,omitempty"`
	Theme            string          `gorm:"not null;default:system;column:theme" json:"theme"`
	Locale           string          `gorm:"not null;default:en;column:locale" json:"locale"`
	Settings         datatypes.JSON  `gorm:"column:settings" json:"settings"`
}

func (UserPreferenceVersion) TableName() string {
	return "user_preference_versions"
}

func (v *UserPreferenceVersion) RootID() uuid.UUID      { return v.UserPreferenceID }
func (v *UserPreferenceVersion) SetRootID(id uuid.UUID) { v.UserPreferenceID = id }
