package types

import "github.com/kestrelworks/orgvault/internal/evcs"

func init() {
	evcs.RegisterRootColumn(&UserVersion{}, "user_id")
	evcs.RegisterRootColumn(&DepartmentVersion{}, "department_id")
	evcs.RegisterRootColumn(&UserPreferenceVersion{}, "user_preference_id")
	evcs.RegisterRootColumn(&ProjectVersion{}, "project_id")
}

// AllModels lists every table in dependency order for migration.
func AllModels() []any {
	return []any{
		&User{},
		&UserVersion{},
		&Department{},
		&DepartmentVersion{},
		&UserPreference{},
		&UserPreferenceVersion{},
		&Project{},
		&ProjectVersion{},
	}
}
