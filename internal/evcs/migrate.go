package evcs

import (
	"fmt"

	"gorm.io/gorm"
)

// EnsureCurrentIndex creates the partial unique index that enforces the
// at-most-one-current invariant for a version table: at most one row per
// root (and branch, for branch-capable tables) may be open-ended and not
// soft-deleted. A second opener hits the index and surfaces as a conflict,
// which serializes racing close/open pairs without row locks.
func EnsureCurrentIndex(db *gorm.DB, model any, branched bool) error {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return fmt.Errorf("parse model for current index: %w", err)
	}
	table := stmt.Schema.Table
	columns := RootColumn(model)
	if branched {
		columns += ", branch"
	}
	sql := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS uix_%s_current ON %s (%s) WHERE valid_to IS NULL AND deleted_at IS NULL",
		table, table, columns,
	)
	if err := db.Exec(sql).Error; err != nil {
		return fmt.Errorf("create current index on %s: %w", table, err)
	}
	return nil
}
