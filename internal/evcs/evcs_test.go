package evcs

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kestrelworks/orgvault/internal/logger"
)

// noteVersion is a plain versioned entity (single implicit branch).
type noteVersion struct {
	VersionFields
	NoteID uuid.UUID `gorm:"type:uuid;column:note_id;not null;index"`
	Title  string    `gorm:"column:title"`
	Body   string    `gorm:"column:body"`
}

func (noteVersion) TableName() string { return "note_versions" }

func (v *noteVersion) RootID() uuid.UUID      { return v.NoteID }
func (v *noteVersion) SetRootID(id uuid.UUID) { v.NoteID = id }

// draftVersion is a branch-capable entity.
type draftVersion struct {
	VersionFields
	BranchFields
	DraftID uuid.UUID `gorm:"type:uuid;column:draft_id;not null;index"`
	Name    string    `gorm:"column:name"`
	Budget  int64     `gorm:"column:budget"`
}

func (draftVersion) TableName() string { return "draft_versions" }

func (v *draftVersion) RootID() uuid.UUID      { return v.DraftID }
func (v *draftVersion) SetRootID(id uuid.UUID) { v.DraftID = id }

func init() {
	RegisterRootColumn(&noteVersion{}, "note_id")
	RegisterRootColumn(&draftVersion{}, "draft_id")
}

var testDBSeq int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:evcs_%s_%d?mode=memory&cache=shared", t.Name(), testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&noteVersion{}, &draftVersion{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := EnsureCurrentIndex(db, &noteVersion{}, false); err != nil {
		t.Fatalf("note index: %v", err)
	}
	if err := EnsureCurrentIndex(db, &draftVersion{}, true); err != nil {
		t.Fatalf("draft index: %v", err)
	}
	return db
}

func newNoteService(t *testing.T) (*gorm.DB, *TemporalService[noteVersion, *noteVersion]) {
	t.Helper()
	db := newTestDB(t)
	return db, NewTemporalService[noteVersion, *noteVersion](db, logger.NewNop())
}

func newDraftService(t *testing.T) (*gorm.DB, *BranchableService[draftVersion, *draftVersion]) {
	t.Helper()
	db := newTestDB(t)
	return db, NewBranchableService[draftVersion, *draftVersion](db, logger.NewNop())
}

func countOpenRows(t *testing.T, db *gorm.DB, table string, rootColumn string, rootID uuid.UUID, branch string) int64 {
	t.Helper()
	var count int64
	q := db.Table(table).
		Where(rootColumn+" = ?", rootID).
		Where("valid_to IS NULL").
		Where("deleted_at IS NULL")
	if branch != "" {
		q = q.Where("branch = ?", branch)
	}
	if err := q.Count(&count).Error; err != nil {
		t.Fatalf("count open rows: %v", err)
	}
	return count
}
