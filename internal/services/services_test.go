package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kestrelworks/orgvault/internal/evcs"
	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/types"
)

var testDBSeq int

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:services_%s_%d?mode=memory&cache=shared", t.Name(), testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(types.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	temporal := []any{
		&types.UserVersion{},
		&types.DepartmentVersion{},
		&types.UserPreferenceVersion{},
	}
	for _, model := range temporal {
		if err := evcs.EnsureCurrentIndex(db, model, false); err != nil {
			t.Fatalf("ensure index: %v", err)
		}
	}
	if err := evcs.EnsureCurrentIndex(db, &types.ProjectVersion{}, true); err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	return db
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.NewNop()
}
