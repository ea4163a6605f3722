package evcs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func metaAt(t time.Time) Metadata {
	return Metadata{Timestamp: t, Description: "test"}
}

func TestCreateAndGetCurrent(t *testing.T) {
	ctx := context.Background()
	_, svc := newNoteService(t)

	created, receipt, err := svc.Create(ctx, nil, metaAt(time.Now().UTC()), &noteVersion{Title: "first", Body: "hello"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == uuid.Nil || created.NoteID == uuid.Nil {
		t.Fatalf("create did not assign ids: %+v", created)
	}
	if receipt.NewVersionID != created.ID || receipt.RootID != created.NoteID {
		t.Fatalf("receipt does not match created row: %+v", receipt)
	}
	if created.ValidTo != nil || created.DeletedAt != nil {
		t.Fatalf("created snapshot should be open and live: %+v", created)
	}

	cur, err := svc.GetCurrent(ctx, created.NoteID)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if cur == nil || cur.ID != created.ID || cur.Title != "first" {
		t.Fatalf("current = %+v, want the created snapshot", cur)
	}
}

func TestCreateDuplicateRootConflicts(t *testing.T) {
	ctx := context.Background()
	_, svc := newNoteService(t)

	created, _, err := svc.Create(ctx, nil, metaAt(time.Now().UTC()), &noteVersion{Title: "first"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _, err = svc.Create(ctx, nil, metaAt(time.Now().UTC()), &noteVersion{NoteID: created.NoteID, Title: "second"})
	if !IsConflict(err) {
		t.Fatalf("second create for same root: got %v, want conflict", err)
	}
}

func TestUpdatePreservesUntouchedFields(t *testing.T) {
	ctx := context.Background()
	db, svc := newNoteService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &noteVersion{Title: "a", Body: "b"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t1 := t0.Add(time.Second)
	updated, receipt, err := svc.Update(ctx, nil, metaAt(t1), created.NoteID, func(v *noteVersion) {
		v.Body = "changed"
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "a" || updated.Body != "changed" {
		t.Fatalf("updated fields = %q/%q, want a/changed", updated.Title, updated.Body)
	}
	if updated.ID == created.ID {
		t.Fatal("update must open a new snapshot, not reuse the old id")
	}
	if receipt.PrevVersionID == nil || *receipt.PrevVersionID != created.ID {
		t.Fatalf("receipt.PrevVersionID = %v, want %s", receipt.PrevVersionID, created.ID)
	}

	var old noteVersion
	if err := db.Where("id = ?", created.ID).First(&old).Error; err != nil {
		t.Fatalf("reload old snapshot: %v", err)
	}
	if old.ValidTo == nil || !old.ValidTo.Equal(t1) {
		t.Fatalf("old snapshot valid_to = %v, want %v", old.ValidTo, t1)
	}
	if old.Title != "a" || old.Body != "b" {
		t.Fatalf("old snapshot mutated: %+v", old)
	}

	if n := countOpenRows(t, db, "note_versions", "note_id", created.NoteID, ""); n != 1 {
		t.Fatalf("open rows = %d, want 1", n)
	}
}

func TestUpdateMissingRootIsNotFound(t *testing.T) {
	ctx := context.Background()
	_, svc := newNoteService(t)

	_, _, err := svc.Update(ctx, nil, metaAt(time.Now().UTC()), uuid.New(), func(v *noteVersion) {
		v.Title = "x"
	})
	if !IsNotFound(err) {
		t.Fatalf("update absent root: got %v, want not found", err)
	}
}

func TestAtMostOneCurrentAcrossOperations(t *testing.T) {
	ctx := context.Background()
	db, svc := newNoteService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &noteVersion{Title: "v1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 1; i <= 5; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		title := "v" + string(rune('1'+i))
		if _, _, err := svc.Update(ctx, nil, metaAt(at), created.NoteID, func(v *noteVersion) {
			v.Title = title
		}); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	if _, _, err := svc.Delete(ctx, nil, metaAt(t0.Add(10*time.Second)), created.NoteID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := svc.Undelete(ctx, nil, metaAt(t0.Add(11*time.Second)), created.NoteID); err != nil {
		t.Fatalf("undelete: %v", err)
	}

	if n := countOpenRows(t, db, "note_versions", "note_id", created.NoteID, ""); n != 1 {
		t.Fatalf("open rows = %d, want exactly 1", n)
	}
	var total int64
	if err := db.Table("note_versions").Where("note_id = ?", created.NoteID).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 6 {
		t.Fatalf("total snapshots = %d, want 6", total)
	}
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, svc := newNoteService(t)

	created, _, err := svc.Create(ctx, nil, metaAt(time.Now().UTC()), &noteVersion{Title: "t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _, err := svc.Delete(ctx, nil, metaAt(time.Now().UTC()), created.NoteID)
	if err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if first.DeletedAt == nil {
		t.Fatal("first delete did not set the marker")
	}
	second, _, err := svc.Delete(ctx, nil, metaAt(time.Now().UTC()), created.NoteID)
	if err != nil {
		t.Fatalf("second delete must not fail: %v", err)
	}
	if second.DeletedAt == nil {
		t.Fatal("second delete lost the marker")
	}

	// Deleted root has no current snapshot but keeps its open span.
	cur, err := svc.GetCurrent(ctx, created.NoteID)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if cur != nil {
		t.Fatalf("current after delete = %+v, want nil", cur)
	}
	var open int64
	if err := db.Table("note_versions").
		Where("note_id = ? AND valid_to IS NULL", created.NoteID).
		Count(&open).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if open != 1 {
		t.Fatalf("open spans = %d, want 1", open)
	}
}

func TestUndeleteRestoresCurrent(t *testing.T) {
	ctx := context.Background()
	_, svc := newNoteService(t)

	created, _, err := svc.Create(ctx, nil, metaAt(time.Now().UTC()), &noteVersion{Title: "t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Delete(ctx, nil, metaAt(time.Now().UTC()), created.NoteID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	restored, _, err := svc.Undelete(ctx, nil, metaAt(time.Now().UTC()), created.NoteID)
	if err != nil {
		t.Fatalf("undelete: %v", err)
	}
	if restored.DeletedAt != nil {
		t.Fatalf("restored snapshot still deleted: %+v", restored)
	}
	cur, err := svc.GetCurrent(ctx, created.NoteID)
	if err != nil || cur == nil {
		t.Fatalf("current after undelete = %v, %v", cur, err)
	}
	if cur.ID != created.ID {
		t.Fatalf("undelete should restore the same row, got %s want %s", cur.ID, created.ID)
	}
}

func TestUndoCreateRemovesAllTrace(t *testing.T) {
	ctx := context.Background()
	db, svc := newNoteService(t)

	created, receipt, err := svc.Create(ctx, nil, metaAt(time.Now().UTC()), &noteVersion{Title: "t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.UndoCreate(ctx, nil, receipt); err != nil {
		t.Fatalf("undo create: %v", err)
	}
	var total int64
	if err := db.Table("note_versions").Where("note_id = ?", created.NoteID).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 0 {
		t.Fatalf("rows after undo create = %d, want 0", total)
	}
}

func TestUndoCreateRejectedAfterInterveningUpdate(t *testing.T) {
	ctx := context.Background()
	_, svc := newNoteService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, receipt, err := svc.Create(ctx, nil, metaAt(t0), &noteVersion{Title: "t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Update(ctx, nil, metaAt(t0.Add(time.Second)), created.NoteID, func(v *noteVersion) {
		v.Title = "t2"
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.UndoCreate(ctx, nil, receipt); !IsValidation(err) {
		t.Fatalf("undo create after update: got %v, want validation error", err)
	}
}

func TestUndoUpdateReopensPredecessor(t *testing.T) {
	ctx := context.Background()
	db, svc := newNoteService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &noteVersion{Title: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, receipt, err := svc.Update(ctx, nil, metaAt(t0.Add(time.Second)), created.NoteID, func(v *noteVersion) {
		v.Title = "b"
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.UndoUpdate(ctx, nil, receipt); err != nil {
		t.Fatalf("undo update: %v", err)
	}

	cur, err := svc.GetCurrent(ctx, created.NoteID)
	if err != nil || cur == nil {
		t.Fatalf("current after undo = %v, %v", cur, err)
	}
	if cur.ID != created.ID || cur.Title != "a" {
		t.Fatalf("undo did not restore predecessor: %+v", cur)
	}
	var gone int64
	if err := db.Table("note_versions").Where("id = ?", updated.ID).Count(&gone).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if gone != 0 {
		t.Fatal("undone snapshot still present")
	}
}

func TestUndoUpdateRejectedAfterInterveningUpdate(t *testing.T) {
	ctx := context.Background()
	_, svc := newNoteService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &noteVersion{Title: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, firstReceipt, err := svc.Update(ctx, nil, metaAt(t0.Add(time.Second)), created.NoteID, func(v *noteVersion) {
		v.Title = "b"
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if _, _, err := svc.Update(ctx, nil, metaAt(t0.Add(2*time.Second)), created.NoteID, func(v *noteVersion) {
		v.Title = "c"
	}); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if err := svc.UndoUpdate(ctx, nil, firstReceipt); !IsValidation(err) {
		t.Fatalf("undo stale update: got %v, want validation error", err)
	}
}

func TestCloseIsConditionalOnStillOpen(t *testing.T) {
	ctx := context.Background()
	db, svc := newNoteService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &noteVersion{Title: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Simulate a racing transaction that already closed the snapshot.
	if err := db.Table("note_versions").
		Where("id = ?", created.ID).
		Update("valid_to", t0.Add(time.Second)).Error; err != nil {
		t.Fatalf("close out of band: %v", err)
	}
	cmd := UpdateVersionCommand[noteVersion, *noteVersion]{
		Meta:   metaAt(t0.Add(2 * time.Second)),
		RootID: created.NoteID,
		Apply:  func(v *noteVersion) { v.Title = "b" },
	}
	_, _, err = cmd.Execute(ctx, db)
	if !IsNotFound(err) {
		// The row is no longer current at all, so the read side reports
		// not-found before the close can even race.
		t.Fatalf("update on closed row: got %v, want not found", err)
	}

	// A closer holding a stale in-memory snapshot loses the conditional
	// UPDATE and gets a conflict instead of double-closing.
	err = closeVersion[noteVersion](ctx, db, "noteVersion", created, t0.Add(3*time.Second))
	if !IsConflict(err) {
		t.Fatalf("stale close: got %v, want conflict", err)
	}
}
