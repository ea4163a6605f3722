package evcs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCreateBranchLeavesSourceOpen(t *testing.T) {
	ctx := context.Background()
	db, svc := newDraftService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "base", Budget: 100}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Branch != MainBranch {
		t.Fatalf("default branch = %q, want %q", created.Branch, MainBranch)
	}

	branched, _, err := svc.CreateBranch(ctx, nil, metaAt(t0.Add(time.Second)), created.DraftID, "feature", "main")
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if branched.Branch != "feature" || branched.Name != "base" || branched.Budget != 100 {
		t.Fatalf("branched snapshot = %+v, want copy of source on feature", branched)
	}
	if branched.ParentID == nil || *branched.ParentID != created.ID {
		t.Fatalf("branched parent = %v, want %s", branched.ParentID, created.ID)
	}

	// Source branch keeps its current snapshot; branching does not close it.
	var source draftVersion
	if err := db.Where("id = ?", created.ID).First(&source).Error; err != nil {
		t.Fatalf("reload source: %v", err)
	}
	if source.ValidTo != nil {
		t.Fatalf("source closed by branch: %+v", source)
	}
	if n := countOpenRows(t, db, "draft_versions", "draft_id", created.DraftID, "main"); n != 1 {
		t.Fatalf("open main rows = %d, want 1", n)
	}
	if n := countOpenRows(t, db, "draft_versions", "draft_id", created.DraftID, "feature"); n != 1 {
		t.Fatalf("open feature rows = %d, want 1", n)
	}
}

func TestCreateBranchFromMissingSource(t *testing.T) {
	ctx := context.Background()
	_, svc := newDraftService(t)

	_, _, err := svc.CreateBranch(ctx, nil, metaAt(time.Now().UTC()), uuid.New(), "feature", "main")
	if !IsNotFound(err) {
		t.Fatalf("branch from absent source: got %v, want not found", err)
	}
}

func TestBranchIsolation(t *testing.T) {
	ctx := context.Background()
	_, svc := newDraftService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "orig"}, "main")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CreateBranch(ctx, nil, metaAt(t0.Add(time.Second)), created.DraftID, "feature", "main"); err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if _, _, err := svc.Update(ctx, nil, metaAt(t0.Add(2*time.Second)), created.DraftID, "feature", func(v *draftVersion) {
		v.Name = "X"
	}); err != nil {
		t.Fatalf("update on feature: %v", err)
	}

	main, err := svc.GetCurrent(ctx, created.DraftID, "main")
	if err != nil || main == nil {
		t.Fatalf("main current: %v, %v", main, err)
	}
	if main.Name != "orig" {
		t.Fatalf("main leaked feature update: %+v", main)
	}
	feature, err := svc.GetCurrent(ctx, created.DraftID, "feature")
	if err != nil || feature == nil {
		t.Fatalf("feature current: %v, %v", feature, err)
	}
	if feature.Name != "X" {
		t.Fatalf("feature current = %+v, want name X", feature)
	}
}

func TestMergeOverwriteSemantics(t *testing.T) {
	ctx := context.Background()
	db, svc := newDraftService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "A"}, "main")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CreateBranch(ctx, nil, metaAt(t0.Add(time.Second)), created.DraftID, "feature", "main"); err != nil {
		t.Fatalf("create branch: %v", err)
	}
	featureHead, _, err := svc.Update(ctx, nil, metaAt(t0.Add(2*time.Second)), created.DraftID, "feature", func(v *draftVersion) {
		v.Name = "B"
	})
	if err != nil {
		t.Fatalf("update feature: %v", err)
	}
	oldMain, err := svc.GetCurrent(ctx, created.DraftID, "main")
	if err != nil || oldMain == nil {
		t.Fatalf("main current: %v, %v", oldMain, err)
	}

	merged, _, err := svc.Merge(ctx, nil, metaAt(t0.Add(3*time.Second)), created.DraftID, "feature", "main")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Name != "B" || merged.Branch != "main" {
		t.Fatalf("merged = %+v, want feature content on main", merged)
	}
	if merged.ParentID == nil || *merged.ParentID != oldMain.ID {
		t.Fatalf("merged parent = %v, want old main head %s", merged.ParentID, oldMain.ID)
	}
	if merged.MergeFromBranch == nil || *merged.MergeFromBranch != "feature" {
		t.Fatalf("merge provenance = %v, want feature", merged.MergeFromBranch)
	}

	// Old main head is closed; feature head is untouched.
	var closedMain draftVersion
	if err := db.Where("id = ?", oldMain.ID).First(&closedMain).Error; err != nil {
		t.Fatalf("reload old main: %v", err)
	}
	if closedMain.ValidTo == nil {
		t.Fatal("merge did not close target's previous head")
	}
	var feature draftVersion
	if err := db.Where("id = ?", featureHead.ID).First(&feature).Error; err != nil {
		t.Fatalf("reload feature head: %v", err)
	}
	if feature.ValidTo != nil || feature.Name != "B" {
		t.Fatalf("merge mutated source branch: %+v", feature)
	}
}

func TestMergeRequiresBothBranches(t *testing.T) {
	ctx := context.Background()
	_, svc := newDraftService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "A"}, "main")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Merge(ctx, nil, metaAt(t0.Add(time.Second)), created.DraftID, "ghost", "main"); !IsNotFound(err) {
		t.Fatalf("merge from absent source: got %v, want not found", err)
	}
	if _, _, err := svc.Merge(ctx, nil, metaAt(t0.Add(time.Second)), created.DraftID, "main", "ghost"); !IsNotFound(err) {
		t.Fatalf("merge into absent target: got %v, want not found", err)
	}
}

func TestRevertRestoresContentNotIdentity(t *testing.T) {
	ctx := context.Background()
	db, svc := newDraftService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	v1, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "A"}, "main")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v2, _, err := svc.Update(ctx, nil, metaAt(t0.Add(time.Second)), v1.DraftID, "main", func(v *draftVersion) {
		v.Name = "B"
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	v3, _, err := svc.Revert(ctx, nil, metaAt(t0.Add(2*time.Second)), v1.DraftID, "main", nil)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if v3.Name != "A" {
		t.Fatalf("revert content = %q, want A", v3.Name)
	}
	if v3.ParentID == nil || *v3.ParentID != v2.ID {
		t.Fatalf("revert parent = %v, want current head %s (history stays linear)", v3.ParentID, v2.ID)
	}
	if v3.ID == v1.ID {
		t.Fatal("revert must mint a new snapshot, not resurrect v1")
	}

	// Historical rows stay immutable.
	var h1, h2 draftVersion
	if err := db.Where("id = ?", v1.ID).First(&h1).Error; err != nil {
		t.Fatalf("reload v1: %v", err)
	}
	if err := db.Where("id = ?", v2.ID).First(&h2).Error; err != nil {
		t.Fatalf("reload v2: %v", err)
	}
	if h1.Name != "A" || h2.Name != "B" {
		t.Fatalf("history rewritten: v1=%+v v2=%+v", h1, h2)
	}
	if h2.ValidTo == nil {
		t.Fatal("revert did not close the previous head")
	}
}

func TestRevertExplicitTarget(t *testing.T) {
	ctx := context.Background()
	_, svc := newDraftService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	v1, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "A", Budget: 1}, "main")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, name := range []string{"B", "C"} {
		if _, _, err := svc.Update(ctx, nil, metaAt(t0.Add(time.Duration(i+1)*time.Second)), v1.DraftID, "main", func(v *draftVersion) {
			v.Name = name
		}); err != nil {
			t.Fatalf("update %s: %v", name, err)
		}
	}

	restored, _, err := svc.Revert(ctx, nil, metaAt(t0.Add(3*time.Second)), v1.DraftID, "main", &v1.ID)
	if err != nil {
		t.Fatalf("revert to v1: %v", err)
	}
	if restored.Name != "A" || restored.Budget != 1 {
		t.Fatalf("restored = %+v, want v1 content", restored)
	}
}

func TestRevertWithNoTargetFailsValidation(t *testing.T) {
	ctx := context.Background()
	_, svc := newDraftService(t)

	v1, _, err := svc.Create(ctx, nil, metaAt(time.Now().UTC()), &draftVersion{Name: "A"}, "main")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Revert(ctx, nil, metaAt(time.Now().UTC()), v1.DraftID, "main", nil); !IsValidation(err) {
		t.Fatalf("revert root snapshot: got %v, want validation error", err)
	}
}

func TestRevertTargetFromOtherRootRejected(t *testing.T) {
	ctx := context.Background()
	_, svc := newDraftService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	a, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "A"}, "main")
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "B"}, "main")
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if _, _, err := svc.Revert(ctx, nil, metaAt(t0.Add(time.Second)), a.DraftID, "main", &b.ID); !IsValidation(err) {
		t.Fatalf("revert to foreign snapshot: got %v, want validation error", err)
	}
}

func TestBranchSoftDeleteClosesAndClones(t *testing.T) {
	ctx := context.Background()
	db, svc := newDraftService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "A"}, "main")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	deleted, _, err := svc.Delete(ctx, nil, metaAt(t0.Add(time.Second)), created.DraftID, "main")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID == created.ID {
		t.Fatal("branch delete must open a new snapshot")
	}
	if deleted.DeletedAt == nil || deleted.ParentID == nil || *deleted.ParentID != created.ID {
		t.Fatalf("deleted snapshot = %+v, want marker and parent link", deleted)
	}
	var old draftVersion
	if err := db.Where("id = ?", created.ID).First(&old).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if old.ValidTo == nil {
		t.Fatal("previous head not closed by delete")
	}

	// Idempotent: second delete re-confirms without raising.
	again, _, err := svc.Delete(ctx, nil, metaAt(t0.Add(2*time.Second)), created.DraftID, "main")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if again.ID != deleted.ID {
		t.Fatalf("second delete minted a new snapshot: %+v", again)
	}
}

func TestListBranches(t *testing.T) {
	ctx := context.Background()
	_, svc := newDraftService(t)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	created, _, err := svc.Create(ctx, nil, metaAt(t0), &draftVersion{Name: "A"}, "main")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CreateBranch(ctx, nil, metaAt(t0.Add(time.Second)), created.DraftID, "feature", "main"); err != nil {
		t.Fatalf("branch: %v", err)
	}
	if _, _, err := svc.CreateBranch(ctx, nil, metaAt(t0.Add(2*time.Second)), created.DraftID, "draft2", "feature"); err != nil {
		t.Fatalf("branch 2: %v", err)
	}

	branches, err := svc.ListBranches(ctx, created.DraftID)
	if err != nil {
		t.Fatalf("list branches: %v", err)
	}
	want := []string{"draft2", "feature", "main"}
	if len(branches) != len(want) {
		t.Fatalf("branches = %v, want %v", branches, want)
	}
	for i := range want {
		if branches[i] != want[i] {
			t.Fatalf("branches = %v, want %v", branches, want)
		}
	}
}
