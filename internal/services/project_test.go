package services

import (
	"context"
	"testing"

	"github.com/kestrelworks/orgvault/internal/evcs"
	"github.com/kestrelworks/orgvault/internal/repos"
)

func newProjectService(t *testing.T) ProjectService {
	t.Helper()
	db := newServiceDB(t)
	log := newTestLogger(t)
	return NewProjectService(db, log, repos.NewProjectRepo(db, log))
}

func TestProjectBranchMergeRevertFlow(t *testing.T) {
	ctx := context.Background()
	svc := newProjectService(t)

	project, v1, _, err := svc.Create(ctx, CreateProjectInput{
		Name:   "Atlas",
		Budget: 1000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v1.Branch != evcs.MainBranch {
		t.Fatalf("initial branch = %q", v1.Branch)
	}

	if _, _, err := svc.CreateBranch(ctx, project.ID, "q3-replan", ""); err != nil {
		t.Fatalf("create branch: %v", err)
	}
	budget := int64(2500)
	if _, _, err := svc.Update(ctx, project.ID, "q3-replan", UpdateProjectInput{Budget: &budget}); err != nil {
		t.Fatalf("update on branch: %v", err)
	}

	// Main unaffected until merge.
	main, err := svc.GetCurrent(ctx, project.ID, "")
	if err != nil || main == nil {
		t.Fatalf("main current: %v, %v", main, err)
	}
	if main.Budget != 1000 {
		t.Fatalf("main budget = %d before merge", main.Budget)
	}

	merged, _, err := svc.Merge(ctx, project.ID, "q3-replan", "")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Budget != 2500 || merged.Branch != evcs.MainBranch {
		t.Fatalf("merged = %+v", merged)
	}
	if merged.MergeFromBranch == nil || *merged.MergeFromBranch != "q3-replan" {
		t.Fatalf("merge provenance = %v", merged.MergeFromBranch)
	}

	reverted, _, err := svc.Revert(ctx, project.ID, "", nil)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if reverted.Budget != 1000 {
		t.Fatalf("revert budget = %d, want pre-merge 1000", reverted.Budget)
	}

	branches, err := svc.Branches(ctx, project.ID)
	if err != nil {
		t.Fatalf("branches: %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("branches = %v, want main and q3-replan", branches)
	}
}

func TestProjectValidation(t *testing.T) {
	ctx := context.Background()
	svc := newProjectService(t)

	if _, _, _, err := svc.Create(ctx, CreateProjectInput{Name: "  "}); !evcs.IsValidation(err) {
		t.Fatalf("blank name: got %v, want validation error", err)
	}
	if _, _, _, err := svc.Create(ctx, CreateProjectInput{Name: "X", Budget: -1}); !evcs.IsValidation(err) {
		t.Fatalf("negative budget: got %v, want validation error", err)
	}

	project, _, _, err := svc.Create(ctx, CreateProjectInput{Name: "Valid"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CreateBranch(ctx, project.ID, "  ", ""); !evcs.IsValidation(err) {
		t.Fatalf("blank branch name: got %v, want validation error", err)
	}
	if _, _, err := svc.Revert(ctx, project.ID, "", nil); !evcs.IsValidation(err) {
		t.Fatalf("revert with no history: got %v, want validation error", err)
	}
}

func TestProjectUndoCreate(t *testing.T) {
	ctx := context.Background()
	svc := newProjectService(t)

	project, _, receipt, err := svc.Create(ctx, CreateProjectInput{Name: "Ephemeral"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.UndoCreate(ctx, receipt); err != nil {
		t.Fatalf("undo create: %v", err)
	}
	current, err := svc.GetCurrent(ctx, project.ID, "")
	if err != nil {
		t.Fatalf("get after undo: %v", err)
	}
	if current != nil {
		t.Fatalf("project survived undo: %+v", current)
	}
	branches, err := svc.Branches(ctx, project.ID)
	if err != nil {
		t.Fatalf("branches: %v", err)
	}
	if len(branches) != 0 {
		t.Fatalf("branches after undo = %v, want none", branches)
	}
}
