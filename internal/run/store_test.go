package run_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"marketreel/internal/run"
	"marketreel/internal/testsupport"
)

func TestNewRunStartsPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewRun(t, store, "2026-08-21")
	if item.Status != run.StatusPending {
		t.Fatalf("status = %s, want pending", item.Status)
	}
	if item.RunID == "" {
		t.Fatal("run_id not assigned")
	}
	if item.TradeDate != "2026-08-21" {
		t.Fatalf("trade_date = %s", item.TradeDate)
	}
}

func TestUpdatePersistsArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewRun(t, store, "2026-08-21")
	item.Status = run.StatusScripted
	item.Title = "Markets Rally"
	item.SourceFile = "/runs/x/source.json"
	item.ScriptFile = "/runs/x/script.json"
	item.Attempt = 2
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	loaded, err := store.GetByRunID(ctx, item.RunID)
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if loaded.Status != run.StatusScripted || loaded.ScriptFile != "/runs/x/script.json" {
		t.Fatalf("artifacts not persisted: %+v", loaded)
	}
	if loaded.Attempt != 2 {
		t.Fatalf("attempt = %d, want 2", loaded.Attempt)
	}
}

func TestResetStuckProcessingRollsBackOneStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := map[run.Status]run.Status{
		run.StatusScraping:     run.StatusPending,
		run.StatusNarrating:    run.StatusScripted,
		run.StatusRendering:    run.StatusPlanned,
		run.StatusIllustrating: run.StatusNarrated,
	}
	ids := make(map[run.Status]string)
	for processing := range cases {
		item := testsupport.NewRun(t, store, "2026-08-21")
		item.Status = processing
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids[processing] = item.RunID
	}

	affected, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if affected != int64(len(cases)) {
		t.Fatalf("affected = %d, want %d", affected, len(cases))
	}
	for processing, stable := range cases {
		loaded, err := store.GetByRunID(ctx, ids[processing])
		if err != nil {
			t.Fatalf("GetByRunID failed: %v", err)
		}
		if loaded.Status != stable {
			t.Errorf("%s reset to %s, want %s", processing, loaded.Status, stable)
		}
	}
}

func TestResetLeavesStableStatesAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewRun(t, store, "2026-08-21")
	item.Status = run.StatusAligned
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := store.ResetStuckProcessing(ctx); err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	loaded, err := store.GetByRunID(ctx, item.RunID)
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if loaded.Status != run.StatusAligned {
		t.Fatalf("stable status changed to %s", loaded.Status)
	}
}

func TestRetryFailedResetsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewRun(t, store, "2026-08-21")
	item.SetFailed("synthesis exploded")
	item.Attempt = 3
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	affected, err := store.RetryFailed(ctx, item.RunID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}
	loaded, err := store.GetByRunID(ctx, item.RunID)
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if loaded.Status != run.StatusPending || loaded.Attempt != 0 || loaded.ErrorMessage != "" {
		t.Fatalf("retry did not reset run: %+v", loaded)
	}
}

func TestClearCompletedReturnsRunIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done := testsupport.NewRun(t, store, "2026-08-20")
	done.Status = run.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	testsupport.NewRun(t, store, "2026-08-21")

	ids, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != done.RunID {
		t.Fatalf("ids = %v", ids)
	}
	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(remaining))
	}
}

func TestLatestReturnsNewestRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewRun(t, store, "2026-08-20")
	newest := testsupport.NewRun(t, store, "2026-08-21")

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.RunID != newest.RunID {
		t.Fatalf("latest = %s, want %s", latest.RunID, newest.RunID)
	}
}

func TestPathsLayout(t *testing.T) {
	paths := run.NewPaths("/work/runs", "abc")
	if paths.Script() != filepath.Join("/work/runs/abc", "script.json") {
		t.Errorf("script path = %s", paths.Script())
	}
	if paths.ImageFor("topic-01") != filepath.Join("/work/runs/abc/images", "topic-01.png") {
		t.Errorf("image path = %s", paths.ImageFor("topic-01"))
	}
}

func TestPathsEnsureAndRemove(t *testing.T) {
	paths := run.NewPaths(t.TempDir(), "abc")
	if err := paths.Ensure(); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if _, err := os.Stat(paths.ImagesDir()); err != nil {
		t.Fatalf("images dir missing: %v", err)
	}
	if err := paths.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(paths.Dir); !os.IsNotExist(err) {
		t.Fatal("run dir not removed")
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := run.AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer first.Release()

	if _, err := run.AcquireLock(dir); err == nil {
		t.Fatal("second lock acquisition must fail while held")
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	second, err := run.AcquireLock(dir)
	if err != nil {
		t.Fatalf("reacquire after release failed: %v", err)
	}
	second.Release()
}
