package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"reelforge/internal/jobs"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
)

func TestJobsListShowAndClear(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "jobs", "list")
	requireContains(t, out, "No renders recorded")

	store := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()
	done := testsupport.NewJob(t, store, "intro")
	if err := store.MarkRendering(ctx, done.ID, 300); err != nil {
		t.Fatalf("MarkRendering: %v", err)
	}
	if err := store.UpdateProgress(ctx, done.ID, 300, 1); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := store.Complete(ctx, done.ID, ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	failed := testsupport.NewJob(t, store, "outro")
	cause := services.Wrap(services.ErrResourceLoad, "render", "preload", "failed to load overlay images", errors.New("bad png"))
	if err := store.Fail(ctx, failed.ID, cause); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	pending := testsupport.NewJob(t, store, "credits")

	out = env.mustRun(t, "jobs", "list")
	requireContains(t, out, "intro")
	requireContains(t, out, "100% (300/300)")
	requireContains(t, out, "outro")

	out = env.mustRun(t, "jobs", "list", "--json", "--status", "failed")
	var listed []jobs.Job
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != failed.ID {
		t.Fatalf("expected only the failed job, got %+v", listed)
	}

	out = env.mustRun(t, "jobs", "show", failed.ID[:8])
	requireContains(t, out, "[resource_load]")
	requireContains(t, out, "failed to load overlay images")

	if _, _, err := runCLI(t, []string{"jobs", "list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}

	out = env.mustRun(t, "jobs", "clear")
	requireContains(t, out, "Removed 2 render(s)")

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != pending.ID {
		t.Fatalf("expected pending job to survive clear, got %+v", remaining)
	}

	if _, _, err := runCLI(t, []string{"jobs", "clear", "--status", "pending"}, env.configPath); err == nil {
		t.Fatal("expected clearing in-flight statuses to fail")
	}
}
