package testsupport

import (
	"context"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob records a pending render for tests using the provided store.
func NewJob(t testing.TB, store *jobs.Store, title string) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), jobs.NewJob{
		Title:       title,
		ProjectPath: "/projects/" + title + ".toml",
		SourcePath:  "/media/" + title + ".mp4",
		OutputPath:  "/renders/" + title + ".mp4",
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
