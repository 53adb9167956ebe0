package busy_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/busy"
	"reelforge/internal/services"
)

func TestAcquireIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "render.lock")
	first := busy.New(path)
	second := busy.New(path)

	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	t.Cleanup(func() { _ = first.Release() })

	err := second.Acquire()
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}

	held, pid, err := busy.Held(path)
	if err != nil {
		t.Fatalf("Held failed: %v", err)
	}
	if !held || pid != os.Getpid() {
		t.Fatalf("expected lock held by pid %d, got held=%v pid=%d", os.Getpid(), held, pid)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second Release should be a no-op, got %v", err)
	}
	if err := second.Acquire(); err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestHeldWithoutLockFile(t *testing.T) {
	held, pid, err := busy.Held(filepath.Join(t.TempDir(), "missing.lock"))
	if err != nil || held || pid != 0 {
		t.Fatalf("expected free lock, got held=%v pid=%d err=%v", held, pid, err)
	}
}

func TestAcquireTwiceOnSameGuard(t *testing.T) {
	g := busy.New(filepath.Join(t.TempDir(), "render.lock"))
	if err := g.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	t.Cleanup(func() { _ = g.Release() })
	if err := g.Acquire(); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy error on re-acquire, got %v", err)
	}
}
