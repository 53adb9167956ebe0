// Package busy guards against two renders running at once on the same host.
package busy

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"reelforge/internal/services"
)

// Guard is an advisory file lock held for the duration of one render.
type Guard struct {
	path string
	lock *flock.Flock

	mu   sync.Mutex
	held bool
}

// New returns an unlocked guard backed by the file at path.
func New(path string) *Guard {
	return &Guard{path: path, lock: flock.New(path)}
}

// Path returns the lock file location.
func (g *Guard) Path() string {
	return g.path
}

// Acquire takes the lock without blocking. It fails with services.ErrBusy when
// another process (or another Guard in this one) holds it.
func (g *Guard) Acquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return services.Wrap(services.ErrBusy, "busy", "acquire", "lock already held by this guard", nil)
	}
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := g.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		msg := "another render is already running"
		if pid := readOwner(g.path); pid > 0 {
			msg = fmt.Sprintf("%s (pid %d)", msg, pid)
		}
		return services.Wrap(services.ErrBusy, "busy", "acquire", msg, nil)
	}
	g.held = true
	_ = os.WriteFile(g.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
	return nil
}

// Release drops the lock. Releasing an unheld guard is a no-op.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return nil
	}
	g.held = false
	if err := g.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Held reports whether the lock at path is currently taken by someone, and
// the owning pid when it was recorded.
func Held(path string) (bool, int, error) {
	probe := flock.New(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, 0, nil
	}
	ok, err := probe.TryLock()
	if err != nil {
		return false, 0, fmt.Errorf("probe lock: %w", err)
	}
	if ok {
		_ = probe.Unlock()
		return false, 0, nil
	}
	return true, readOwner(path), nil
}

func readOwner(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
