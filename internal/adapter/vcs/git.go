package vcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hookbridge/hookbridge/internal/port"
)

// RunFunc executes a git command in dir and returns its combined output.
// Injectable so tests can observe command sequences without a git binary.
type RunFunc func(ctx context.Context, dir string, args ...string) ([]byte, error)

// MirrorManager implements port.MirrorSyncer using the git CLI. It keeps one
// bare mirror per repository under rootDir, cloning on first sync and
// fetching on every later one. Syncs of the same mirror path serialize on a
// per-path lock; unrelated repositories sync in parallel.
type MirrorManager struct {
	rootDir string
	host    string
	timeout time.Duration
	run     RunFunc

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMirrorManager creates a mirror manager rooted at rootDir, cloning from
// the given provider host. Each clone or fetch is bounded by timeout.
func NewMirrorManager(rootDir, host string, timeout time.Duration) *MirrorManager {
	return &MirrorManager{
		rootDir: rootDir,
		host:    host,
		timeout: timeout,
		run:     runGit,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Sync ensures the mirror for owner/repo exists and is up to date. The root
// directory is a configuration precondition: it is never created here.
func (m *MirrorManager) Sync(ctx context.Context, owner, repo string, private bool) error {
	if _, err := os.Stat(m.rootDir); err != nil {
		return fmt.Errorf("%w: %s", port.ErrMirrorRootMissing, m.rootDir)
	}

	path := filepath.Join(m.rootDir, repo+".git")
	lock := m.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := os.Stat(path); err == nil {
		return m.fetch(ctx, path)
	}
	return m.clone(ctx, owner, repo, path, private)
}

// pathLock returns the exclusive lock for a mirror path, creating it on
// first use. Locks are never removed, so the table stays at one entry per
// distinct mirror.
func (m *MirrorManager) pathLock(path string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[path]
	if !ok {
		l = &sync.Mutex{}
		m.locks[path] = l
	}
	return l
}

func (m *MirrorManager) clone(ctx context.Context, owner, repo, path string, private bool) error {
	url := m.cloneURL(owner, repo, private)
	slog.Info("cloning bare mirror", "url", url, "path", path)

	out, err := m.run(ctx, m.rootDir, "clone", "--mirror", url, path)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: clone %s", port.ErrMirrorTimeout, url)
		}
		return fmt.Errorf("%w: %s: %v: %s", port.ErrCloneFailed, url, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (m *MirrorManager) fetch(ctx context.Context, path string) error {
	slog.Info("fetching mirror updates", "path", path)

	out, err := m.run(ctx, path, "fetch")
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: fetch %s", port.ErrMirrorTimeout, path)
		}
		return fmt.Errorf("%w: %s: %v: %s", port.ErrFetchFailed, path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// cloneURL builds the transport URL: SSH for private repositories (the host
// running this service must have a key registered with the provider),
// anonymous HTTPS otherwise.
func (m *MirrorManager) cloneURL(owner, repo string, private bool) string {
	if private {
		return fmt.Sprintf("git@%s:%s/%s.git", m.host, owner, repo)
	}
	return fmt.Sprintf("https://%s/%s/%s.git", m.host, owner, repo)
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
