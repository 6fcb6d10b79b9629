// Package ledger owns the temporary files and handles created during a merge
// run and releases all of them exactly once.
package ledger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"stockmerge/internal/faults"
	"stockmerge/internal/logx"
)

// DefaultGrace is the pause between closing handles and deleting files.
const DefaultGrace = time.Second

const dirPrefix = "stockmerge-"

// Options configures a Ledger.
type Options struct {
	// Grace is slept after handles are closed and before the directory is
	// removed, letting encoders and players drop their file locks.
	Grace  time.Duration
	Logger *slog.Logger
}

type handle struct {
	name   string
	closer io.Closer
}

// Ledger is a run-scoped temp directory plus a registry of open handles.
type Ledger struct {
	dir    string
	lock   *flock.Flock
	grace  time.Duration
	logger *slog.Logger
	sleep  func(time.Duration)

	mu       sync.Mutex
	paths    []string
	handles  []handle
	released bool
	warnings []faults.CleanupWarning
}

// New creates <root>/stockmerge-<uuid> and takes an exclusive lock on
// <dir>.lock. An empty root uses os.TempDir.
func New(root string, opts Options) (*Ledger, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure work root: %w", err)
	}

	dir := filepath.Join(root, dirPrefix+uuid.NewString())
	lock := flock.New(dir + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("run directory %s is locked by another process", dir)
	}

	if err := os.Mkdir(dir, 0o755); err != nil {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	return &Ledger{
		dir:    dir,
		lock:   lock,
		grace:  opts.Grace,
		logger: logx.OrNop(opts.Logger),
		sleep:  time.Sleep,
	}, nil
}

// Dir returns the run directory.
func (l *Ledger) Dir() string {
	return l.dir
}

// Path issues a unique path inside the run directory and registers it.
// kind becomes the file name prefix; ext may be given with or without a dot.
func (l *Ledger) Path(kind, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	name := sanitize(kind) + "-" + uuid.NewString()[:8]
	if ext != "" {
		name += "." + ext
	}
	path := filepath.Join(l.dir, name)
	l.Track(path)
	return path
}

// Track registers an existing path for removal.
func (l *Ledger) Track(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

// Acquire registers a handle to be closed on release.
func (l *Ledger) Acquire(name string, closer io.Closer) {
	if closer == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		// Late registrations are closed immediately.
		if err := closer.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			l.logger.Warn("close late handle", slog.String("name", name), logx.Err(err))
		}
		return
	}
	l.handles = append(l.handles, handle{name: name, closer: closer})
}

// CreateFile opens a fresh ledger path for writing and registers the handle.
func (l *Ledger) CreateFile(kind, ext string) (*os.File, error) {
	path := l.Path(kind, ext)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	l.Acquire(path, file)
	return file, nil
}

// Len reports how many paths and handles are registered.
func (l *Ledger) Len() (paths, handles int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.paths), len(l.handles)
}

// ReleaseAll closes handles in reverse order, waits for the grace period, and
// removes the run directory and its lock. Only the first call does any work;
// later calls return the same warnings. Failures never abort the release.
func (l *Ledger) ReleaseAll() []faults.CleanupWarning {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return l.warnings
	}
	l.released = true

	for i := len(l.handles) - 1; i >= 0; i-- {
		h := l.handles[i]
		if err := h.closer.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			l.warn(h.name, err)
		}
	}
	l.handles = nil

	if l.grace > 0 {
		l.sleep(l.grace)
	}

	// Paths registered outside the run directory are removed individually.
	for _, path := range l.paths {
		if within(l.dir, path) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			l.warn(path, err)
		}
	}
	if err := os.RemoveAll(l.dir); err != nil {
		l.warn(l.dir, err)
	}

	if err := l.lock.Unlock(); err != nil {
		l.warn(l.lock.Path(), err)
	}
	if err := os.Remove(l.lock.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.warn(l.lock.Path(), err)
	}

	l.logger.Debug("released run directory",
		slog.String("dir", l.dir),
		slog.Int("paths", len(l.paths)),
		slog.Int("warnings", len(l.warnings)),
	)
	return l.warnings
}

func (l *Ledger) warn(path string, err error) {
	w := faults.CleanupWarning{Path: path, Err: err}
	l.warnings = append(l.warnings, w)
	l.logger.Warn("cleanup failed", slog.String("path", path), logx.Err(err))
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func sanitize(kind string) string {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return "asset"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, kind)
}
