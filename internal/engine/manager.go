package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lefred/mysql-component-viruscan/internal/scanner"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb"
	"github.com/lefred/mysql-component-viruscan/internal/types"
)

var (
	// ErrLibraryInit means the scan library itself could not start. No
	// engine can be loaded for the lifetime of the process.
	ErrLibraryInit = errors.New("scan library initialization failed")
	// ErrNoEngine is returned by Current when no engine is published.
	ErrNoEngine = errors.New("no scan engine loaded")
)

// OutcomeKind classifies a reload attempt.
type OutcomeKind int

const (
	NoChangeNeeded OutcomeKind = iota
	Reloaded
	ReloadFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case NoChangeNeeded:
		return "no_change"
	case Reloaded:
		return "reloaded"
	case ReloadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of MaybeReload.
type Outcome struct {
	Kind       OutcomeKind
	Signatures int
	Reason     string
}

// Options configure a Manager.
type Options struct {
	// Dir is the signature directory.
	Dir string
	// Include selects signature files inside Dir; empty uses sigdb.DefaultInclude.
	Include string
	Logger  *slog.Logger
	// OnPublish runs after every successful load, with the new handle.
	OnPublish func(h *Handle)
	// OnBackgroundReload runs after reloads started by Watch or Schedule.
	OnBackgroundReload func(source string, o Outcome)
}

// Manager owns the active engine. Scans read it without locking; loads are
// serialized and publish a new Handle only once it compiled successfully.
type Manager struct {
	backend scanner.Backend
	opts    Options
	log     *slog.Logger

	mu          sync.Mutex // serializes loads, guards fingerprint and initErr
	fingerprint sigdb.Fingerprint
	initErr     error

	current atomic.Pointer[Handle]
}

// NewManager returns a manager with no engine loaded.
func NewManager(backend scanner.Backend, opts Options) *Manager {
	if opts.Include == "" {
		opts.Include = sigdb.DefaultInclude
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{backend: backend, opts: opts, log: log.With("backend", backend.Name())}
}

// Dir returns the signature directory.
func (m *Manager) Dir() string { return m.opts.Dir }

// Backend returns the scan library in use.
func (m *Manager) Backend() scanner.Backend { return m.backend }

// LoadInitial initializes the scan library and loads the first engine.
// A library failure is reported wrapped in ErrLibraryInit and leaves the
// manager degraded; a load failure leaves no engine published. Neither stops
// the caller from serving: scans then fail with an internal error.
func (m *Manager) LoadInitial(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.backend.Init(); err != nil {
		m.initErr = err
		m.log.Error("Can't initialize scan library", "error", err)
		return fmt.Errorf("%w: %v", ErrLibraryInit, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	fp, fpErr := sigdb.ComputeFingerprint(m.opts.Dir, m.opts.Include)
	s, err := m.backend.Compile(m.opts.Dir)
	if err != nil {
		m.log.Error("Database initialization error", "dir", m.opts.Dir, "error", err)
		return fmt.Errorf("load signatures from %s: %w", m.opts.Dir, err)
	}
	if fpErr != nil {
		// compiled but cannot be fingerprinted; the next check reloads
		m.log.Warn("fingerprint signature dir", "dir", m.opts.Dir, "error", fpErr)
	}
	h := m.publish(s, fp)
	m.log.Info("Loaded signatures", "signatures", h.Signatures, "version", h.Version, "dir", m.opts.Dir)
	return nil
}

// Fingerprint computes the current fingerprint of the signature directory.
func (m *Manager) Fingerprint() (sigdb.Fingerprint, error) {
	return sigdb.ComputeFingerprint(m.opts.Dir, m.opts.Include)
}

// LoadedFingerprint returns the fingerprint recorded at the last successful load.
func (m *Manager) LoadedFingerprint() sigdb.Fingerprint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fingerprint
}

// MaybeReload recompiles the engine when the directory fingerprint differs
// from the one recorded at the last successful load. On failure the current
// engine stays active and the recorded fingerprint is left untouched, so the
// next call tries again.
func (m *Manager) MaybeReload(ctx context.Context) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initErr != nil {
		return Outcome{Kind: ReloadFailed, Reason: "scan library not initialized: " + m.initErr.Error()}
	}
	fp, err := sigdb.ComputeFingerprint(m.opts.Dir, m.opts.Include)
	if err != nil {
		m.log.Error("Error checking signature database", "dir", m.opts.Dir, "error", err)
		return Outcome{Kind: ReloadFailed, Reason: m.reason(err)}
	}
	if fp.Equal(m.fingerprint) {
		return Outcome{Kind: NoChangeNeeded}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: ReloadFailed, Reason: err.Error()}
	}
	s, err := m.backend.Compile(m.opts.Dir)
	if err != nil {
		m.log.Error("Database initialization error", "dir", m.opts.Dir, "error", err)
		return Outcome{Kind: ReloadFailed, Reason: m.reason(err)}
	}
	h := m.publish(s, fp)
	m.log.Info("Engine reloaded", "signatures", h.Signatures, "fingerprint", fp.String())
	return Outcome{Kind: Reloaded, Signatures: h.Signatures}
}

// reason renders err for callers outside the process: paths inside the
// signature directory become file names and the directory itself its base name.
func (m *Manager) reason(err error) string {
	msg := err.Error()
	dir := filepath.Clean(m.opts.Dir)
	if dir == "." || dir == string(filepath.Separator) {
		return msg
	}
	msg = strings.ReplaceAll(msg, dir+string(filepath.Separator), "")
	return strings.ReplaceAll(msg, dir, filepath.Base(dir))
}

// publish must be called with mu held.
func (m *Manager) publish(s scanner.Scanner, fp sigdb.Fingerprint) *Handle {
	h := &Handle{
		Signatures:  s.Signatures(),
		Version:     types.Clip(m.backend.Version(), types.MaxEngineVersionBytes),
		Fingerprint: fp,
		LoadedAt:    time.Now(),
		scanner:     s,
		log:         m.log,
	}
	h.refs.Store(1)
	if old := m.current.Swap(h); old != nil {
		old.Release()
	}
	m.fingerprint = fp
	if m.opts.OnPublish != nil {
		m.opts.OnPublish(h)
	}
	return h
}

// Current returns the active handle with a reference held. Callers must
// Release it when done.
func (m *Manager) Current() (*Handle, error) {
	for {
		h := m.current.Load()
		if h == nil {
			return nil, ErrNoEngine
		}
		if h.tryAcquire() {
			return h, nil
		}
	}
}

// Close retires the active engine. In-flight scans finish on it first.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old := m.current.Swap(nil); old != nil {
		old.Release()
	}
	m.fingerprint = sigdb.Fingerprint{}
}
