// Package viruscan scans caller-supplied buffers for viruses, records every
// detection and reloads the signature database on demand.
package viruscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lefred/mysql-component-viruscan/internal/access"
	"github.com/lefred/mysql-component-viruscan/internal/audit"
	"github.com/lefred/mysql-component-viruscan/internal/cache"
	"github.com/lefred/mysql-component-viruscan/internal/engine"
	"github.com/lefred/mysql-component-viruscan/internal/status"
	"github.com/lefred/mysql-component-viruscan/internal/types"
)

// Result texts of the virus_scan and virus_reload_engine functions.
const (
	TextClean        = "clean: no virus found"
	TextNoReload     = "No need to reload ClamAV engine"
	TextReloaded     = "ClamAV engine reloaded with new virus database: %d signatures"
	TextReloadUsage  = "ERROR: this function doesn't require any parameter !"
	TextReloadFailed = "ERROR: ClamAV engine reload failed: %s"
)

var (
	// ErrInternal is returned when a scan could not run at all.
	ErrInternal = errors.New("virus scan failed")
	// ErrArgCount is returned when virus_scan is not given exactly one argument.
	ErrArgCount = errors.New("virus_scan requires exactly one argument")
)

// Notifier receives every new match record.
type Notifier interface {
	PublishMatch(ctx context.Context, rec types.MatchRecord) error
}

// ScanResult is the outcome of Scan. Name is set for infected buffers,
// Reason for internal errors.
type ScanResult struct {
	Verdict types.Verdict
	Name    string
	Reason  string
}

// ReloadStatus classifies a reload request.
type ReloadStatus int

const (
	ReloadDenied ReloadStatus = iota
	ReloadUsage
	ReloadNoChange
	ReloadDone
	ReloadFailed
)

// ReloadResult is the outcome of Reload.
type ReloadResult struct {
	Status     ReloadStatus
	Signatures int
	Reason     string
}

// Service ties the access guard, the engine manager and the record store
// together. It is safe for concurrent use.
type Service struct {
	guard    *access.Guard
	engines  *engine.Manager
	store    *cache.Store
	counters *status.Counters
	notifier Notifier
	audit    *audit.AuditLog
	log      *slog.Logger
	now      func() time.Time
}

// ServiceOptions holds the optional collaborators of a Service.
type ServiceOptions struct {
	Notifier Notifier
	Audit    *audit.AuditLog
	Logger   *slog.Logger
}

// NewService builds a Service.
func NewService(guard *access.Guard, engines *engine.Manager, store *cache.Store, counters *status.Counters, opts ServiceOptions) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		guard:    guard,
		engines:  engines,
		store:    store,
		counters: counters,
		notifier: opts.Notifier,
		audit:    opts.Audit,
		log:      log,
		now:      time.Now,
	}
}

// Scan checks caller for VIRUS_SCAN, then scans buf with the active engine.
// An infected buffer produces one match record stamped with the caller's
// identity and the engine that found it.
func (s *Service) Scan(ctx context.Context, caller access.Caller, buf []byte) ScanResult {
	sc, err := s.guard.Authorize(ctx, caller, access.PrivilegeVirusScan)
	if err != nil {
		return ScanResult{Verdict: types.VerdictDenied}
	}
	h, err := s.engines.Current()
	if err != nil {
		s.log.Error("scan requested without a loaded engine", "error", err)
		return ScanResult{Verdict: types.VerdictInternalError, Reason: err.Error()}
	}
	defer h.Release()

	names, err := h.Scan(buf)
	if err != nil {
		s.log.Error("scan failed", "error", err)
		return ScanResult{Verdict: types.VerdictInternalError, Reason: err.Error()}
	}
	if len(names) == 0 {
		return ScanResult{Verdict: types.VerdictClean}
	}

	name := names[0]
	s.log.Error(fmt.Sprintf("Virus found: %s !!", name), "user", sc.User(), "host", sc.Host(), "matches", len(names))
	rec := types.NewMatchRecord(s.now(), name, sc.User(), sc.Host(), h.Version, types.Int(int64(h.Signatures)))
	s.store.Insert(rec)
	s.counters.IncVirusFound()
	if s.notifier != nil {
		if err := s.notifier.PublishMatch(ctx, rec); err != nil {
			s.log.Warn("publish match", "error", err)
		}
	}
	return ScanResult{Verdict: types.VerdictInfected, Name: name}
}

// Reload checks caller for VIRUS_SCAN, rejects any argument, then asks the
// engine manager to reload if the signature directory changed.
func (s *Service) Reload(ctx context.Context, caller access.Caller, nargs int) ReloadResult {
	sc, err := s.guard.Authorize(ctx, caller, access.PrivilegeVirusScan)
	if err != nil {
		return ReloadResult{Status: ReloadDenied}
	}
	if nargs > 0 {
		return ReloadResult{Status: ReloadUsage}
	}
	o := s.engines.MaybeReload(ctx)
	s.recordReload("function", sc.User(), sc.Host(), o)
	switch o.Kind {
	case engine.NoChangeNeeded:
		return ReloadResult{Status: ReloadNoChange}
	case engine.Reloaded:
		return ReloadResult{Status: ReloadDone, Signatures: o.Signatures}
	default:
		return ReloadResult{Status: ReloadFailed, Reason: o.Reason}
	}
}

// RecordBackgroundReload writes reloads triggered by the watcher or the
// schedule to the audit log.
func (s *Service) RecordBackgroundReload(source string, o engine.Outcome) {
	s.recordReload(source, "", "", o)
}

func (s *Service) recordReload(source, user, host string, o engine.Outcome) {
	if s.audit == nil {
		return
	}
	rec := audit.ReloadRecord{
		Source:     source,
		User:       user,
		Host:       host,
		Outcome:    o.Kind.String(),
		Signatures: o.Signatures,
		Reason:     o.Reason,
	}
	if o.Kind == engine.Reloaded {
		rec.Fingerprint = s.engines.LoadedFingerprint().String()
	}
	if err := s.audit.LogReload(rec); err != nil {
		s.log.Warn("audit reload", "error", err)
	}
}

// VirusScan is the virus_scan function: one argument, the buffer to scan.
// A NULL argument scans an empty buffer.
func (s *Service) VirusScan(ctx context.Context, caller access.Caller, args [][]byte) (string, error) {
	if len(args) != 1 {
		return "", ErrArgCount
	}
	res := s.Scan(ctx, caller, args[0])
	switch res.Verdict {
	case types.VerdictClean:
		return TextClean, nil
	case types.VerdictInfected:
		return res.Name, nil
	case types.VerdictDenied:
		return "", &access.DeniedError{Privilege: access.PrivilegeVirusScan}
	default:
		return "", fmt.Errorf("%w: %s", ErrInternal, res.Reason)
	}
}

// VirusReloadEngine is the virus_reload_engine function. It takes no argument.
func (s *Service) VirusReloadEngine(ctx context.Context, caller access.Caller, args [][]byte) (string, error) {
	res := s.Reload(ctx, caller, len(args))
	switch res.Status {
	case ReloadDenied:
		return "", &access.DeniedError{Privilege: access.PrivilegeVirusScan}
	case ReloadUsage:
		return TextReloadUsage, nil
	case ReloadNoChange:
		return TextNoReload, nil
	case ReloadDone:
		return fmt.Sprintf(TextReloaded, res.Signatures), nil
	default:
		return fmt.Sprintf(TextReloadFailed, res.Reason), nil
	}
}
