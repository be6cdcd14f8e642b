// Package access decides whether a caller holds a named global privilege.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// PrivilegeVirusScan is required by every scan and reload.
const PrivilegeVirusScan = "VIRUS_SCAN"

// ErrDenied matches every *DeniedError.
var ErrDenied = errors.New("access denied")

// DeniedError is the only error a caller sees when a privilege check fails,
// whatever the cause.
type DeniedError struct {
	Privilege string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("Access denied; you need (at least one of) the %s privilege(s) for this operation", e.Privilege)
}

func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

// Caller is the identity attached to a request by the host.
type Caller struct {
	User  string
	Host  string
	Token string
}

// SecurityContext is a resolved caller.
type SecurityContext interface {
	User() string
	Host() string
	HasGlobalGrant(privilege string) bool
}

// Provider resolves a Caller into a SecurityContext.
type Provider interface {
	Resolve(ctx context.Context, c Caller) (SecurityContext, error)
}

// Guard checks privileges through a Provider. It fails closed.
type Guard struct {
	provider Provider
	log      *slog.Logger
}

// NewGuard returns a guard backed by p.
func NewGuard(p Provider, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{provider: p, log: log}
}

// Authorize resolves c and verifies it holds privilege. Resolution failures
// are logged as internal errors, plain denials at debug level; both return a
// *DeniedError.
func (g *Guard) Authorize(ctx context.Context, c Caller, privilege string) (SecurityContext, error) {
	if g == nil || g.provider == nil {
		return nil, &DeniedError{Privilege: privilege}
	}
	sc, err := g.provider.Resolve(ctx, c)
	if err != nil || sc == nil {
		g.log.Error("problem trying to get security context", "user", c.User, "host", c.Host, "error", err)
		return nil, &DeniedError{Privilege: privilege}
	}
	if !sc.HasGlobalGrant(privilege) {
		g.log.Debug("privilege not granted", "user", sc.User(), "host", sc.Host(), "privilege", privilege)
		return nil, &DeniedError{Privilege: privilege}
	}
	return sc, nil
}

// Check reports whether c holds privilege.
func (g *Guard) Check(ctx context.Context, c Caller, privilege string) bool {
	_, err := g.Authorize(ctx, c, privilege)
	return err == nil
}

type securityContext struct {
	user, host string
	grants     map[string]bool
}

func (s *securityContext) User() string { return s.user }
func (s *securityContext) Host() string { return s.host }
func (s *securityContext) HasGlobalGrant(p string) bool {
	return s.grants[p]
}

// NewSecurityContext builds a context holding exactly the given grants.
func NewSecurityContext(user, host string, grants ...string) SecurityContext {
	sc := &securityContext{user: user, host: host, grants: make(map[string]bool, len(grants))}
	for _, g := range grants {
		sc.grants[g] = true
	}
	return sc
}
