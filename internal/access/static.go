package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrUnknownCaller is returned by providers that cannot identify a caller.
var ErrUnknownCaller = errors.New("unknown caller")

// StaticProvider grants privileges from a fixed table keyed by account
// patterns such as "alice@localhost", "ops@10.0.*" or "monitor@%". The host
// part is a glob; "%" matches any host. A pattern without "@" matches the
// user from any host. The first matching account wins, in the order given.
type StaticProvider struct {
	accounts []account
}

type account struct {
	user, host string
	grants     []string
}

// NewStaticProvider validates the grant table.
func NewStaticProvider(grants []Grant) (*StaticProvider, error) {
	p := &StaticProvider{}
	for _, g := range grants {
		user, host, ok := strings.Cut(g.Account, "@")
		if !ok || host == "" {
			host = "%"
		}
		if user == "" {
			return nil, fmt.Errorf("grant %q: empty user", g.Account)
		}
		pattern := strings.ReplaceAll(host, "%", "*")
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("grant %q: invalid host pattern", g.Account)
		}
		p.accounts = append(p.accounts, account{user: user, host: pattern, grants: g.Privileges})
	}
	return p, nil
}

// Grant lists the privileges of one account pattern.
type Grant struct {
	Account    string   `yaml:"account"`
	Privileges []string `yaml:"privileges"`
}

// Resolve implements Provider.
func (p *StaticProvider) Resolve(_ context.Context, c Caller) (SecurityContext, error) {
	if c.User == "" {
		return nil, ErrUnknownCaller
	}
	for _, a := range p.accounts {
		if a.user != c.User {
			continue
		}
		if ok, _ := doublestar.Match(a.host, c.Host); ok {
			return NewSecurityContext(c.User, c.Host, a.grants...), nil
		}
	}
	return NewSecurityContext(c.User, c.Host), nil
}
