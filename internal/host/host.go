// Package host is the in-process registry that components plug into: named
// functions callable with positional arguments, global privileges, status
// variables and read-only tables.
package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lefred/mysql-component-viruscan/internal/access"
	"github.com/lefred/mysql-component-viruscan/internal/matchtable"
	"github.com/lefred/mysql-component-viruscan/internal/status"
)

var (
	ErrExists       = errors.New("already registered")
	ErrNotFound     = errors.New("not registered")
	ErrUnknownTable = errors.New("unknown table")
)

// Func is a callable function. A nil element of args is an SQL NULL.
type Func func(ctx context.Context, caller access.Caller, args [][]byte) (string, error)

// StatusSource supplies the current values of a group of status variables.
type StatusSource func() []status.Variable

// Registrar is the surface a component uses while it starts and stops.
type Registrar interface {
	RegisterFunction(name string, fn Func) error
	UnregisterFunction(name string) (wasPresent bool, err error)
	RegisterPrivilege(name string) error
	UnregisterPrivilege(name string) error
	RegisterStatus(names []string, src StatusSource) error
	UnregisterStatus(names []string) error
	AddTable(share *matchtable.Share) error
	DropTable(name string) error
}

// Local is a Registrar kept in memory. It is safe for concurrent use.
type Local struct {
	mu         sync.RWMutex
	functions  map[string]Func
	privileges map[string]bool
	status     map[string]StatusSource
	statusList []string
	tables     map[string]*matchtable.Share
}

// NewLocal returns an empty host.
func NewLocal() *Local {
	return &Local{
		functions:  map[string]Func{},
		privileges: map[string]bool{},
		status:     map[string]StatusSource{},
		tables:     map[string]*matchtable.Share{},
	}
}

func (l *Local) RegisterFunction(name string, fn Func) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.functions[name]; ok {
		return fmt.Errorf("function %s: %w", name, ErrExists)
	}
	l.functions[name] = fn
	return nil
}

func (l *Local) UnregisterFunction(name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.functions[name]; !ok {
		return false, nil
	}
	delete(l.functions, name)
	return true, nil
}

func (l *Local) RegisterPrivilege(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.privileges[name] {
		return fmt.Errorf("privilege %s: %w", name, ErrExists)
	}
	l.privileges[name] = true
	return nil
}

func (l *Local) UnregisterPrivilege(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.privileges[name] {
		return fmt.Errorf("privilege %s: %w", name, ErrNotFound)
	}
	delete(l.privileges, name)
	return nil
}

func (l *Local) RegisterStatus(names []string, src StatusSource) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range names {
		if _, ok := l.status[n]; ok {
			return fmt.Errorf("status variable %s: %w", n, ErrExists)
		}
	}
	for _, n := range names {
		l.status[n] = src
		l.statusList = append(l.statusList, n)
	}
	return nil
}

func (l *Local) UnregisterStatus(names []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	drop := map[string]bool{}
	for _, n := range names {
		if _, ok := l.status[n]; !ok {
			return fmt.Errorf("status variable %s: %w", n, ErrNotFound)
		}
		drop[n] = true
	}
	kept := l.statusList[:0]
	for _, n := range l.statusList {
		if drop[n] {
			delete(l.status, n)
			continue
		}
		kept = append(kept, n)
	}
	l.statusList = kept
	return nil
}

func (l *Local) AddTable(share *matchtable.Share) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tables[share.Name()]; ok {
		return fmt.Errorf("table %s: %w", share.Name(), ErrExists)
	}
	share.DeleteAllRows()
	l.tables[share.Name()] = share
	return nil
}

func (l *Local) DropTable(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tables[name]; !ok {
		return fmt.Errorf("table %s: %w", name, ErrNotFound)
	}
	delete(l.tables, name)
	return nil
}

// Call invokes a registered function.
func (l *Local) Call(ctx context.Context, caller access.Caller, name string, args [][]byte) (string, error) {
	l.mu.RLock()
	fn, ok := l.functions[name]
	l.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("function %s: %w", name, ErrNotFound)
	}
	return fn(ctx, caller, args)
}

// Functions lists registered function names, sorted.
func (l *Local) Functions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.functions))
	for n := range l.functions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasPrivilege reports whether name is a registered privilege.
func (l *Local) HasPrivilege(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.privileges[name]
}

// Status returns every registered status variable, in registration order.
func (l *Local) Status() []status.Variable {
	l.mu.RLock()
	names := append([]string(nil), l.statusList...)
	srcs := make(map[string]StatusSource, len(l.status))
	for n, s := range l.status {
		srcs[n] = s
	}
	l.mu.RUnlock()

	values := map[string]string{}
	for _, n := range names {
		if _, done := values[n]; done {
			continue
		}
		for _, v := range srcs[n]() {
			values[v.Name] = v.Value
		}
	}
	out := make([]status.Variable, 0, len(names))
	for _, n := range names {
		out = append(out, status.Variable{Name: n, Value: values[n]})
	}
	return out
}

// Table returns a registered table.
func (l *Local) Table(name string) (*matchtable.Share, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}
