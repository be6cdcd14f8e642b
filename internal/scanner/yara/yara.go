//go:build yara

// Package yara is a scan backend compiling the YARA rule files of a
// signature directory. It needs libyara and the "yara" build tag.
package yara

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	goyara "github.com/hillu/go-yara/v4"

	"github.com/lefred/mysql-component-viruscan/internal/scanner"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb"
)

// Version reported for matches found by this backend.
const Version = "4.3.2"

const namespace = "viruscan"

// Backend compiles .yar and .yara files.
type Backend struct {
	Include string
	Timeout time.Duration
}

// New returns a YARA backend. A zero timeout means 30 seconds per scan.
func New(include string, timeout time.Duration) *Backend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Backend{Include: include, Timeout: timeout}
}

func (b *Backend) Name() string    { return "yara" }
func (b *Backend) Version() string { return Version }

// Init checks that a compiler can be created, which fails when libyara
// could not be initialized.
func (b *Backend) Init() error {
	c, err := goyara.NewCompiler()
	if err != nil {
		return fmt.Errorf("yara init: %w", err)
	}
	c.Destroy()
	return nil
}

// Compile implements scanner.Backend.
func (b *Backend) Compile(dir string) (scanner.Scanner, error) {
	db, err := sigdb.Load(dir, b.Include)
	if err != nil {
		return nil, err
	}
	if err := db.Info.CheckEngine(Version); err != nil {
		return nil, err
	}
	if len(db.Rules) == 0 {
		return nil, fmt.Errorf("%s: %w for the yara engine", dir, sigdb.ErrNoSignatures)
	}
	compiler, err := goyara.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("yara compiler: %w", err)
	}
	defer compiler.Destroy()
	for _, p := range db.Rules {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		err = compiler.AddFile(f, namespace)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", p, err)
		}
	}
	rules, err := compiler.GetRules()
	if err != nil {
		return nil, fmt.Errorf("yara rules: %w", err)
	}
	return &Engine{rules: rules, count: len(rules.GetRules()), timeout: b.Timeout}, nil
}

// Engine wraps compiled YARA rules.
type Engine struct {
	mu      sync.RWMutex
	rules   *goyara.Rules
	count   int
	timeout time.Duration
}

func (e *Engine) Signatures() int { return e.count }

// Scan implements scanner.Scanner. Without AllMatches the scan stops after
// the first matching rule.
func (e *Engine) Scan(data []byte, opts scanner.Options) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.rules == nil {
		return nil, scanner.ErrClosed
	}
	var flags goyara.ScanFlags
	if !opts.AllMatches {
		flags |= goyara.ScanFlagsFastMode
	}
	var matches goyara.MatchRules
	if err := e.rules.ScanMem(data, flags, e.timeout, &matches); err != nil {
		return nil, fmt.Errorf("yara scan: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Rule)
		if !opts.AllMatches {
			break
		}
	}
	return names, nil
}

// Close destroys the compiled rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rules == nil {
		return errors.New("yara rules already destroyed")
	}
	e.rules.Destroy()
	e.rules = nil
	return nil
}
