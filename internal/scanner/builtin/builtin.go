// Package builtin is the in-process scan backend. It matches whole-buffer
// MD5 and SHA-256 digests and byte sequences anywhere in the buffer.
package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/lefred/mysql-component-viruscan/internal/scanner"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb"
)

// Version of the builtin engine. Signature databases can require a minimum
// version through their viruscan.info header.
const Version = "1.0.3"

// Backend compiles signature directories into builtin engines.
type Backend struct {
	Include string
}

// New returns a backend reading files that match include.
func New(include string) *Backend { return &Backend{Include: include} }

func (b *Backend) Name() string    { return "builtin" }
func (b *Backend) Init() error     { return nil }
func (b *Backend) Version() string { return Version }

// Compile implements scanner.Backend.
func (b *Backend) Compile(dir string) (scanner.Scanner, error) {
	db, err := sigdb.Load(dir, b.Include)
	if err != nil {
		return nil, err
	}
	if err := db.Info.CheckEngine(Version); err != nil {
		return nil, err
	}
	if db.Count() == 0 {
		return nil, fmt.Errorf("%s: %w for the builtin engine", dir, sigdb.ErrNoSignatures)
	}
	return compile(db), nil
}

// Engine is a compiled builtin scanner.
type Engine struct {
	md5    map[string][]sigdb.HashSignature
	sha256 map[string][]sigdb.HashSignature
	body   *automaton
	count  int
	closed atomic.Bool
}

func compile(db *sigdb.Database) *Engine {
	e := &Engine{
		md5:    make(map[string][]sigdb.HashSignature, len(db.MD5)),
		sha256: make(map[string][]sigdb.HashSignature, len(db.SHA256)),
		count:  db.Count(),
	}
	for _, s := range db.MD5 {
		e.md5[s.Digest] = append(e.md5[s.Digest], s)
	}
	for _, s := range db.SHA256 {
		e.sha256[s.Digest] = append(e.sha256[s.Digest], s)
	}
	if len(db.Body) > 0 {
		e.body = buildAutomaton(db.Body)
	}
	return e
}

// Signatures implements scanner.Scanner.
func (e *Engine) Signatures() int { return e.count }

// Close implements scanner.Scanner.
func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

// Scan implements scanner.Scanner. Hash signatures are checked before body
// signatures and every name is reported at most once.
func (e *Engine) Scan(data []byte, opts scanner.Options) ([]string, error) {
	if e.closed.Load() {
		return nil, scanner.ErrClosed
	}
	var names []string
	seen := map[string]bool{}
	add := func(name string) bool {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return opts.AllMatches
	}

	size := int64(len(data))
	checkHashes := func(table map[string][]sigdb.HashSignature, digest []byte) bool {
		for _, s := range table[hex.EncodeToString(digest)] {
			if s.Size != sigdb.AnySize && s.Size != size {
				continue
			}
			if !add(s.Name) {
				return false
			}
		}
		return true
	}
	if len(e.md5) > 0 {
		sum := md5.Sum(data)
		if !checkHashes(e.md5, sum[:]) {
			return names, nil
		}
	}
	if len(e.sha256) > 0 {
		sum := sha256.Sum256(data)
		if !checkHashes(e.sha256, sum[:]) {
			return names, nil
		}
	}
	if e.body != nil {
		e.body.match(data, func(i int) bool {
			return add(e.body.sigs[i].Name)
		})
	}
	return names, nil
}
