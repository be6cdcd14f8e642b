package core

import (
	"context"
	"encoding/json"
	"io"

	"github.com/lefred/mysql-component-viruscan/internal/access"
	"github.com/lefred/mysql-component-viruscan/internal/engine"
	"github.com/lefred/mysql-component-viruscan/internal/host"
	"github.com/lefred/mysql-component-viruscan/internal/scanner/factory"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb"
	"github.com/lefred/mysql-component-viruscan/internal/types"
	"github.com/lefred/mysql-component-viruscan/internal/viruscan"
)

// Re-export selected internal types as a stable public API surface.
type (
	Component   = viruscan.Component
	Deps        = viruscan.Deps
	Host        = host.Local
	Caller      = access.Caller
	Grant       = access.Grant
	MatchRecord = types.MatchRecord
)

// PrivilegeVirusScan is the privilege both functions require.
const PrivilegeVirusScan = access.PrivilegeVirusScan

// New assembles a component. A nil d.Backend selects the builtin engine.
func New(d Deps) *Component {
	if d.Backend == nil {
		b, _ := factory.New(factory.Config{Include: d.Include})
		d.Backend = b
	}
	return viruscan.New(d)
}

// NewHost returns an in-process host to install components into.
func NewHost() *Host { return host.NewLocal() }

// NewStaticProvider grants privileges to user@host patterns.
func NewStaticProvider(grants ...Grant) (access.Provider, error) {
	return access.NewStaticProvider(grants)
}

// Matches returns the records currently held by c in slot order.
func Matches(c *Component) []MatchRecord {
	var out []MatchRecord
	cur := c.Store.Open()
	for {
		rec, _, ok := cur.Next()
		if !ok {
			return out
		}
		out = append(out, rec)
	}
}

// ScanBytes loads the signature database in dir with the builtin engine and
// returns the names of every signature matching data. It is meant for one-off
// checks; long-running programs should install a Component.
func ScanBytes(dir string, data []byte) ([]string, error) {
	b, err := factory.New(factory.Config{Include: sigdb.DefaultInclude})
	if err != nil {
		return nil, err
	}
	m := engine.NewManager(b, engine.Options{Dir: dir})
	defer m.Close()
	if err := m.LoadInitial(context.Background()); err != nil {
		return nil, err
	}
	h, err := m.Current()
	if err != nil {
		return nil, err
	}
	defer h.Release()
	return h.Scan(data)
}

// MarshalMatches pretty-prints records as JSON for humans or pipelines.
func MarshalMatches(w io.Writer, recs []MatchRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// UnmarshalMatches decodes records JSON, useful for ingestion tests.
func UnmarshalMatches(r io.Reader) ([]MatchRecord, error) {
	var recs []MatchRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, err
	}
	return recs, nil
}
