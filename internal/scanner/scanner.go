package scanner

import "errors"

// ErrClosed is returned by Scan after Close.
var ErrClosed = errors.New("scanner closed")

// Backend is a scan library. It is initialized once per process and compiles
// signature directories into Scanners.
type Backend interface {
	// Name identifies the backend in configuration ("builtin", "yara").
	Name() string

	// Init performs process-wide library initialization. A failure here is
	// fatal for the backend: nothing can be compiled afterwards.
	Init() error

	// Version returns the library version string reported with every match.
	Version() string

	// Compile loads the signature directory and returns a ready engine.
	// Compile never mutates a previously returned Scanner.
	Compile(dir string) (Scanner, error)
}

// Scanner is a compiled, immutable scan engine. Scan may be called from
// many goroutines at once.
type Scanner interface {
	// Scan inspects data and returns the names of every signature that
	// matched, in detection order. An empty result means clean.
	Scan(data []byte, opts Options) ([]string, error)

	// Signatures returns the number of signatures compiled into the engine.
	Signatures() int

	// Close releases engine resources. Callers must make sure no Scan is in
	// flight.
	Close() error
}

// Options tune a single scan.
type Options struct {
	// AllMatches keeps scanning after the first hit and reports every
	// matching signature.
	AllMatches bool
}
