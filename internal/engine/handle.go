package engine

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lefred/mysql-component-viruscan/internal/scanner"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb"
)

// Handle is one compiled engine together with the metadata captured when it
// was loaded. A Handle never changes after publication. Scans hold a
// reference for their whole duration; the engine is closed when the last
// reference is released after the Handle has been replaced.
type Handle struct {
	Signatures  int
	Version     string
	Fingerprint sigdb.Fingerprint
	LoadedAt    time.Time

	scanner scanner.Scanner
	refs    atomic.Int64
	log     *slog.Logger
}

// Scan runs the engine in report-all-matches mode.
func (h *Handle) Scan(data []byte) ([]string, error) {
	return h.scanner.Scan(data, scanner.Options{AllMatches: true})
}

func (h *Handle) tryAcquire() bool {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return false
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference obtained from Manager.Current.
func (h *Handle) Release() {
	if h.refs.Add(-1) != 0 {
		return
	}
	if err := h.scanner.Close(); err != nil && h.log != nil {
		h.log.Warn("closing retired engine", "error", err)
	}
}
