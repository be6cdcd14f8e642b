package sigdb

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
)

// DefaultInclude selects the files that make up a signature database.
const DefaultInclude = "*.{hdb,hsb,ndb,yar,yara,info}"

// Fingerprint is a comparable summary of a signature directory's metadata.
type Fingerprint struct {
	Digest     uint64
	Files      int
	DirModTime int64
}

// IsZero reports whether f was never computed.
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// Equal reports whether both fingerprints describe the same directory state.
func (f Fingerprint) Equal(o Fingerprint) bool { return f == o }

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x/%d", f.Digest, f.Files)
}

type entry struct {
	name  string
	size  int64
	mode  uint32
	mtime int64
}

// ComputeFingerprint hashes name, size, mode and modification time of every
// top-level entry of dir matching include, plus the directory's own
// modification time. File contents are not read.
func ComputeFingerprint(dir, include string) (Fingerprint, error) {
	if include == "" {
		include = DefaultInclude
	}
	st, err := os.Stat(dir)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat signature dir: %w", err)
	}
	if !st.IsDir() {
		return Fingerprint{}, fmt.Errorf("signature dir %s: not a directory", dir)
	}
	des, err := os.ReadDir(dir)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("read signature dir: %w", err)
	}
	var entries []entry
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		ok, err := doublestar.Match(include, de.Name())
		if err != nil {
			return Fingerprint{}, fmt.Errorf("include pattern %q: %w", include, err)
		}
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// removed between ReadDir and Info; the directory mtime still moved
			continue
		}
		entries = append(entries, entry{
			name:  de.Name(),
			size:  info.Size(),
			mode:  uint32(info.Mode()),
			mtime: info.ModTime().UnixNano(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	h := xxhash.New()
	var buf [8]byte
	for _, e := range entries {
		_, _ = h.WriteString(e.name)
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(e.size))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(e.mode))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(e.mtime))
		_, _ = h.Write(buf[:])
	}
	return Fingerprint{
		Digest:     h.Sum64(),
		Files:      len(entries),
		DirModTime: st.ModTime().UnixNano(),
	}, nil
}
