package sigdb

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoSignatures is returned when a directory contains no usable signatures.
var ErrNoSignatures = errors.New("no signatures found")

// AnySize marks a hash signature that matches regardless of file size.
const AnySize = -1

// HashSignature matches a whole buffer by digest.
type HashSignature struct {
	Name   string
	Digest string // lowercase hex
	Size   int64  // AnySize when the size field was "*"
}

// BodySignature matches a byte sequence anywhere in a buffer.
type BodySignature struct {
	Name    string
	Pattern []byte
}

// Database is the parsed content of a signature directory.
type Database struct {
	Dir    string
	MD5    []HashSignature
	SHA256 []HashSignature
	Body   []BodySignature
	Rules  []string // YARA rule file paths
	Info   *Info
}

// Count returns the number of hash and body signatures.
func (d *Database) Count() int { return len(d.MD5) + len(d.SHA256) + len(d.Body) }

// ParseError reports a malformed line in a signature file.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Load parses every top-level file of dir matching include.
func Load(dir, include string) (*Database, error) {
	if include == "" {
		include = DefaultInclude
	}
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read signature dir: %w", err)
	}
	db := &Database{Dir: dir}
	var names []string
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		ok, err := doublestar.Match(include, de.Name())
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", include, err)
		}
		if ok {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		p := filepath.Join(dir, name)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".hdb":
			sigs, err := parseHashFile(p, hex.EncodedLen(16))
			if err != nil {
				return nil, err
			}
			db.MD5 = append(db.MD5, sigs...)
		case ".hsb":
			sigs, err := parseHashFile(p, hex.EncodedLen(32))
			if err != nil {
				return nil, err
			}
			db.SHA256 = append(db.SHA256, sigs...)
		case ".ndb":
			sigs, err := parseBodyFile(p)
			if err != nil {
				return nil, err
			}
			db.Body = append(db.Body, sigs...)
		case ".yar", ".yara":
			db.Rules = append(db.Rules, p)
		case ".info":
			info, err := LoadInfo(p)
			if err != nil {
				return nil, err
			}
			db.Info = info
		}
	}
	if db.Count() == 0 && len(db.Rules) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoSignatures)
	}
	return db, nil
}

// eachLine calls fn for every non-blank, non-comment line of path.
func eachLine(path string, fn func(n int, line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// parseHashFile reads "Digest:Size:Name" lines.
func parseHashFile(path string, digestLen int) ([]HashSignature, error) {
	var out []HashSignature
	err := eachLine(path, func(n int, line string) error {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			return &ParseError{File: path, Line: n, Msg: "expected Digest:Size:Name"}
		}
		digest := strings.ToLower(parts[0])
		if len(digest) != digestLen {
			return &ParseError{File: path, Line: n, Msg: fmt.Sprintf("digest must be %d hex characters", digestLen)}
		}
		if _, err := hex.DecodeString(digest); err != nil {
			return &ParseError{File: path, Line: n, Msg: "digest is not hex"}
		}
		size := int64(AnySize)
		if parts[1] != "*" {
			v, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil || v < 0 {
				return &ParseError{File: path, Line: n, Msg: "invalid size " + strconv.Quote(parts[1])}
			}
			size = v
		}
		if parts[2] == "" {
			return &ParseError{File: path, Line: n, Msg: "empty signature name"}
		}
		out = append(out, HashSignature{Name: parts[2], Digest: digest, Size: size})
		return nil
	})
	return out, err
}

// parseBodyFile reads "Name:Target:Offset:HexSignature" lines. Only target 0
// (any file) and offset "*" (anywhere) are supported.
func parseBodyFile(path string) ([]BodySignature, error) {
	var out []BodySignature
	err := eachLine(path, func(n int, line string) error {
		parts := strings.Split(line, ":")
		if len(parts) < 4 {
			return &ParseError{File: path, Line: n, Msg: "expected Name:Target:Offset:HexSignature"}
		}
		name, target, offset, sig := parts[0], parts[1], parts[2], parts[3]
		if name == "" {
			return &ParseError{File: path, Line: n, Msg: "empty signature name"}
		}
		if target != "0" && target != "*" {
			return &ParseError{File: path, Line: n, Msg: "unsupported target type " + strconv.Quote(target)}
		}
		if offset != "*" {
			return &ParseError{File: path, Line: n, Msg: "unsupported offset " + strconv.Quote(offset)}
		}
		pattern, err := hex.DecodeString(sig)
		if err != nil {
			return &ParseError{File: path, Line: n, Msg: "signature is not plain hex"}
		}
		if len(pattern) == 0 {
			return &ParseError{File: path, Line: n, Msg: "empty signature"}
		}
		out = append(out, BodySignature{Name: name, Pattern: pattern})
		return nil
	})
	return out, err
}
