// Package sigdbtest builds signature directories for tests.
package sigdbtest

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// EICAR is the standard anti-virus test string.
const EICAR = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

// EICARName is the signature name used by the fixtures below.
const EICARName = "Eicar-Test-Signature"

// BodyLine returns an .ndb line matching payload anywhere in a buffer.
func BodyLine(name, payload string) string {
	return fmt.Sprintf("%s:0:*:%s", name, hex.EncodeToString([]byte(payload)))
}

// MD5Line returns an .hdb line matching payload exactly.
func MD5Line(name, payload string) string {
	sum := md5.Sum([]byte(payload))
	return fmt.Sprintf("%s:%d:%s", hex.EncodeToString(sum[:]), len(payload), name)
}

// SHA256Line returns an .hsb line matching payload exactly.
func SHA256Line(name, payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%s:%d:%s", hex.EncodeToString(sum[:]), len(payload), name)
}

// Write creates name under dir with body.
func Write(t testing.TB, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// EICARDir returns a fresh directory whose only signature detects EICAR.
func EICARDir(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	Write(t, dir, "main.ndb", BodyLine(EICARName, EICAR)+"\n")
	return dir
}

// Touch moves the modification time of path forward so that a fingerprint
// taken before and after always differs, even on coarse-grained filesystems.
func Touch(t testing.TB, path string, offset time.Duration) {
	t.Helper()
	ts := time.Now().Add(offset)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}
