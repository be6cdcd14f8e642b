package sigdb_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lefred/mysql-component-viruscan/internal/sigdb"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb/sigdbtest"
)

func TestFingerprint_StableWithoutChanges(t *testing.T) {
	dir := sigdbtest.EICARDir(t)
	a, err := sigdb.ComputeFingerprint(dir, "")
	require.NoError(t, err)
	b, err := sigdb.ComputeFingerprint(dir, "")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.False(t, a.IsZero())
	assert.Equal(t, 1, a.Files)
}

func TestFingerprint_DetectsChanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, dir string)
	}{
		{
			name: "modified file",
			mutate: func(t *testing.T, dir string) {
				sigdbtest.Touch(t, filepath.Join(dir, "main.ndb"), time.Hour)
			},
		},
		{
			name: "added file",
			mutate: func(t *testing.T, dir string) {
				sigdbtest.Write(t, dir, "extra.hdb", sigdbtest.MD5Line("X", "payload")+"\n")
			},
		},
		{
			name: "removed file",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "main.ndb")))
			},
		},
		{
			name: "grown file",
			mutate: func(t *testing.T, dir string) {
				p := filepath.Join(dir, "main.ndb")
				f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0)
				require.NoError(t, err)
				_, err = f.WriteString("# comment\n")
				require.NoError(t, err)
				require.NoError(t, f.Close())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := sigdbtest.EICARDir(t)
			before, err := sigdb.ComputeFingerprint(dir, "")
			require.NoError(t, err)
			tt.mutate(t, dir)
			after, err := sigdb.ComputeFingerprint(dir, "")
			require.NoError(t, err)
			assert.False(t, before.Equal(after))
		})
	}
}

func TestFingerprint_IgnoresUnrelatedFiles(t *testing.T) {
	dir := sigdbtest.EICARDir(t)
	before, err := sigdb.ComputeFingerprint(dir, "")
	require.NoError(t, err)
	sigdbtest.Write(t, dir, "README.txt", "notes")
	after, err := sigdb.ComputeFingerprint(dir, "")
	require.NoError(t, err)
	// the directory mtime moves, the file itself is not part of the digest
	assert.Equal(t, before.Digest, after.Digest)
	assert.Equal(t, before.Files, after.Files)
}

func TestFingerprint_MissingDir(t *testing.T) {
	_, err := sigdb.ComputeFingerprint(filepath.Join(t.TempDir(), "nope"), "")
	assert.Error(t, err)
}

func TestLoad_AllFormats(t *testing.T) {
	dir := t.TempDir()
	sigdbtest.Write(t, dir, "a.hdb", "# md5\n\n"+sigdbtest.MD5Line("Md5.Sig", "alpha")+"\n"+
		"44d88612fea8a8f36de82e1278abb02f:*:Any.Size\n")
	sigdbtest.Write(t, dir, "b.hsb", sigdbtest.SHA256Line("Sha.Sig", "beta")+"\n")
	sigdbtest.Write(t, dir, "c.ndb", sigdbtest.BodyLine("Body.Sig", "gamma")+"\n")
	sigdbtest.Write(t, dir, "d.yar", "rule x { condition: true }\n")
	sigdbtest.Write(t, dir, "viruscan.info", "version: 3\nmin_engine: 1.0.0\n")
	sigdbtest.Write(t, dir, "ignored.txt", "junk")

	db, err := sigdb.Load(dir, "")
	require.NoError(t, err)
	require.Len(t, db.MD5, 2)
	assert.Equal(t, "Md5.Sig", db.MD5[0].Name)
	assert.Equal(t, int64(5), db.MD5[0].Size)
	assert.Equal(t, int64(sigdb.AnySize), db.MD5[1].Size)
	require.Len(t, db.SHA256, 1)
	require.Len(t, db.Body, 1)
	assert.Equal(t, []byte("gamma"), db.Body[0].Pattern)
	assert.Equal(t, []string{filepath.Join(dir, "d.yar")}, db.Rules)
	require.NotNil(t, db.Info)
	assert.Equal(t, 3, db.Info.Version)
	assert.Equal(t, 4, db.Count())
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		msg  string
	}{
		{name: "hdb fields", file: "x.hdb", body: "abc:1\n", msg: "expected Digest:Size:Name"},
		{name: "hdb digest length", file: "x.hdb", body: "abcd:1:N\n", msg: "32 hex"},
		{name: "hdb size", file: "x.hdb", body: strings.Repeat("a", 32) + ":big:N\n", msg: "invalid size"},
		{name: "hsb digest length", file: "x.hsb", body: strings.Repeat("a", 32) + ":1:N\n", msg: "64 hex"},
		{name: "ndb fields", file: "x.ndb", body: "N:0:*\n", msg: "expected Name"},
		{name: "ndb target", file: "x.ndb", body: "N:1:*:6161\n", msg: "target"},
		{name: "ndb offset", file: "x.ndb", body: "N:0:EOF-10:6161\n", msg: "offset"},
		{name: "ndb wildcard", file: "x.ndb", body: "N:0:*:61??61\n", msg: "plain hex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			sigdbtest.Write(t, dir, tt.file, tt.body)
			_, err := sigdb.Load(dir, "")
			require.Error(t, err)
			var pe *sigdb.ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, 1, pe.Line)
			assert.Contains(t, pe.Error(), tt.msg)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	dir := t.TempDir()
	sigdbtest.Write(t, dir, "empty.ndb", "# nothing here\n")
	_, err := sigdb.Load(dir, "")
	assert.ErrorIs(t, err, sigdb.ErrNoSignatures)
}

func TestLoad_IncludePattern(t *testing.T) {
	dir := sigdbtest.EICARDir(t)
	sigdbtest.Write(t, dir, "broken.hdb", "garbage\n")
	db, err := sigdb.Load(dir, "*.ndb")
	require.NoError(t, err)
	assert.Equal(t, 1, db.Count())
}

func TestInfo_CheckEngine(t *testing.T) {
	tests := []struct {
		name    string
		min     string
		version string
		wantErr bool
	}{
		{name: "no minimum", min: "", version: "1.0.0"},
		{name: "satisfied", min: "1.0.0", version: "1.2.0"},
		{name: "equal", min: "1.2.0", version: "1.2.0"},
		{name: "tolerant", min: "v1", version: "1.0.3"},
		{name: "too old", min: "2.0.0", version: "1.9.9", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &sigdb.Info{MinEngine: tt.min}
			err := info.CheckEngine(tt.version)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	var nilInfo *sigdb.Info
	assert.NoError(t, nilInfo.CheckEngine("0.0.1"))
}

func TestLoadInfo_InvalidMinEngine(t *testing.T) {
	dir := t.TempDir()
	p := sigdbtest.Write(t, dir, "viruscan.info", "min_engine: not-a-version\n")
	_, err := sigdb.LoadInfo(p)
	assert.Error(t, err)
}
