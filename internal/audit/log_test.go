package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	log := NewAuditLog(filepath.Join(dir, "sub", "reloads.jsonl"))

	require.NoError(t, log.LogReload(ReloadRecord{Source: "function", User: "root", Outcome: "reloaded", Signatures: 3}))
	require.NoError(t, log.LogReload(ReloadRecord{Source: "watch", Outcome: "failed", Reason: "parse error"}))

	records, err := log.LoadHistory()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "watch", records[0].Source)
	assert.Equal(t, "function", records[1].Source)
	assert.Equal(t, 3, records[1].Signatures)
	assert.NotEmpty(t, records[0].ReloadID)
	assert.NotEqual(t, records[0].ReloadID, records[1].ReloadID)
	assert.False(t, records[0].Timestamp.IsZero())

	st, err := os.Stat(log.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), st.Mode().Perm())
}

func TestAuditLog_MissingFile(t *testing.T) {
	log := NewAuditLog(filepath.Join(t.TempDir(), "none.jsonl"))
	records, err := log.LoadHistory()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAuditLog_SkipsTrailingGarbage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "r.jsonl")
	require.NoError(t, os.WriteFile(p, []byte(`{"source":"watch","outcome":"no_change"}`+"\n{oops"), 0o600))
	records, err := NewAuditLog(p).LoadHistory()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "no_change", records[0].Outcome)
}
