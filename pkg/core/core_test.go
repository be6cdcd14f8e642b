package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lefred/mysql-component-viruscan/internal/logging"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb/sigdbtest"
)

func TestFacade_Smoke(t *testing.T) {
	provider, err := NewStaticProvider(Grant{Account: "app@%", Privileges: []string{PrivilegeVirusScan}})
	require.NoError(t, err)

	h := NewHost()
	c := New(Deps{Provider: provider, Dir: sigdbtest.EICARDir(t), Capacity: 2, Logger: logging.Discard()})
	require.NoError(t, c.Init(context.Background(), h))
	defer func() { require.NoError(t, c.Deinit(h)) }()

	out, err := h.Call(context.Background(), Caller{User: "app", Host: "web1"}, "virus_scan", [][]byte{[]byte(sigdbtest.EICAR)})
	require.NoError(t, err)
	assert.Equal(t, sigdbtest.EICARName, out)

	recs := Matches(c)
	require.Len(t, recs, 1)
	assert.Equal(t, "web1", recs[0].Host)

	var buf bytes.Buffer
	require.NoError(t, MarshalMatches(&buf, recs))
	back, err := UnmarshalMatches(&buf)
	require.NoError(t, err)
	assert.Equal(t, recs, back)
}

func TestScanBytes(t *testing.T) {
	dir := sigdbtest.EICARDir(t)

	names, err := ScanBytes(dir, []byte("prefix "+sigdbtest.EICAR))
	require.NoError(t, err)
	assert.Equal(t, []string{sigdbtest.EICARName}, names)

	names, err = ScanBytes(dir, []byte("clean"))
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = ScanBytes(t.TempDir(), nil)
	assert.Error(t, err)
}
