//go:build yara

package yara

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lefred/mysql-component-viruscan/internal/scanner"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb/sigdbtest"
)

const eicarRule = `rule Eicar_Test {
  strings:
    $a = "EICAR-STANDARD-ANTIVIRUS-TEST-FILE"
  condition:
    $a
}
`

func TestCompileAndScan(t *testing.T) {
	dir := t.TempDir()
	sigdbtest.Write(t, dir, "eicar.yar", eicarRule)

	b := New("", 0)
	require.NoError(t, b.Init())
	s, err := b.Compile(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 1, s.Signatures())
	names, err := s.Scan([]byte(sigdbtest.EICAR), scanner.Options{AllMatches: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Eicar_Test"}, names)

	names, err = s.Scan([]byte("clean"), scanner.Options{AllMatches: true})
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCompile_SyntaxError(t *testing.T) {
	dir := t.TempDir()
	sigdbtest.Write(t, dir, "bad.yar", "rule {")
	_, err := New("", 0).Compile(dir)
	assert.Error(t, err)
}
