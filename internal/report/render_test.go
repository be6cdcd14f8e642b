package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintText_NoFindings_ShowsFooter(t *testing.T) {
	var buf bytes.Buffer
	PrintText(&buf, []FileResult{{Path: "a.bin"}}, PrintOptions{Duration: 1200 * time.Millisecond, EngineVersion: "1.0.3", Signatures: 7})
	out := buf.String()
	assert.Contains(t, out, "No virus found")
	assert.Contains(t, out, "Scanned files: 1 (infected: 0, errors: 0)")
	assert.Contains(t, out, "Engine: 1.0.3, 7 signatures")
	assert.Contains(t, out, "Scan duration: 1.20s")
}

func TestPrintText_WithFindings(t *testing.T) {
	var buf bytes.Buffer
	results := []FileResult{
		{Path: "z.txt", Err: "permission denied"},
		{Path: "a.com", Signatures: []string{"Eicar-Test-Signature", "Other"}},
	}
	PrintText(&buf, results, PrintOptions{NoColor: true})
	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "FOUND a.com: Eicar-Test-Signature, Other", lines[0])
	assert.Equal(t, "ERROR z.txt: permission denied", lines[1])
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPrintText_Color(t *testing.T) {
	var buf bytes.Buffer
	PrintText(&buf, []FileResult{{Path: "a", Signatures: []string{"X"}}}, PrintOptions{})
	assert.Contains(t, buf.String(), "\x1b[31mFOUND\x1b[0m")
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, []string{"VIRUS", "USER"}, [][]string{{"Eicar-Test-Signature", "root"}}))
	out := buf.String()
	assert.Contains(t, out, "VIRUS")
	assert.Contains(t, out, "Eicar-Test-Signature")
	assert.Contains(t, out, "1 row(s) in set")

	buf.Reset()
	require.NoError(t, PrintTable(&buf, []string{"VIRUS"}, nil))
	assert.Equal(t, "Empty set\n", buf.String())
}

func TestShouldFail(t *testing.T) {
	assert.False(t, ShouldFail(nil))
	assert.False(t, ShouldFail([]FileResult{{Path: "a", Err: "boom"}}))
	assert.True(t, ShouldFail([]FileResult{{Path: "a"}, {Path: "b", Signatures: []string{"X"}}}))
}
