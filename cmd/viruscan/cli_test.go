package viruscan

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lefred/mysql-component-viruscan/internal/access"
	"github.com/lefred/mysql-component-viruscan/internal/host"
	"github.com/lefred/mysql-component-viruscan/internal/httpapi"
	"github.com/lefred/mysql-component-viruscan/internal/logging"
	"github.com/lefred/mysql-component-viruscan/internal/report"
	"github.com/lefred/mysql-component-viruscan/internal/scanner/builtin"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb/sigdbtest"
	component "github.com/lefred/mysql-component-viruscan/internal/viruscan"
)

func resetFlags() {
	flagConfig, flagLogLevel, flagLogFormat = "", "error", ""
	flagNoColor, flagJSON = true, false
	flagServeAddr, flagServeDir = "", ""
	flagScanDir, flagScanSARIF = "", false
	flagAddr, flagToken, flagUser = "", "", ""
	flagCallNull = false
	flagDBDir, flagAuditPath, flagHistoryMax = "", "", 20
	flagTokenUser, flagTokenHost, flagTokenPrivs, flagTokenTTL = "", "", []string{access.PrivilegeVirusScan}, 24*time.Hour
}

// runCLI executes the root command in an isolated working directory with
// no global config.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VIRUSCAN_JWT_SECRET", "")
	t.Setenv("VIRUSCAN_TOKEN", "")
	t.Chdir(t.TempDir())
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScan_CleanFileJSON(t *testing.T) {
	dir := sigdbtest.EICARDir(t)
	file := filepath.Join(t.TempDir(), "clean.txt")
	require.NoError(t, os.WriteFile(file, []byte("nothing to see"), 0o644))

	out, err := runCLI(t, "scan", "--json", "--db", dir, file, filepath.Join(dir, "missing"))
	require.NoError(t, err)

	var results []report.FileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results), out)
	require.Len(t, results, 2)
	assert.Equal(t, file, results[0].Path)
	assert.False(t, results[0].Infected())
	assert.NotEmpty(t, results[1].Err)
}

func TestScan_ReadsStdin(t *testing.T) {
	dir := sigdbtest.EICARDir(t)
	rootCmd.SetIn(strings.NewReader("plain text"))
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	out, err := runCLI(t, "scan", "--db", dir, "-")
	require.NoError(t, err)
	assert.Contains(t, out, "No virus found")
	assert.Contains(t, out, "Engine: "+builtin.Version+", 1 signatures")
}

func TestScan_MissingDatabase(t *testing.T) {
	_, err := runCLI(t, "scan", "--db", filepath.Join(t.TempDir(), "nope"), "-")
	assert.Error(t, err)
}

func TestDBInfo(t *testing.T) {
	dir := sigdbtest.EICARDir(t)
	out, err := runCLI(t, "db", "info", "--json", "--db", dir)
	require.NoError(t, err)

	var info dbInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info), out)
	assert.Equal(t, dir, info.Dir)
	assert.Equal(t, 1, info.Body)
	assert.NotEmpty(t, info.Fingerprint)

	out, err = runCLI(t, "db", "info", "--db", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "body signatures")
}

func TestDBHistory_RequiresAuditPath(t *testing.T) {
	_, err := runCLI(t, "db", "history")
	assert.ErrorContains(t, err, "no audit log configured")

	out, err := runCLI(t, "db", "history", "--audit", filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, out, "Empty set")
}

func TestToken_RoundTrip(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "viruscan.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("auth:\n  provider: jwt\n  jwt_secret: s3cret\n  issuer: ops\n"), 0o600))

	out, err := runCLI(t, "--config", cfgPath, "token", "--for", "alice", "--ttl", "1h")
	require.NoError(t, err)

	p, err := access.NewTokenProvider("s3cret", "ops")
	require.NoError(t, err)
	sc, err := p.Resolve(context.Background(), access.Caller{Token: strings.TrimSpace(out), Host: "db1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", sc.User())
	assert.Equal(t, "db1", sc.Host())
	assert.True(t, sc.HasGlobalGrant(access.PrivilegeVirusScan))
}

func TestToken_NegativeTTL(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "viruscan.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("auth:\n  provider: jwt\n  jwt_secret: s3cret\n"), 0o600))

	out, err := runCLI(t, "--config", cfgPath, "token", "--for", "alice", "--ttl", "-1h")
	assert.ErrorContains(t, err, "--ttl must not be negative")
	assert.Empty(t, strings.TrimSpace(out))
}

func TestToken_NoSecret(t *testing.T) {
	_, err := runCLI(t, "token", "--for", "alice")
	assert.ErrorContains(t, err, "no token secret")
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "viruscan "+version)
	assert.Contains(t, out, "builtin")
}

func newRemote(t *testing.T) string {
	t.Helper()
	provider, err := access.NewStaticProvider([]access.Grant{
		{Account: "admin@%", Privileges: []string{access.PrivilegeVirusScan}},
	})
	require.NoError(t, err)
	h := host.NewLocal()
	c := component.New(component.Deps{
		Backend:  builtin.New(""),
		Provider: provider,
		Dir:      sigdbtest.EICARDir(t),
		Capacity: 8,
		Logger:   logging.Discard(),
	})
	require.NoError(t, c.Init(context.Background(), h))
	t.Cleanup(func() { _ = c.Deinit(h) })

	srv := httptest.NewServer(httpapi.NewServer(httpapi.Dependencies{
		Logger:          logging.Discard(),
		Host:            h,
		Guard:           access.NewGuard(provider, logging.Discard()),
		TrustUserHeader: true,
	}).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRemoteCommands(t *testing.T) {
	addr := newRemote(t)

	out, err := runCLI(t, "call", "--addr", addr, "-u", "admin", "virus_scan", sigdbtest.EICAR)
	require.NoError(t, err)
	assert.Equal(t, sigdbtest.EICARName+"\n", out)

	out, err = runCLI(t, "reload", "--addr", addr, "-u", "admin")
	require.NoError(t, err)
	assert.Equal(t, component.TextNoReload+"\n", out)

	_, err = runCLI(t, "reload", "--addr", addr, "-u", "nobody")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
	assert.Equal(t, "access_denied", apiErr.Code)

	out, err = runCLI(t, "matches", "--addr", addr, "-u", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, sigdbtest.EICARName)
	assert.Contains(t, out, "1 row(s) in set")

	out, err = runCLI(t, "status", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "viruscan.virus_found")

	file := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))
	out, err = runCLI(t, "submit", "--addr", addr, "-u", "admin", file)
	require.NoError(t, err)
	assert.Equal(t, component.TextClean+"\n", out)
}

func TestMatchRows(t *testing.T) {
	logged := time.Date(2024, 5, 1, 12, 0, 0, 250, time.UTC)
	rows := matchRows(
		[]string{"LOGGED", "VIRUS", "SIGNATURES"},
		[][]any{{float64(logged.UnixMicro()), "X", nil}, {float64(0), "Y", float64(42)}},
	)
	require.Len(t, rows, 2)
	assert.Equal(t, logged.Local().Format("2006-01-02 15:04:05.000000"), rows[0][0])
	assert.Equal(t, "NULL", rows[0][2])
	assert.Equal(t, "42", rows[1][2])
}

func TestPickString(t *testing.T) {
	assert.Equal(t, "a", pickString("a", "b"))
	assert.Equal(t, "b", pickString("", "b"))
	assert.Equal(t, "", pickString())
}
