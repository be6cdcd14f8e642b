package viruscan

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lefred/mysql-component-viruscan/internal/audit"
	"github.com/lefred/mysql-component-viruscan/internal/report"
	"github.com/lefred/mysql-component-viruscan/internal/sigdb"
)

var (
	flagDBDir      string
	flagAuditPath  string
	flagHistoryMax int
)

// dbInfo is the JSON shape of "db info".
type dbInfo struct {
	Dir         string      `json:"dir"`
	Fingerprint string      `json:"fingerprint"`
	Files       int         `json:"files"`
	MD5         int         `json:"md5"`
	SHA256      int         `json:"sha256"`
	Body        int         `json:"body"`
	Rules       int         `json:"yara_rule_files"`
	Info        *sigdb.Info `json:"info,omitempty"`
}

func init() {
	dbCmd := &cobra.Command{Use: "db", Short: "Signature database helpers"}
	rootCmd.AddCommand(dbCmd)

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show the fingerprint and signature counts of a database directory",
		Args:  cobra.NoArgs,
		RunE:  runDBInfo,
	}
	infoCmd.Flags().StringVar(&flagDBDir, "db", "", "signature directory (overrides database.dir)")
	dbCmd.AddCommand(infoCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded engine reloads, newest first",
		Args:  cobra.NoArgs,
		RunE:  runDBHistory,
	}
	historyCmd.Flags().StringVar(&flagAuditPath, "audit", "", "audit log path (overrides audit.path)")
	historyCmd.Flags().IntVarP(&flagHistoryMax, "limit", "n", 20, "show at most N reloads (0 = all)")
	dbCmd.AddCommand(historyCmd)
}

func runDBInfo(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := pickString(flagDBDir, cfg.GetDatabase().GetDir())
	include := cfg.GetDatabase().GetInclude()
	fp, err := sigdb.ComputeFingerprint(dir, include)
	if err != nil {
		return err
	}
	db, err := sigdb.Load(dir, include)
	if err != nil {
		return err
	}
	info := dbInfo{
		Dir:         dir,
		Fingerprint: fp.String(),
		Files:       fp.Files,
		MD5:         len(db.MD5),
		SHA256:      len(db.SHA256),
		Body:        len(db.Body),
		Rules:       len(db.Rules),
		Info:        db.Info,
	}
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), info)
	}
	rows := [][]string{
		{"dir", info.Dir},
		{"fingerprint", info.Fingerprint},
		{"files", strconv.Itoa(info.Files)},
		{"md5 signatures", strconv.Itoa(info.MD5)},
		{"sha256 signatures", strconv.Itoa(info.SHA256)},
		{"body signatures", strconv.Itoa(info.Body)},
		{"yara rule files", strconv.Itoa(info.Rules)},
	}
	if db.Info != nil {
		rows = append(rows,
			[]string{"version", strconv.Itoa(db.Info.Version)},
			[]string{"min engine", db.Info.MinEngine},
			[]string{"built", db.Info.Built},
		)
	}
	return report.PrintTable(cmd.OutOrStdout(), []string{"Property", "Value"}, rows)
}

func runDBHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := pickString(flagAuditPath, cfg.GetAudit().GetPath())
	if path == "" {
		return fmt.Errorf("no audit log configured (set audit.path or --audit)")
	}
	records, err := audit.NewAuditLog(path).LoadHistory()
	if err != nil {
		return err
	}
	if flagHistoryMax > 0 && len(records) > flagHistoryMax {
		records = records[:flagHistoryMax]
	}
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), records)
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		who := r.User
		if r.Host != "" {
			who += "@" + r.Host
		}
		detail := r.Reason
		if r.Signatures > 0 {
			detail = strconv.Itoa(r.Signatures) + " signatures"
		}
		rows = append(rows, []string{r.Timestamp.Local().Format(time.DateTime), r.Source, who, r.Outcome, detail})
	}
	return report.PrintTable(cmd.OutOrStdout(), []string{"When", "Source", "Caller", "Outcome", "Detail"}, rows)
}
