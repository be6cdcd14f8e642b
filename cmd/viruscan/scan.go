package viruscan

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lefred/mysql-component-viruscan/internal/engine"
	"github.com/lefred/mysql-component-viruscan/internal/logging"
	"github.com/lefred/mysql-component-viruscan/internal/report"
)

var (
	flagScanDir   string
	flagScanSARIF bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan <file|->...",
		Short: "Scan local files with the signature database",
		Long:  "Scan local files in-process. Use - to read standard input. Exits 1 when a virus is found.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScan,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagScanDir, "db", "", "signature directory (overrides database.dir)")
	cmd.Flags().BoolVar(&flagScanSARIF, "sarif", false, "emit SARIF 2.1.0")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)
	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	mgr := engine.NewManager(backend, engine.Options{
		Dir:     pickString(flagScanDir, cfg.GetDatabase().GetDir()),
		Include: cfg.GetDatabase().GetInclude(),
		Logger:  logging.Discard(),
	})
	defer mgr.Close()

	start := time.Now()
	if err := mgr.LoadInitial(context.Background()); err != nil {
		return err
	}
	h, err := mgr.Current()
	if err != nil {
		return err
	}
	defer h.Release()

	results := make([]report.FileResult, 0, len(args))
	for _, path := range args {
		results = append(results, scanPath(h, path, cmd.InOrStdin()))
	}

	out := cmd.OutOrStdout()
	switch {
	case flagScanSARIF:
		err = report.WriteSARIF(out, results, h.Version)
	case flagJSON:
		err = writeJSON(out, results)
	default:
		report.PrintText(out, results, report.PrintOptions{
			NoColor:       !useColor(os.Stdout),
			Duration:      time.Since(start),
			EngineVersion: h.Version,
			Signatures:    h.Signatures,
		})
	}
	if err != nil {
		return err
	}
	if report.ShouldFail(results) {
		os.Exit(1)
	}
	return nil
}

func scanPath(h *engine.Handle, path string, stdin io.Reader) report.FileResult {
	res := report.FileResult{Path: path}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		res.Err = err.Error()
		return res
	}
	names, err := h.Scan(data)
	if err != nil {
		res.Err = fmt.Sprintf("scan: %v", err)
		return res
	}
	res.Signatures = names
	return res
}
