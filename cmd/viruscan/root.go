package viruscan

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lefred/mysql-component-viruscan/internal/access"
	"github.com/lefred/mysql-component-viruscan/internal/config"
	"github.com/lefred/mysql-component-viruscan/internal/logging"
	"github.com/lefred/mysql-component-viruscan/internal/scanner"
	"github.com/lefred/mysql-component-viruscan/internal/scanner/factory"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagNoColor   bool
	flagJSON      bool

	version = "0.1.0"
)

// rootCmd is the base Cobra command for the viruscan CLI.
var rootCmd = &cobra.Command{
	Use:           "viruscan",
	Short:         "Scan data for viruses on behalf of database users",
	Long:          "viruscan scans buffers and files against a ClamAV-style signature database, records every detection and reloads the database when it changes.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the viruscan CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default: ./.viruscan.yml, then ~/.config/viruscan/config.yml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "text|json")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
}

func loadConfig() (config.FileConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.FileConfig{}, err
	}
	cfg, err := config.Load(flagConfig, cwd)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func initLogging(cfg config.FileConfig) *slog.Logger {
	lc := cfg.GetLog()
	return logging.Init("viruscan", logging.Options{
		Format: pickString(flagLogFormat, lc.GetFormat()),
		Level:  pickString(flagLogLevel, lc.GetLevel()),
	})
}

func newBackend(cfg config.FileConfig) (scanner.Backend, error) {
	db := cfg.GetDatabase()
	return factory.New(factory.Config{
		Backend:     db.GetBackend(),
		Include:     db.GetInclude(),
		ScanTimeout: db.GetScanTimeout(),
	})
}

func newProvider(cfg config.FileConfig) (access.Provider, error) {
	a := cfg.GetAuth()
	switch a.GetProvider() {
	case "jwt":
		return access.NewTokenProvider(a.GetJWTSecret(), a.GetIssuer())
	default:
		return access.NewStaticProvider(a.Grants)
	}
}

// pickString returns the first non-empty value; flags come first.
func pickString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func useColor(f *os.File) bool {
	return !flagNoColor && term.IsTerminal(int(f.Fd()))
}
