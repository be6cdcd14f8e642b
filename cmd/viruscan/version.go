package viruscan

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lefred/mysql-component-viruscan/internal/scanner/factory"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version and the available scan backends",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "viruscan %s", version)
			if rev := vcsRevision(); rev != "" {
				fmt.Fprintf(out, " (%s)", rev)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "backends: %s\n", strings.Join(factory.Backends(), ", "))
		},
	})
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}
	return ""
}
