package viruscan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lefred/mysql-component-viruscan/internal/matchtable"
	"github.com/lefred/mysql-component-viruscan/internal/report"
	component "github.com/lefred/mysql-component-viruscan/internal/viruscan"
)

var flagCallNull bool

func init() {
	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask a running server to reload its engine if the database changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			out, err := c.call(cmd.Context(), "/v1/reload", nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	addClientFlags(reloadCmd)
	rootCmd.AddCommand(reloadCmd)

	remoteScanCmd := &cobra.Command{
		Use:   "submit <file|->",
		Short: "Send a file to a running server's virus_scan function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			out, err := c.scan(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	addClientFlags(remoteScanCmd)
	rootCmd.AddCommand(remoteScanCmd)

	callCmd := &cobra.Command{
		Use:   "call <function> [arg]...",
		Short: "Call a function registered on a running server",
		Example: `  viruscan call virus_scan 'some text'
  viruscan call virus_scan --null
  viruscan call virus_reload_engine`,
		Args: cobra.MinimumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return []string{component.FuncVirusScan, component.FuncVirusReloadEngine}, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			fargs := make([]*string, 0, len(args))
			for i := range args[1:] {
				fargs = append(fargs, &args[1+i])
			}
			if flagCallNull {
				fargs = append(fargs, nil)
			}
			out, err := c.call(cmd.Context(), "/v1/functions/"+args[0], fargs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	callCmd.Flags().BoolVar(&flagCallNull, "null", false, "append a NULL argument")
	addClientFlags(callCmd)
	rootCmd.AddCommand(callCmd)

	matchesCmd := &cobra.Command{
		Use:   "matches",
		Short: "List the detections recorded by a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			t, err := c.table(cmd.Context(), matchtable.Name)
			if err != nil {
				return err
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), t)
			}
			return report.PrintTable(cmd.OutOrStdout(), t.Columns, matchRows(t.Columns, t.Rows))
		},
	}
	addClientFlags(matchesCmd)
	rootCmd.AddCommand(matchesCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status variables of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			st, err := c.status(cmd.Context())
			if err != nil {
				return err
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			rows := make([][]string, 0, len(st.Variables))
			for _, v := range st.Variables {
				rows = append(rows, []string{v.Name, v.Value})
			}
			return report.PrintTable(cmd.OutOrStdout(), []string{"Variable_name", "Value"}, rows)
		},
	}
	addClientFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

// matchRows formats table cells decoded from JSON. LOGGED arrives as
// microseconds since the epoch.
func matchRows(columns []string, rows [][]any) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			switch x := v.(type) {
			case nil:
				cells[i] = "NULL"
			case float64:
				if i < len(columns) && columns[i] == "LOGGED" {
					cells[i] = time.UnixMicro(int64(x)).Local().Format("2006-01-02 15:04:05.000000")
				} else {
					cells[i] = strconv.FormatInt(int64(x), 10)
				}
			case string:
				cells[i] = x
			default:
				cells[i] = fmt.Sprint(x)
			}
		}
		out = append(out, cells)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
