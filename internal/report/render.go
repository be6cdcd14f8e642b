package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// FileResult is the outcome of scanning one file.
type FileResult struct {
	Path       string   `json:"path"`
	Signatures []string `json:"signatures,omitempty"`
	Err        string   `json:"error,omitempty"`
}

func (r FileResult) Infected() bool { return len(r.Signatures) > 0 }

type PrintOptions struct {
	NoColor       bool
	Duration      time.Duration
	EngineVersion string
	Signatures    int
}

// PrintText writes one line per infected or failed file, then a footer.
func PrintText(w io.Writer, results []FileResult, opts PrintOptions) {
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	infected, failed := 0, 0
	for _, r := range results {
		switch {
		case r.Err != "":
			failed++
			fmt.Fprintf(w, "%s %s: %s\n", paint("ERROR", yellow, opts.NoColor), r.Path, r.Err)
		case r.Infected():
			infected++
			fmt.Fprintf(w, "%s %s: %s\n", paint("FOUND", red, opts.NoColor), r.Path, strings.Join(r.Signatures, ", "))
		}
	}
	if infected == 0 && failed == 0 {
		fmt.Fprintln(w, "No virus found ✅")
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Scanned files: %d (infected: %d, errors: %d)\n", len(results), infected, failed)
	if opts.EngineVersion != "" {
		fmt.Fprintf(w, "Engine: %s, %d signatures\n", opts.EngineVersion, opts.Signatures)
	}
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", opts.Duration.Seconds())
	}
}

// PrintTable renders rows under header with borders.
func PrintTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "Empty set")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d row(s) in set\n", len(rows))
	return nil
}

// ShouldFail reports whether any file was infected.
func ShouldFail(results []FileResult) bool {
	for _, r := range results {
		if r.Infected() {
			return true
		}
	}
	return false
}

const (
	red    = "31"
	yellow = "33"
)

func paint(s, color string, noColor bool) string {
	if noColor {
		return s
	}
	return "\x1b[" + color + "m" + s + "\x1b[0m"
}
