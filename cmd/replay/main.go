package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/sproto/internal/replay"
)

// #region main

// exitError carries a process exit code out of RunE.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func main() {
	cmd := newRootCmd(os.Stdout)
	if err := cmd.Execute(); err != nil {
		var e exitError
		if errors.As(err, &e) {
			os.Exit(e.code)
		}
		os.Exit(2)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "replay FIXTURE_OR_DIR...",
		Short: "Replay recorded backend outputs through the extractor",
		Long: "replay loads extractor fixtures (JSON files, or every *.json in a directory), " +
			"re-extracts each case and prints a comparison table. Exit status is 1 when any case diverges.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandPaths(args)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return exitError{code: 2}
			}
			var all []replay.Result
			for _, p := range paths {
				f, err := replay.LoadFixture(p)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "load fixture: %v\n", err)
					return exitError{code: 2}
				}
				results, err := replay.Replay(f)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "replay %s: %v\n", p, err)
					return exitError{code: 2}
				}
				printComparison(out, filepath.Base(p), results, verbose)
				all = append(all, results...)
			}

			s := replay.Summarize(all)
			fmt.Fprintf(out, "\nSummary: %d total, %d match, %d diverge\n", s.Total, s.Matches, s.Diverged)
			if s.Diverged > 0 {
				return exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the diff for every diverging case")
	return cmd
}

// #endregion main

// #region output

func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", a, err)
		}
		if !info.IsDir() {
			paths = append(paths, a)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(a, "*.json"))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no fixtures found")
	}
	return paths, nil
}

// printComparison outputs one table row per case.
func printComparison(w io.Writer, fixture string, results []replay.Result, verbose bool) {
	fmt.Fprintf(w, "%s\n", fixture)
	fmt.Fprintf(w, "%-40s| %-9s| %-9s| %s\n", "Case", "Expected", "Replayed", "Match")
	fmt.Fprintf(w, "%-40s+%-10s+%-10s+%s\n",
		"----------------------------------------", "----------", "----------", "------")

	for _, r := range results {
		match := "OK"
		if !r.Match() {
			match = "DIFF"
		}
		fmt.Fprintf(w, "%-40s| %-9d| %-9d| %s\n", clip(r.Name, 40), len(r.Expected), len(r.Got), match)
		if verbose && !r.Match() {
			fmt.Fprintf(w, "%s\n", r.Diff)
		}
	}
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// #endregion output
