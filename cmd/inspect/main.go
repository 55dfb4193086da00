package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/sproto/internal/feedback"
)

// #region main

type options struct {
	logPath string
	dsn     string
	last    int
	top     int
	jsonOut bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the sproto vote log",
		Long: "inspect reads the CSV vote log (or its SQL mirror with --db) and prints " +
			"totals plus the best and worst scoring variants.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := loadRecords(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no votes found")
				return nil
			}
			s := feedback.Summarize(records)
			if opts.jsonOut {
				return printJSON(out, s, opts.top)
			}
			printSummary(out, s, opts.top, time.Now())
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.Flags().StringVar(&opts.logPath, "log", "feedback.csv", "path to the CSV vote log")
	cmd.Flags().StringVar(&opts.dsn, "db", "", "read the SQL mirror instead (sqlite path or postgres:// URL)")
	cmd.Flags().IntVar(&opts.last, "last", 0, "only consider the N most recent votes (0 = all)")
	cmd.Flags().IntVar(&opts.top, "top", 10, "show at most N texts")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion main

// #region load

func loadRecords(ctx context.Context, opts options) ([]feedback.Record, error) {
	if opts.dsn != "" {
		db, dialect, err := feedback.OpenMirror(opts.dsn)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return feedback.ListVotes(ctx, db, dialect, opts.last)
	}

	if _, err := os.Stat(opts.logPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("vote log %s does not exist", opts.logPath)
	}
	records, err := feedback.ReadFile(opts.logPath)
	if err != nil {
		return nil, err
	}
	if opts.last > 0 && len(records) > opts.last {
		records = records[len(records)-opts.last:]
	}
	return records, nil
}

// #endregion load

// #region output

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	goodStyle   = cellStyle.Foreground(lipgloss.Color("2"))
	badStyle    = cellStyle.Foreground(lipgloss.Color("1"))
)

func printSummary(w io.Writer, s feedback.Summary, top int, now time.Time) {
	fmt.Fprintf(w, "Votes:   %s (%s up, %s down, %s unknown text)\n",
		humanize.Comma(int64(s.Total)), humanize.Comma(int64(s.Up)),
		humanize.Comma(int64(s.Down)), humanize.Comma(int64(s.Unknown)))
	fmt.Fprintf(w, "Voters:  %s\n", humanize.Comma(int64(s.Voters)))
	fmt.Fprintf(w, "First:   %s (%s)\n", s.First.Format(time.RFC3339), humanize.RelTime(s.First, now, "ago", "from now"))
	fmt.Fprintf(w, "Last:    %s (%s)\n\n", s.Last.Format(time.RFC3339), humanize.RelTime(s.Last, now, "ago", "from now"))

	texts := limitTexts(s.Texts, top)
	if len(texts) == 0 {
		return
	}
	fmt.Fprintln(w, textTable(texts).Render())
}

func textTable(texts []feedback.TextScore) *table.Table {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Net", "Up", "Down", "Text").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 && row >= 0 && row < len(texts) {
				switch net := texts[row].Net(); {
				case net > 0:
					return goodStyle
				case net < 0:
					return badStyle
				}
			}
			return cellStyle
		})
	for _, ts := range texts {
		t.Row(fmt.Sprintf("%+d", ts.Net()), strconv.Itoa(ts.Up), strconv.Itoa(ts.Down), shorten(ts.Text, 60))
	}
	return t
}

func printJSON(w io.Writer, s feedback.Summary, top int) error {
	s.Texts = limitTexts(s.Texts, top)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func limitTexts(texts []feedback.TextScore, top int) []feedback.TextScore {
	if top > 0 && len(texts) > top {
		return texts[:top]
	}
	return texts
}

// shorten keeps a table row on one line.
func shorten(s string, limit int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' {
			r[i] = ' '
		}
	}
	if len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return string(r)
}

// #endregion output
