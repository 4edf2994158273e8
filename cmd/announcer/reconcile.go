package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"announcer/internal/domain"
)

func newReconcileCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single reconciliation pass and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.reconcile(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (c *cli) reconcile(ctx context.Context, out io.Writer) error {
	a, err := buildApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close(c.logger)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Run)
	defer cancel()

	summary, err := a.reconciler.Reconcile(ctx)
	if summary != nil {
		if rerr := renderSummary(out, summary); rerr != nil {
			fmt.Fprintln(os.Stderr, "render summary:", rerr)
		}
	}
	if err != nil {
		return err
	}
	if summary.Status != domain.RunSucceeded {
		return fmt.Errorf("run %s finished with status %s", summary.RunID, summary.Status)
	}
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

// renderSummary prints the run counters followed by one row per failure.
func renderSummary(w io.Writer, s *domain.RunSummary) error {
	counters := newTable(w)
	counters.Header([]string{"run", "status", "fetched", "created", "updated", "unchanged", "failed", "published", "duration"})
	if err := counters.Bulk([][]string{{
		s.RunID,
		string(s.Status),
		strconv.Itoa(s.Fetched),
		strconv.Itoa(s.Created),
		strconv.Itoa(s.Updated),
		strconv.Itoa(s.Unchanged),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Published),
		s.Duration.Round(time.Millisecond).String(),
	}}); err != nil {
		return err
	}
	if err := counters.Render(); err != nil {
		return err
	}

	if s.Error != "" {
		fmt.Fprintf(w, "\nerror: %s\n", s.Error)
	}
	if len(s.Failures) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	failures := newTable(w)
	failures.Header([]string{"identity", "stage", "stale", "error"})
	rows := make([][]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		rows = append(rows, []string{f.Identity, string(f.Stage), strconv.FormatBool(f.Stale), f.Error})
	}
	if err := failures.Bulk(rows); err != nil {
		return err
	}
	return failures.Render()
}
