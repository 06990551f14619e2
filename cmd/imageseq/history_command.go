package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"imageseq/internal/catalog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded import and export runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			summary, err := store.Summary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, historyTable(runs, summary, time.Now()).render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most this many runs (0 = all)")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			frames, err := store.Frames(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Run", statusInfo, run.ID, colorize))
			fmt.Fprintln(out, renderStatusLine("Operation", statusInfo, run.Operation, colorize))
			fmt.Fprintln(out, renderStatusLine("Outcome", outcomeKind(run.Outcome), outcomeMessage(*run), colorize))
			fmt.Fprintln(out, renderStatusLine("Folder", statusInfo, run.Folder, colorize))
			if run.ExportDir != "" {
				fmt.Fprintln(out, renderStatusLine("Export dir", statusInfo, run.ExportDir, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Frames", statusInfo,
				fmt.Sprintf("%d (%d failed, %d skipped) %dx%d", run.Frames, run.Failed, run.Skipped, run.Width, run.Height), colorize))
			if len(frames) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(frames))
			for _, frame := range frames {
				rows = append(rows, []string{strconv.Itoa(frame.Index), frame.Identifier, yesNo(frame.Failed), frame.Path})
			}
			fmt.Fprintln(out, tableSpec{
				headers: []string{"#", "Frame", "Failed", "Path"},
				rows:    rows,
				aligns:  []columnAlignment{alignRight},
			}.render())
			return nil
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 100, "Number of runs to keep")
	return cmd
}

func openCatalog(ctx *commandContext) (*catalog.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return catalog.Open(cfg)
}

func historyTable(runs []catalog.Run, summary catalog.Summary, now time.Time) tableSpec {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.Operation,
			string(run.Outcome),
			strconv.Itoa(run.Frames),
			strconv.Itoa(run.Failed),
			run.Elapsed.Round(time.Millisecond).String(),
			humanize.RelTime(run.FinishedAt, now, "ago", "from now"),
			run.Folder,
		})
	}
	return tableSpec{
		headers: []string{"Run", "Operation", "Outcome", "Frames", "Failed", "Elapsed", "Finished", "Folder"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
		footer: []string{
			fmt.Sprintf("%d total", summary.Total),
			"",
			fmt.Sprintf("%d ok / %d failed / %d canceled", summary.Succeeded, summary.Failed, summary.Canceled),
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func outcomeKind(outcome catalog.Outcome) statusKind {
	switch outcome {
	case catalog.OutcomeSucceeded:
		return statusOK
	case catalog.OutcomeCanceled:
		return statusWarn
	default:
		return statusError
	}
}

func outcomeMessage(run catalog.Run) string {
	if run.Error != "" {
		return fmt.Sprintf("%s: %s", run.Outcome, run.Error)
	}
	return string(run.Outcome)
}
