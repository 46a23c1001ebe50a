package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chis/imagesmith/cmd/imagesmith/terminal"
	"github.com/chis/imagesmith/internal/bootstrap"
	"github.com/chis/imagesmith/internal/output"
	"github.com/chis/imagesmith/internal/storage"
)

// historyList wraps a run listing for JSON output.
type historyList struct {
	Runs []storage.RunRecord `json:"runs"`
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded build and sweep runs",
		Long: `Without arguments, list the most recent runs. With a run ID, show every
variant outcome recorded for that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}
			svc, cleanup, err := a.services(bootstrap.InitOptions{RequireStorage: true})
			if err != nil {
				return err
			}
			defer cleanup()
			if svc.Storage == nil {
				return errors.New("run history is not available")
			}

			if len(args) == 1 {
				run, err := svc.Storage.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonOut {
					return output.Write(a.stdout, "history", run, nil)
				}
				a.printRun(run)
				return nil
			}

			runs, err := svc.Storage.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return output.Write(a.stdout, "history", historyList{Runs: runs}, nil)
			}
			if len(runs) == 0 {
				a.println("No runs recorded")
				return nil
			}
			for _, run := range runs {
				a.printf("%s  %-6s %-12s %s  %s\n",
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.Command,
					scopeOf(run),
					runStatus(run),
					terminal.Gray(run.RunID))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func scopeOf(run storage.RunRecord) string {
	if run.Namespace == "" {
		return "all"
	}
	return run.Namespace
}

func runStatus(run storage.RunRecord) string {
	if run.OK() {
		return terminal.Green(fmt.Sprintf("%d ok", run.Succeeded))
	}
	if run.Error != "" && run.Failed == 0 {
		return terminal.Red("error")
	}
	return terminal.Red(fmt.Sprintf("%d failed", run.Failed))
}

func (a *app) printRun(run storage.RunRecord) {
	title := fmt.Sprintf("Run %s (%s)", run.RunID, run.Command)
	if run.DryRun {
		title += " dry run"
	}
	a.println(terminal.Bold(title))
	a.printf("  scope:    %s\n", scopeOf(run))
	if run.Mode != "" {
		a.printf("  mode:     %s\n", run.Mode)
	}
	a.printf("  started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	a.printf("  duration: %s\n", run.Duration().Round(time.Millisecond))
	if run.Error != "" {
		a.printf("  error:    %s\n", terminal.Red(run.Error))
	}
	for _, o := range run.Outcomes {
		name := o.Variant
		if o.Namespace != "" && o.Namespace != run.Namespace {
			name = o.Namespace + "/" + o.Variant
		}
		a.printf("  %-28s %s\n", name, terminal.Status(o.Status))
		for _, tag := range o.Tags {
			a.printf("      %s\n", tag)
		}
		for _, tag := range o.FailedPushes {
			a.printf("      %s %s\n", terminal.Red("push failed:"), tag)
		}
		if o.Digest != "" {
			a.printf("      %s\n", terminal.Gray(o.Digest))
		}
		if o.Error != "" {
			a.printf("      %s\n", terminal.Red(o.Error))
		}
	}
}
