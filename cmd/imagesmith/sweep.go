package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chis/imagesmith/cmd/imagesmith/terminal"
	"github.com/chis/imagesmith/internal/bootstrap"
	"github.com/chis/imagesmith/internal/output"
)

func newSweepCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep [OWNER]",
		Short: "Push every local image under registry/owner",
		Long: `Push every locally tagged image whose repository starts with
<registry>/<owner>. OWNER defaults to the configured owner. A failed push is
reported and the sweep continues with the next tag.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner string
			if len(args) == 1 {
				owner = args[0]
			}
			return a.runSweep(cmd, owner, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be pushed without pushing")
	return cmd
}

func (a *app) runSweep(cmd *cobra.Command, owner string, dryRun bool) error {
	svc, cleanup, err := a.services(bootstrap.InitOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	images, err := a.images()
	if err != nil {
		return err
	}
	defer images.Close()

	stop := func() {}
	if !a.jsonOut {
		stop = terminal.Follow(svc.EventBus, a.stdout)
	}
	summary, err := svc.Sweep(cmd.Context(), images, owner, dryRun)
	stop()

	if a.jsonOut {
		if werr := output.Write(a.stdout, "sweep", summary, err); werr != nil {
			return werr
		}
		if err != nil || !summary.OK() {
			return errFailed
		}
		return nil
	}
	if err != nil {
		return err
	}

	title := "Sweep of " + summary.Prefix
	if summary.DryRun {
		title += " (dry run)"
	}
	a.println(terminal.Bold(title))
	for _, r := range summary.Results {
		line := fmt.Sprintf("  %s %s", terminal.Status(string(r.Status)), r.Tag)
		if r.Digest != "" {
			line += " " + terminal.Gray(r.Digest)
		}
		if r.Error != "" {
			line += " " + terminal.Red(r.Error)
		}
		a.println(line)
	}
	a.printf("%d pushed, %d failed, %d skipped\n", summary.Pushed, summary.Failed, summary.Skipped)
	if !summary.OK() {
		return errFailed
	}
	return nil
}
