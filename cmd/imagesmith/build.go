package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/chis/imagesmith/cmd/imagesmith/terminal"
	"github.com/chis/imagesmith/internal/bootstrap"
	"github.com/chis/imagesmith/internal/build"
	"github.com/chis/imagesmith/internal/namespace"
	"github.com/chis/imagesmith/internal/orchestrator"
	"github.com/chis/imagesmith/internal/output"
)

type buildFlags struct {
	all       bool
	name      string
	namespace string
	push      bool
	dryRun    bool
	noCache   bool
	platform  string
	parallel  bool
	jobs      int
}

func addBuildFlags(cmd *cobra.Command, a *app) {
	var f buildFlags

	fs := cmd.Flags()
	fs.BoolVar(&f.all, "all", false, "Build every variant (default when --name is not given)")
	fs.StringVar(&f.name, "name", "", "Build only the named variant")
	fs.StringVar(&f.namespace, "namespace", "", "Build only this namespace")
	fs.BoolVar(&f.push, "push", false, "Push every tag after a successful build")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Print the commands without running them")
	fs.BoolVar(&f.noCache, "no-cache", false, "Build without the layer cache")
	fs.StringVar(&f.platform, "platform", "", "Target platform, e.g. linux/amd64")
	fs.BoolVar(&f.parallel, "parallel", false, "Build the variants of a namespace concurrently")
	fs.IntVar(&f.jobs, "jobs", 0, "Maximum concurrent builds with --parallel (0 = unbounded)")
	cmd.MarkFlagsMutuallyExclusive("all", "name")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return a.runBuild(cmd, f)
	}
}

func (a *app) runBuild(cmd *cobra.Command, f buildFlags) error {
	if f.jobs < 0 {
		return errors.New("--jobs must not be negative")
	}

	mode := orchestrator.ModeSequential
	if f.parallel {
		mode = orchestrator.ModeConcurrent
	}
	opts := build.Options{
		Platform: f.platform,
		NoCache:  f.noCache,
		DryRun:   f.dryRun,
		Push:     f.push,
	}

	svc, cleanup, err := a.services(bootstrap.InitOptions{Build: opts, Mode: mode, Jobs: f.jobs})
	if err != nil {
		return err
	}
	defer cleanup()

	stop := func() {}
	if !a.jsonOut {
		stop = terminal.Follow(svc.EventBus, a.stdout)
	}

	sel := namespace.Selection{Namespace: f.namespace, Variant: f.name}
	summary, err := svc.Build(cmd.Context(), sel)
	stop()

	if a.jsonOut {
		if werr := output.Write(a.stdout, "build", summary, err); werr != nil {
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
	a.printSummary(summary)
	if !summary.OK() {
		return errFailed
	}
	return nil
}

func (a *app) printSummary(s *orchestrator.RunSummary) {
	a.println()
	title := "Build summary"
	if s.DryRun {
		title += " (dry run)"
	}
	a.println(terminal.Bold(title))

	for _, o := range s.Outcomes {
		name := o.Variant
		if o.Namespace != "" {
			name = o.Namespace + "/" + o.Variant
		}
		a.printf("  %-28s %s %s\n", name, terminal.Status(string(o.Status)), terminal.Gray(o.Duration.Round(time.Millisecond).String()))
		if s.DryRun && len(o.Planned) > 0 {
			a.println(indent(o.Planned, "      "))
			continue
		}
		for _, tag := range o.Tags {
			a.printf("      %s\n", tag)
		}
		if o.Error != "" {
			a.printf("      %s\n", terminal.Red(o.Error))
		}
	}

	a.printf("%d succeeded, %d failed, %d skipped in %s\n",
		s.Succeeded, s.Failed, s.Skipped, s.Duration().Round(time.Millisecond))
}
