// Command imagesmith builds, tags and publishes container images from
// per-namespace build matrices.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chis/imagesmith/cmd/imagesmith/terminal"
	"github.com/chis/imagesmith/internal/output"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code: 0 on full
// success, 1 on any failure.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	return a.execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, errFailed) {
		return 1
	}

	if a.jsonOut {
		name := "imagesmith"
		if cmd != nil {
			name = cmd.Name()
		}
		_ = output.Write(a.stdout, name, nil, err)
	} else {
		fmt.Fprintln(a.stderr, terminal.Red("Error: "+err.Error()))
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "imagesmith",
		Short: "Build and publish container images from build matrices",
		Long: `imagesmith reads a build matrix per namespace directory, resolves every
variant into its canonical tag and aliases, and drives build, tag and push
for each variant, one at a time or all at once.`,
		Version:       output.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("registry", "", "Registry host images are tagged for (default ghcr.io)")
	pf.String("username", "", "Registry username")
	pf.String("owner", "", "Image owner path segment (default: username)")
	pf.String("root", "", "Directory holding namespace subdirectories (default images)")
	pf.String("engine", "", "Container engine binary (default docker)")
	pf.String("token-secret", "", "AWS Secrets Manager secret holding the registry token")
	pf.StringVar(&a.configPath, "config", "imagesmith.yml", "Config file")
	pf.BoolVar(&a.jsonOut, "json", false, "Write machine-readable JSON to stdout")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")

	addBuildFlags(root, a)

	root.AddCommand(
		newListCmd(a),
		newSweepCmd(a),
		newTagsCmd(a),
		newDeleteTagCmd(a),
		newInspectCmd(a),
		newHistoryCmd(a),
		newVersionCmd(a),
	)
	return root
}
