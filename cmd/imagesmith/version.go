package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chis/imagesmith/internal/output"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the imagesmith version",
		Args:  cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(*cobra.Command, []string) error {
			info := map[string]string{
				"version": output.Version,
				"go":      runtime.Version(),
				"os":      runtime.GOOS,
				"arch":    runtime.GOARCH,
			}
			if a.jsonOut {
				return output.Write(a.stdout, "version", info, nil)
			}
			a.printf("imagesmith %s (%s %s/%s)\n", info["version"], info["go"], info["os"], info["arch"])
			return nil
		},
	}
}
