package main

import (
	"github.com/spf13/cobra"

	"github.com/chis/imagesmith/cmd/imagesmith/terminal"
	"github.com/chis/imagesmith/internal/bootstrap"
	"github.com/chis/imagesmith/internal/output"
	"github.com/chis/imagesmith/internal/registry"
)

type inspection struct {
	Ref      string                `json:"ref"`
	Provider registry.ProviderKind `json:"provider"`
	Exists   bool                  `json:"exists"`
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect REF...",
		Short: "Check whether image references are published",
		Long: `Check each image reference with a manifest inspect against its registry.
Exits non-zero when any reference is missing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := a.services(bootstrap.InitOptions{DisableStorage: true})
			if err != nil {
				return err
			}
			defer cleanup()

			results := make([]inspection, 0, len(args))
			missing := 0
			for _, ref := range args {
				ok := svc.Registry.Exists(cmd.Context(), ref)
				if !ok {
					missing++
				}
				results = append(results, inspection{
					Ref:      ref,
					Provider: registry.Classify(registry.Host(ref)),
					Exists:   ok,
				})
			}

			if a.jsonOut {
				if err := output.Write(a.stdout, "inspect", results, nil); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					status := terminal.Green("published")
					if !r.Exists {
						status = terminal.Red("missing")
					}
					a.printf("%s %s %s\n", r.Ref, status, terminal.Gray(string(r.Provider)))
				}
			}
			if missing > 0 {
				return errFailed
			}
			return nil
		},
	}
}
