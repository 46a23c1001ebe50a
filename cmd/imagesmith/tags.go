package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chis/imagesmith/internal/bootstrap"
	"github.com/chis/imagesmith/internal/output"
)

func newTagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags NAMESPACE",
		Short: "List the tags published for a namespace on ghcr.io",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireGHCR(); err != nil {
				return err
			}
			svc, cleanup, err := a.services(bootstrap.InitOptions{DisableStorage: true})
			if err != nil {
				return err
			}
			defer cleanup()

			tags, err := a.packages(svc).ListTags(cmd.Context(), a.cfg.Owner, args[0], a.cfg.Token)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return output.Write(a.stdout, "tags", tags, nil)
			}
			for _, tag := range tags {
				a.println(tag)
			}
			return nil
		},
	}
}

func newDeleteTagCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-tag NAMESPACE TAG",
		Short: "Delete the package version carrying TAG on ghcr.io",
		Long: `Delete the container package version that carries TAG. Every other tag on
that version goes with it. A missing package or tag is not an error.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireGHCR(); err != nil {
				return err
			}
			svc, cleanup, err := a.services(bootstrap.InitOptions{DisableStorage: true})
			if err != nil {
				return err
			}
			defer cleanup()

			ns, tag := args[0], args[1]
			if err := a.packages(svc).DeleteTag(cmd.Context(), a.cfg.Owner, ns, tag, a.cfg.Token); err != nil {
				return err
			}

			if a.jsonOut {
				return output.Write(a.stdout, "delete-tag", map[string]string{"namespace": ns, "tag": tag}, nil)
			}
			a.println(fmt.Sprintf("Deleted %s:%s", ns, tag))
			return nil
		},
	}
}
