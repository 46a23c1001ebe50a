package main

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chis/imagesmith/cmd/imagesmith/terminal"
	"github.com/chis/imagesmith/internal/bootstrap"
	"github.com/chis/imagesmith/internal/build"
	"github.com/chis/imagesmith/internal/namespace"
	"github.com/chis/imagesmith/internal/output"
)

type listedVariant struct {
	Name      string            `json:"name"`
	Tags      []string          `json:"tags"`
	BuildArgs map[string]string `json:"build_args"`
	LTS       map[string]bool   `json:"lts,omitempty"`
}

type listedNamespace struct {
	Name     string          `json:"name"`
	Matrix   string          `json:"matrix"`
	Variants []listedVariant `json:"variants"`
}

func newListCmd(a *app) *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List namespaces and their resolved variants",
		Long: `List every namespace under the root with its variants, the tags each
variant would be published under, and which dimension values are LTS releases.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runList(only)
		},
	}
	cmd.Flags().StringVar(&only, "namespace", "", "List only this namespace")
	return cmd
}

func (a *app) runList(only string) error {
	svc, cleanup, err := a.services(bootstrap.InitOptions{DisableStorage: true})
	if err != nil {
		return err
	}
	defer cleanup()

	namespaces, err := svc.Discover()
	if err != nil {
		return err
	}
	if only != "" {
		ns, err := namespace.Find(namespaces, only)
		if err != nil {
			return err
		}
		namespaces = []namespace.Namespace{ns}
	}

	listed := make([]listedNamespace, 0, len(namespaces))
	for _, ns := range namespaces {
		_, targets, err := svc.Namespaces.Resolve(ns)
		if err != nil {
			return err
		}
		entry := listedNamespace{Name: ns.Name, Matrix: ns.MatrixPath, Variants: make([]listedVariant, 0, len(targets))}
		for _, t := range targets {
			args := make(map[string]string)
			for _, arg := range build.BuildArgs(t.Variant.Variant) {
				args[arg.Key] = arg.Value
			}
			entry.Variants = append(entry.Variants, listedVariant{
				Name:      t.Name(),
				Tags:      t.Variant.Tags.All(),
				BuildArgs: args,
				LTS:       t.Variant.LTS,
			})
		}
		listed = append(listed, entry)
	}

	if a.jsonOut {
		return output.Write(a.stdout, "list", listed, nil)
	}

	for _, ns := range listed {
		a.println(terminal.Bold(ns.Name) + " " + terminal.Gray(ns.Matrix))
		for _, v := range ns.Variants {
			a.printf("  %s%s\n", v.Name, ltsMarks(v.LTS))
			a.println(indent(v.Tags, "      "))
		}
	}
	return nil
}

// ltsMarks renders " [LTS: node]" for the dimensions holding an LTS value.
func ltsMarks(lts map[string]bool) string {
	var dims []string
	for dim, ok := range lts {
		if ok {
			dims = append(dims, dim)
		}
	}
	if len(dims) == 0 {
		return ""
	}
	sort.Strings(dims)
	return " " + terminal.Green("[LTS: "+strings.Join(dims, ", ")+"]")
}
