package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/navigation"
	"github.com/rendis/flowdesigner/pkg/schema"
)

func newPortsCmd(a *app) *cobra.Command {
	var pathFlags []string

	cmd := &cobra.Command{
		Use:   "ports <file> <activity-id>",
		Short: "List the ports of an activity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := navigation.ParsePath(pathFlags)
			if err != nil {
				return err
			}
			t, err := a.tooling(cmd.Context(), nil)
			if err != nil {
				return err
			}
			def, _, err := t.load(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			res, err := navigation.Resolve(t.resolver, t.registry, def.Root, path)
			if err != nil {
				return err
			}
			act := res.Flowchart().Find(args[1])
			if act == nil {
				return schema.NewErrorf(schema.ErrCodeNotFound, "activity %q not found in %q", args[1], res.Container.ID)
			}
			all, err := t.resolver.GetPorts(act, descriptors.Lookup(t.registry, act))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tLABEL")
			for _, p := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Kind, p.Label())
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringArrayVar(&pathFlags, "path", nil, "Embedded port to enter first, activityId:portName (repeatable)")
	return cmd
}
