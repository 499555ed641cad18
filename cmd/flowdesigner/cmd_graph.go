package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/flowdesigner/internal/designer"
	"github.com/rendis/flowdesigner/internal/diagram"
	"github.com/rendis/flowdesigner/internal/navigation"
)

func newGraphCmd(a *app) *cobra.Command {
	var flags struct {
		path   []string
		format string
		output string
	}

	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Render one flowchart of a workflow document",
		Long: `Maps the flowchart reached by --path to the flat graph a render surface
draws. Each --path entry enters an embedded port: activityId:portName.
Use "-" to read the document from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := navigation.ParsePath(flags.path)
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
			view, err := designer.RenderView(def, t.resolver, t.registry, path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch flags.format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			case "mermaid":
				_, err := fmt.Fprint(out, diagram.RenderMermaid(view.Graph))
				return err
			case "svg", "png":
				img, err := diagram.RenderImage(view.Graph, diagram.ImageFormat(flags.format))
				if err != nil {
					return err
				}
				if flags.output != "" {
					return os.WriteFile(flags.output, img, 0o644)
				}
				_, err = out.Write(img)
				return err
			default:
				return fmt.Errorf("unknown format %q: want json, mermaid, svg or png", flags.format)
			}
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&flags.path, "path", nil, "Embedded port to enter, activityId:portName (repeatable)")
	f.StringVarP(&flags.format, "format", "f", "json", "Output format: json, mermaid, svg, png")
	f.StringVarP(&flags.output, "output", "o", "", "Write images to this file instead of stdout")
	return cmd
}
