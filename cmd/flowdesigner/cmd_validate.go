package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a workflow document",
		Long:  "Runs the structural (JSON Schema) and semantic checks. Exits non-zero when errors are found.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.tooling(cmd.Context(), nil)
			if err != nil {
				return err
			}
			raw, err := readDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			_, result := t.validator.ValidateDocument(raw)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				writeIssues(out, result)
				if result.Valid() {
					fmt.Fprintf(out, "ok (%d warnings)\n", len(result.Warnings))
				}
			}
			if !result.Valid() {
				return errors.New("workflow is invalid")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the validation result as JSON")
	return cmd
}
