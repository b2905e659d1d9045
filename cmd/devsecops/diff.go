package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/differ"
	"github.com/lex00/ecs-devsecops-go/internal/template"
)

func newDiffCmd(opts *globalOptions) *cobra.Command {
	var (
		outputFormat string
		ignoreOrder  bool
	)

	cmd := &cobra.Command{
		Use:   "diff <template1> [template2]",
		Short: "Compare two templates semantically",
		Long: `Diff compares two CloudFormation templates by logical ID and reports
added, removed and modified resources with the property paths that
changed, plus changed outputs.

With one file, the file is compared against the stack as synthesized now.

Examples:
    devsecops diff old.json new.json
    devsecops diff deployed.yaml -c vpcId=vpc-0123abcd
    devsecops diff old.json new.json --ignore-order --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := template.Load(args[0])
			if err != nil {
				return err
			}
			var after *devsecops.Template
			if len(args) == 2 {
				after, err = template.Load(args[1])
			} else {
				after, err = synthesizedAsLoaded(cmd, opts)
			}
			if err != nil {
				return err
			}

			result, err := differ.Compare(before, after, differ.Options{IgnoreOrder: ignoreOrder})
			if err != nil {
				return err
			}
			return outputDiffResult(cmd, result, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore array element order")

	return cmd
}

// synthesizedAsLoaded synthesizes the stack and reads it back from JSON, so
// it compares like a template loaded from disk.
func synthesizedAsLoaded(cmd *cobra.Command, opts *globalOptions) (*devsecops.Template, error) {
	t, err := opts.templateOrSynth(cmd.Context(), "")
	if err != nil {
		return nil, err
	}
	data, err := template.ToJSON(t)
	if err != nil {
		return nil, err
	}
	return template.Parse(data)
}

func outputDiffResult(cmd *cobra.Command, result *differ.Result, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(devsecops.DiffResult{
			Success: true,
			Diff:    result.Diff,
			Summary: result.Summary,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	case "text":
		if result.Empty() {
			fmt.Fprintln(out, "No differences.")
			return nil
		}
		for _, e := range result.Diff.Added {
			fmt.Fprintf(out, "+ %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Removed {
			fmt.Fprintf(out, "- %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Modified {
			fmt.Fprintf(out, "~ %s (%s)\n", e.Resource, e.Type)
			for _, c := range e.Changes {
				fmt.Fprintf(out, "    %s\n", c)
			}
		}
		if len(result.Diff.Outputs) > 0 {
			fmt.Fprintln(out, "Outputs:")
			for _, c := range result.Diff.Outputs {
				fmt.Fprintf(out, "    %s\n", c)
			}
		}
		s := result.Summary
		fmt.Fprintf(out, "\n%d added, %d removed, %d modified, %d outputs changed\n", s.Added, s.Removed, s.Modified, s.Outputs)

	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}
