package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/graph"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the declared resources",
		Long: `List synthesizes the stack and displays its resources in deployment order.

Examples:
    devsecops list -c vpcId=vpc-0123abcd
    devsecops list -c vpcId=vpc-0123abcd --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.synthesize(cmd.Context())
			if err != nil {
				return err
			}
			return outputListResult(cmd, listResources(s.template, s.order), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

// listResources lists the template's resources in the given order with
// the resources each one depends on.
func listResources(t *devsecops.Template, order []string) devsecops.ListResult {
	deps := make(map[string][]string)
	for _, e := range graph.Edges(t, false) {
		deps[e.From] = append(deps[e.From], e.To)
	}

	result := devsecops.ListResult{Resources: make([]devsecops.ListResource, 0, len(order))}
	for _, name := range order {
		result.Resources = append(result.Resources, devsecops.ListResource{
			Name:      name,
			Type:      t.Resources[name].Type,
			DependsOn: deps[name],
		})
	}
	return result
}

func outputListResult(cmd *cobra.Command, result devsecops.ListResult, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	case "text":
		if len(result.Resources) == 0 {
			fmt.Fprintln(out, "No resources found.")
			return nil
		}

		fmt.Fprintf(out, "Declared resources (%d):\n\n", len(result.Resources))
		for _, res := range result.Resources {
			fmt.Fprintf(out, "  %s: %s\n", res.Name, res.Type)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	return nil
}
