package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lex00/ecs-devsecops-go/internal/graph"
)

func newGraphCmd(opts *globalOptions) *cobra.Command {
	var (
		outputFormat      string
		includeParameters bool
		clusterByService  bool
		templateFile      string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate DOT graph of resource dependencies",
		Long: `Generate a DOT or Mermaid format graph showing resource dependencies.
GetAtt edges are blue; DependsOn edges without a reference are dashed.

The output can be rendered with Graphviz:
    devsecops graph -c vpcId=vpc-0123abcd | dot -Tpng -o deps.png

Or used in GitHub markdown (Mermaid format):
    devsecops graph -c vpcId=vpc-0123abcd -f mermaid

Examples:
    devsecops graph -c vpcId=vpc-0123abcd --cluster   # cluster by service
    devsecops graph --template template.json          # graph a template file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var graphFormat graph.Format
			switch outputFormat {
			case "dot":
				graphFormat = graph.FormatDOT
			case "mermaid":
				graphFormat = graph.FormatMermaid
			default:
				return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", outputFormat)
			}

			t, err := opts.templateOrSynth(cmd.Context(), templateFile)
			if err != nil {
				return err
			}
			if len(t.Resources) == 0 {
				return fmt.Errorf("no resources found")
			}

			gen := &graph.Generator{
				Format:            graphFormat,
				IncludeParameters: includeParameters,
				ClusterByService:  clusterByService,
			}
			return gen.Generate(t, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&includeParameters, "include-parameters", "p", false, "Include parameter nodes in the graph")
	cmd.Flags().BoolVar(&clusterByService, "cluster", false, "Cluster resources by AWS service")
	cmd.Flags().StringVarP(&templateFile, "template", "t", "", "Graph this template file instead of synthesizing")

	return cmd
}
