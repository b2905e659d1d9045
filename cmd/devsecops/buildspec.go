package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lex00/ecs-devsecops-go/internal/topology"
)

func newBuildspecCmd(opts *globalOptions) *cobra.Command {
	var (
		outputFile string
		showGates  bool
	)

	cmd := &cobra.Command{
		Use:   "buildspec",
		Short: "Print the generated buildspec",
		Long: `Buildspec prints the buildspec the CodeBuild project runs: Dockerfile lint,
image build, push, vulnerability scan and image definitions. It needs no
VPC.

Examples:
    devsecops buildspec
    devsecops buildspec --gates
    devsecops buildspec -o buildspec.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			spec := topology.NewBuildSpec(cfg)

			if showGates {
				commands := make(map[string][]string)
				for _, np := range spec.Ordered() {
					commands[np.Name] = np.Phase.Commands
				}
				out := cmd.OutOrStdout()
				for _, g := range spec.Gates() {
					fmt.Fprintf(out, "%-10s %-9s %s\n", g.Phase, g.Gate, commands[g.Phase][g.Index])
				}
				return nil
			}

			data, err := spec.Marshal()
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), data, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&showGates, "gates", false, "List the gate commands in execution order")

	return cmd
}
