package main

import (
	"fmt"

	"github.com/spf13/cobra"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/template"
)

func newSynthCmd(opts *globalOptions) *cobra.Command {
	var (
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate the CloudFormation template",
		Long: `Synth resolves the VPC from the context file (or EC2 when credentials are
set) and writes the stack template.

Examples:
    devsecops synth -c vpcId=vpc-0123abcd
    devsecops synth -c vpcId=vpc-0123abcd -o template.json
    devsecops synth -c vpcId=vpc-0123abcd --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := devsecops.SynthResult{Success: true}
			s, err := opts.synthesize(cmd.Context())
			if err != nil {
				result = devsecops.SynthResult{Success: false, Errors: []string{err.Error()}}
			} else {
				result.Template = s.template
				result.Resources = s.order
			}
			return outputSynthResult(cmd, result, outputFormat, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func outputSynthResult(cmd *cobra.Command, result devsecops.SynthResult, format, outputFile string) error {
	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), e)
		}
		return fmt.Errorf("synth failed")
	}

	data, err := template.Encode(result.Template, format)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), data, outputFile); err != nil {
		return err
	}
	if outputFile != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d resources)\n", outputFile, len(result.Resources))
	}
	return nil
}
