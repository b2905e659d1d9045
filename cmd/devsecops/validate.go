package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/validation"
)

// errValidation reports a failed validation; the process exits 1.
var errValidation = errors.New("validation failed")

// newValidateCmd creates the "validate" subcommand for checking template validity.
func newValidateCmd(opts *globalOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "validate [template]",
		Short: "Validate the template with cfn-lint and the DevSecOps rules",
		Long: `Validate runs cfn-lint over the synthesized template, or the given file,
followed by the DevSecOps lint rules.

Checks performed:
  - CloudFormation schema, references and best practices (cfn-lint)
  - DevSecOps invariants (see "devsecops lint")

Examples:
    devsecops validate -c vpcId=vpc-0123abcd
    devsecops validate template.json --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				result *validation.ValidationResult
				err    error
			)
			if len(args) == 1 {
				result, err = validation.ValidateFile(args[0])
			} else {
				s, serr := opts.synthesize(cmd.Context())
				if serr != nil {
					return fmt.Errorf("validation failed: %w", serr)
				}
				dir, derr := os.MkdirTemp("", "devsecops-validate-")
				if derr != nil {
					return derr
				}
				defer os.RemoveAll(dir)
				result, err = validation.ValidateTemplate(s.template, dir)
			}
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			return outputValidateResult(cmd, result.Summary(), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func outputValidateResult(cmd *cobra.Command, result devsecops.ValidateResult, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	case "text":
		if result.Success {
			fmt.Fprintf(out, "Validation passed: %d resources OK\n", result.Resources)
			for _, warnMsg := range result.Warnings {
				fmt.Fprintf(out, "  WARNING: %s\n", warnMsg)
			}
			return nil
		}

		fmt.Fprintln(out, "Validation FAILED:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(out, "  ERROR: %s\n", errMsg)
		}
		for _, warnMsg := range result.Warnings {
			fmt.Fprintf(out, "  WARNING: %s\n", warnMsg)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return errValidation
	}
	return nil
}
