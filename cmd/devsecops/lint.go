package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/lint"
)

func newLintCmd(opts *globalOptions) *cobra.Command {
	var (
		outputFormat string
		disabled     []string
	)

	cmd := &cobra.Command{
		Use:   "lint [templates...]",
		Short: "Check templates for DevSecOps issues",
		Long: `Lint checks the synthesized stack, or the given template files, against
the DevSecOps rules.

Rules:
    DSO001: The task execution role may use exactly the registry pull and log actions
    DSO002: Only ecs-tasks.amazonaws.com may assume the task execution role
    DSO003: The manifest the build writes names the task's container
    DSO004: The deploy stage reads imagedefinitions.json from the build output
    DSO005: Stages run Source, Build, one manual approval, Deploy
    DSO006: The buildspec lints before pushing and scans after pushing
    DSO007: The public listener serves plain HTTP (informational)
    DSO008: The image repository outlives the stack

Exit status is 2 when errors or warnings are found.

Examples:
    devsecops lint -c vpcId=vpc-0123abcd
    devsecops lint template.json --disable DSO007`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lintOpts := lint.Options{DisabledRules: disabled}

			var results []lint.Result
			if len(args) == 0 {
				s, err := opts.synthesize(cmd.Context())
				if err != nil {
					return fmt.Errorf("lint failed: %w", err)
				}
				results = append(results, lint.LintTemplate(s.template, lintOpts))
			}
			for _, path := range args {
				r, err := lint.LintFile(path, lintOpts)
				if err != nil {
					return fmt.Errorf("lint failed: %w", err)
				}
				results = append(results, r)
			}
			return outputLintResult(cmd, toLintResult(results), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringSliceVar(&disabled, "disable", nil, "Rule IDs to skip")

	return cmd
}

func toLintResult(results []lint.Result) devsecops.LintResult {
	out := devsecops.LintResult{Success: true}
	for _, r := range results {
		out.Success = out.Success && r.Success
		for _, f := range r.Issues {
			out.Issues = append(out.Issues, devsecops.LintIssue{
				Resource: f.Resource,
				Severity: f.Severity.String(),
				Message:  f.Message,
				Rule:     f.Rule,
			})
		}
	}
	return out
}

func outputLintResult(cmd *cobra.Command, result devsecops.LintResult, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	case "text":
		if len(result.Issues) == 0 {
			fmt.Fprintln(out, "No issues found.")
			return nil
		}

		for _, issue := range result.Issues {
			if issue.Resource != "" {
				fmt.Fprintf(out, "%s: %s: %s [%s]\n", issue.Resource, issue.Severity, issue.Message, issue.Rule)
			} else {
				fmt.Fprintf(out, "%s: %s [%s]\n", issue.Severity, issue.Message, issue.Rule)
			}
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return errIssues
	}
	return nil
}
