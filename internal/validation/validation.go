// Package validation checks a synthesized stack template two ways:
//   - cfn-lint-go: CloudFormation schema and best-practice rules (library dependency)
//   - DSO rules: the DevSecOps invariants in internal/lint
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"

	devsecops "github.com/lex00/ecs-devsecops-go"
	dsolint "github.com/lex00/ecs-devsecops-go/internal/lint"
	"github.com/lex00/ecs-devsecops-go/internal/template"
)

// CfnLintResult contains the result of running cfn-lint.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// ValidationResult contains every check run over one template.
type ValidationResult struct {
	TemplatePath  string         `json:"template_path"`
	Resources     int            `json:"resources"`
	CfnLintResult *CfnLintResult `json:"cfn_lint_result"`
	LintResult    dsolint.Result `json:"lint_result"`
}

// Passed reports whether neither check found an error. Warnings from
// cfn-lint are acceptable; DSO warnings are not.
func (r *ValidationResult) Passed() bool {
	return r.CfnLintResult != nil && r.CfnLintResult.Passed && r.LintResult.Success
}

// Summary flattens the result into the CLI's JSON shape.
func (r *ValidationResult) Summary() devsecops.ValidateResult {
	out := devsecops.ValidateResult{Success: r.Passed(), Resources: r.Resources}
	if r.CfnLintResult != nil {
		out.Errors = append(out.Errors, r.CfnLintResult.Errors...)
		out.Warnings = append(out.Warnings, r.CfnLintResult.Warnings...)
	}
	for _, f := range r.LintResult.Issues {
		msg := formatFinding(f)
		switch f.Severity {
		case dsolint.SeverityError:
			out.Errors = append(out.Errors, msg)
		case dsolint.SeverityWarning:
			out.Warnings = append(out.Warnings, msg)
		}
	}
	return out
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) (*CfnLintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Linter error: %v", err)},
		}, nil
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}
	for _, match := range matches {
		formatted := formatMatch(match)

		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}
	result.Passed = len(result.Errors) == 0
	return result, nil
}

// formatMatch formats a cfn-lint-go match for display.
func formatMatch(match lint.Match) string {
	pathStr := ""
	if len(match.Location.Path) > 0 {
		parts := make([]string, len(match.Location.Path))
		for i, p := range match.Location.Path {
			parts[i] = fmt.Sprintf("%v", p)
		}
		pathStr = strings.Join(parts, "/")
	}

	if pathStr != "" {
		return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, pathStr)
	}
	return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
}

func formatFinding(f dsolint.Finding) string {
	if f.Resource != "" {
		return fmt.Sprintf("%s: %s (at Resources/%s)", f.Rule, f.Message, f.Resource)
	}
	return fmt.Sprintf("%s: %s", f.Rule, f.Message)
}

// ValidateFile validates a template already on disk.
func ValidateFile(path string) (*ValidationResult, error) {
	t, err := template.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	cfn, err := RunCfnLint(path)
	if err != nil {
		return nil, fmt.Errorf("running cfn-lint: %w", err)
	}
	return &ValidationResult{
		TemplatePath:  path,
		Resources:     len(t.Resources),
		CfnLintResult: cfn,
		LintResult:    dsolint.LintTemplate(t, dsolint.Options{File: path}),
	}, nil
}

// ValidateTemplate writes t as JSON into dir and validates the file.
func ValidateTemplate(t *devsecops.Template, dir string) (*ValidationResult, error) {
	data, err := template.ToJSON(t)
	if err != nil {
		return nil, fmt.Errorf("encoding template: %w", err)
	}
	path := filepath.Join(dir, "template.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}
	return ValidateFile(path)
}
