// Package devsecops declares an ECS/Fargate service together with the
// CodeCommit → CodeBuild → approval → ECS deploy pipeline that ships it, and
// synthesizes the whole thing into one CloudFormation template.
//
// Resources are plain Go values from the resources/<service> packages:
//
//	cluster := s.Add("Cluster", ecs.Cluster{
//	    ClusterName: Sub{String: "${AWS::StackName}-cluster"},
//	})
//	s.Add("Service", ecs.Service{
//	    Cluster: cluster.Ref(),
//	})
//
// References between values become the dependency graph the template is
// ordered by.
package devsecops

import (
	"encoding/json"
)

// Resource represents a CloudFormation resource.
// Every type under resources/ implements this interface.
type Resource interface {
	// ResourceType returns the CloudFormation type (e.g., "AWS::ECS::Service")
	ResourceType() string
}

// AttrRef is a reference to a resource attribute.
//
// When serialized to CloudFormation JSON, AttrRef becomes:
//
//	{"Fn::GetAtt": ["LoadBalancer", "DNSName"]}
type AttrRef struct {
	// Resource is the logical name of the referenced resource
	Resource string
	// Attribute is the attribute name (e.g., "Arn", "DNSName")
	Attribute string
}

// MarshalJSON serializes AttrRef to CloudFormation GetAtt syntax.
func (a AttrRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]string{
		"Fn::GetAtt": {a.Resource, a.Attribute},
	})
}

// IsZero returns true if the AttrRef has not been populated.
func (a AttrRef) IsZero() bool {
	return a.Resource == "" && a.Attribute == ""
}

// DeclaredResource is a resource after it has been added to a stack and
// serialized, ready for the template builder.
type DeclaredResource struct {
	// Name is the CloudFormation logical ID
	Name string
	// Type is the CloudFormation type
	Type string
	// Properties are the serialized resource properties
	Properties map[string]any
	// Dependencies are logical names referenced from Properties plus DependsOn
	Dependencies []string
	// DependsOn are explicit ordering edges emitted as DependsOn
	DependsOn []string
	// DeletionPolicy is "Retain", "Delete" or empty
	DeletionPolicy string
	// UpdateReplacePolicy mirrors DeletionPolicy for replacements
	UpdateReplacePolicy string
}

// Template represents a CloudFormation template.
type Template struct {
	AWSTemplateFormatVersion string                 `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string                 `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter   `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]ResourceDef `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output      `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// ResourceDef is a single resource in the CloudFormation template.
type ResourceDef struct {
	Type                string         `json:"Type" yaml:"Type"`
	Properties          map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn           []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
	DeletionPolicy      string         `json:"DeletionPolicy,omitempty" yaml:"DeletionPolicy,omitempty"`
	UpdateReplacePolicy string         `json:"UpdateReplacePolicy,omitempty" yaml:"UpdateReplacePolicy,omitempty"`
}

// Parameter is a CloudFormation template parameter.
type Parameter struct {
	Type          string   `json:"Type" yaml:"Type"`
	Description   string   `json:"Description,omitempty" yaml:"Description,omitempty"`
	Default       any      `json:"Default,omitempty" yaml:"Default,omitempty"`
	AllowedValues []string `json:"AllowedValues,omitempty" yaml:"AllowedValues,omitempty"`
}

// Output is a CloudFormation template output.
type Output struct {
	Description string  `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any     `json:"Value" yaml:"Value"`
	Export      *Export `json:"Export,omitempty" yaml:"Export,omitempty"`
}

// Export makes an output importable by other stacks.
type Export struct {
	Name any `json:"Name" yaml:"Name"`
}

// SynthResult is the JSON output from `devsecops synth`.
type SynthResult struct {
	Success   bool      `json:"success"`
	Template  *Template `json:"template,omitempty"`
	Resources []string  `json:"resources,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
}

// LintResult is the JSON output from `devsecops lint`.
type LintResult struct {
	Success bool        `json:"success"`
	Issues  []LintIssue `json:"issues,omitempty"`
}

// LintIssue is a single linting issue.
type LintIssue struct {
	Resource string `json:"resource,omitempty"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Rule     string `json:"rule"`
}

// ValidateResult is the JSON output from `devsecops validate`.
type ValidateResult struct {
	Success   bool     `json:"success"`
	Resources int      `json:"resources"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ListResult is the JSON output from `devsecops list`.
type ListResult struct {
	Resources []ListResource `json:"resources"`
}

// ListResource is a single resource in the list output.
type ListResource struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// DiffEntry is one changed resource or output.
type DiffEntry struct {
	Resource string   `json:"resource"`
	Type     string   `json:"type,omitempty"`
	Changes  []string `json:"changes,omitempty"`
}

// TemplateDiff groups the changes between two templates.
type TemplateDiff struct {
	Added    []DiffEntry `json:"added,omitempty"`
	Removed  []DiffEntry `json:"removed,omitempty"`
	Modified []DiffEntry `json:"modified,omitempty"`
	Outputs  []string    `json:"outputs,omitempty"`
}

// DiffSummary counts the changes between two templates.
type DiffSummary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Outputs  int `json:"outputs"`
	Total    int `json:"total"`
}

// DiffResult is the JSON output from `devsecops diff`.
type DiffResult struct {
	Success bool         `json:"success"`
	Diff    TemplateDiff `json:"diff"`
	Summary DiffSummary  `json:"summary"`
}
