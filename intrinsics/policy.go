package intrinsics

import (
	"encoding/json"
)

// PolicyVersion is the IAM policy language version.
const PolicyVersion = "2012-10-17"

// Json is shorthand for an inline JSON object.
type Json = map[string]any

// Any builds a []any from its arguments.
func Any(items ...any) []any {
	return items
}

// Strings builds a []any from string literals, for action and resource lists.
func Strings(items ...string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// PolicyDocument is an IAM policy document.
type PolicyDocument struct {
	Version   string `json:"Version,omitempty"`
	Statement []any  `json:"Statement"`
}

// NewPolicyDocument returns a document carrying the given statements.
func NewPolicyDocument(statements ...PolicyStatement) PolicyDocument {
	doc := PolicyDocument{Version: PolicyVersion}
	for _, s := range statements {
		doc.Statement = append(doc.Statement, s)
	}
	return doc
}

// PolicyStatement is a single statement of a policy document.
type PolicyStatement struct {
	Sid       string `json:"Sid,omitempty"`
	Effect    string `json:"Effect"`
	Principal any    `json:"Principal,omitempty"`
	Action    any    `json:"Action,omitempty"`
	Resource  any    `json:"Resource,omitempty"`
	Condition Json   `json:"Condition,omitempty"`
}

// Allow returns an Allow statement over actions on resources.
func Allow(actions []any, resources ...any) PolicyStatement {
	return PolicyStatement{Effect: "Allow", Action: actions, Resource: Any(resources...)}
}

// AssumeRolePolicy returns the trust policy letting the given service
// principals assume a role.
func AssumeRolePolicy(services ...string) PolicyDocument {
	principal := make(ServicePrincipal, len(services))
	for i, s := range services {
		principal[i] = s
	}
	return NewPolicyDocument(PolicyStatement{
		Effect:    "Allow",
		Principal: principal,
		Action:    Strings("sts:AssumeRole"),
	})
}

// ServicePrincipal serializes to {"Service": ...}.
type ServicePrincipal []any

// MarshalJSON implements json.Marshaler.
func (p ServicePrincipal) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(map[string]any{"Service": p[0]})
	}
	return json.Marshal(map[string]any{"Service": []any(p)})
}

// AWSPrincipal serializes to {"AWS": ...}.
type AWSPrincipal []any

// MarshalJSON implements json.Marshaler.
func (p AWSPrincipal) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(map[string]any{"AWS": p[0]})
	}
	return json.Marshal(map[string]any{"AWS": []any(p)})
}

// Condition operators used by the stack's policies.
const (
	StringEquals = "StringEquals"
	Bool         = "Bool"
)
