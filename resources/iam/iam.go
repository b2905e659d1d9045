// Package iam provides the AWS::IAM resource types used by the stack.
package iam

// Role is AWS::IAM::Role.
type Role struct {
	RoleName                 any   `json:"RoleName,omitempty"`
	Description              any   `json:"Description,omitempty"`
	AssumeRolePolicyDocument any   `json:"AssumeRolePolicyDocument,omitempty"`
	ManagedPolicyArns        []any `json:"ManagedPolicyArns,omitempty"`
	Policies                 []any `json:"Policies,omitempty"`
	Tags                     []any `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::IAM::Role".
func (Role) ResourceType() string { return "AWS::IAM::Role" }

// Role_Policy is an inline role policy.
type Role_Policy struct {
	PolicyName     any `json:"PolicyName,omitempty"`
	PolicyDocument any `json:"PolicyDocument,omitempty"`
}

// Policy is AWS::IAM::Policy, attached to roles after they exist.
type Policy struct {
	PolicyName     any   `json:"PolicyName,omitempty"`
	PolicyDocument any   `json:"PolicyDocument,omitempty"`
	Roles          []any `json:"Roles,omitempty"`
}

// ResourceType returns "AWS::IAM::Policy".
func (Policy) ResourceType() string { return "AWS::IAM::Policy" }
