// Package events provides AWS::Events resource types.
package events

// Rule is AWS::Events::Rule.
type Rule struct {
	Name         any   `json:"Name,omitempty"`
	Description  any   `json:"Description,omitempty"`
	EventPattern any   `json:"EventPattern,omitempty"`
	State        any   `json:"State,omitempty"`
	Targets      []any `json:"Targets,omitempty"`
}

// ResourceType returns "AWS::Events::Rule".
func (Rule) ResourceType() string { return "AWS::Events::Rule" }

// Rule_Target is a rule target.
type Rule_Target struct {
	Arn     any `json:"Arn,omitempty"`
	Id      any `json:"Id,omitempty"`
	RoleArn any `json:"RoleArn,omitempty"`
}
