// Package logs provides AWS::Logs resource types.
package logs

// LogGroup is AWS::Logs::LogGroup.
type LogGroup struct {
	LogGroupName    any   `json:"LogGroupName,omitempty"`
	RetentionInDays int   `json:"RetentionInDays,omitempty"`
	Tags            []any `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::Logs::LogGroup".
func (LogGroup) ResourceType() string { return "AWS::Logs::LogGroup" }
