// Package codepipeline provides AWS::CodePipeline resource types.
package codepipeline

// Pipeline is AWS::CodePipeline::Pipeline.
type Pipeline struct {
	Name                     any                     `json:"Name,omitempty"`
	PipelineType             any                     `json:"PipelineType,omitempty"`
	ExecutionMode            any                     `json:"ExecutionMode,omitempty"`
	RoleArn                  any                     `json:"RoleArn,omitempty"`
	ArtifactStore            *Pipeline_ArtifactStore `json:"ArtifactStore,omitempty"`
	Stages                   []any                   `json:"Stages,omitempty"`
	RestartExecutionOnUpdate bool                    `json:"RestartExecutionOnUpdate,omitempty"`
	Tags                     []any                   `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::CodePipeline::Pipeline".
func (Pipeline) ResourceType() string { return "AWS::CodePipeline::Pipeline" }

// Pipeline_ArtifactStore is the bucket that carries artifacts between stages.
type Pipeline_ArtifactStore struct {
	Type     any `json:"Type,omitempty"`
	Location any `json:"Location,omitempty"`
}

// Pipeline_StageDeclaration is one pipeline stage.
type Pipeline_StageDeclaration struct {
	Name    any   `json:"Name,omitempty"`
	Actions []any `json:"Actions,omitempty"`
}

// Pipeline_ActionDeclaration is one action of a stage.
type Pipeline_ActionDeclaration struct {
	Name             any                    `json:"Name,omitempty"`
	ActionTypeId     *Pipeline_ActionTypeId `json:"ActionTypeId,omitempty"`
	Configuration    map[string]any         `json:"Configuration,omitempty"`
	InputArtifacts   []any                  `json:"InputArtifacts,omitempty"`
	OutputArtifacts  []any                  `json:"OutputArtifacts,omitempty"`
	RoleArn          any                    `json:"RoleArn,omitempty"`
	RunOrder         int                    `json:"RunOrder,omitempty"`
	TimeoutInMinutes int                    `json:"TimeoutInMinutes,omitempty"`
}

// Pipeline_ActionTypeId identifies the action provider.
type Pipeline_ActionTypeId struct {
	Category any `json:"Category,omitempty"`
	Owner    any `json:"Owner,omitempty"`
	Provider any `json:"Provider,omitempty"`
	Version  any `json:"Version,omitempty"`
}

// Pipeline_InputArtifact names an artifact an action consumes.
type Pipeline_InputArtifact struct {
	Name any `json:"Name,omitempty"`
}

// Pipeline_OutputArtifact names an artifact an action produces.
type Pipeline_OutputArtifact struct {
	Name any `json:"Name,omitempty"`
}
