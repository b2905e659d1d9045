// Package codebuild provides AWS::CodeBuild resource types.
package codebuild

// Project is AWS::CodeBuild::Project.
type Project struct {
	Name             any                  `json:"Name,omitempty"`
	Description      any                  `json:"Description,omitempty"`
	ServiceRole      any                  `json:"ServiceRole,omitempty"`
	Source           *Project_Source      `json:"Source,omitempty"`
	Artifacts        *Project_Artifacts   `json:"Artifacts,omitempty"`
	Environment      *Project_Environment `json:"Environment,omitempty"`
	TimeoutInMinutes int                  `json:"TimeoutInMinutes,omitempty"`
	Tags             []any                `json:"Tags,omitempty"`
}

// ResourceType returns "AWS::CodeBuild::Project".
func (Project) ResourceType() string { return "AWS::CodeBuild::Project" }

// Project_Source says where the build reads its input.
type Project_Source struct {
	Type      any `json:"Type,omitempty"`
	BuildSpec any `json:"BuildSpec,omitempty"`
}

// Project_Artifacts says where the build writes its output.
type Project_Artifacts struct {
	Type any `json:"Type,omitempty"`
}

// Project_Environment is the build container.
type Project_Environment struct {
	Type                     any   `json:"Type,omitempty"`
	ComputeType              any   `json:"ComputeType,omitempty"`
	Image                    any   `json:"Image,omitempty"`
	PrivilegedMode           bool  `json:"PrivilegedMode,omitempty"`
	ImagePullCredentialsType any   `json:"ImagePullCredentialsType,omitempty"`
	EnvironmentVariables     []any `json:"EnvironmentVariables,omitempty"`
}

// Project_EnvironmentVariable is a build environment variable.
type Project_EnvironmentVariable struct {
	Name  any `json:"Name,omitempty"`
	Type  any `json:"Type,omitempty"`
	Value any `json:"Value,omitempty"`
}
