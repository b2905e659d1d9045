// Package buildspec models CodeBuild buildspec files, generates the
// DevSecOps build script and runs buildspecs locally with CodeBuild's phase
// semantics.
package buildspec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Version is the buildspec syntax version.
const Version = "0.2"

// Phase names in execution order.
const (
	PhaseInstall   = "install"
	PhasePreBuild  = "pre_build"
	PhaseBuild     = "build"
	PhasePostBuild = "post_build"
)

// Spec is a buildspec document.
type Spec struct {
	Version   string    `yaml:"version"`
	Env       *Env      `yaml:"env,omitempty"`
	Phases    Phases    `yaml:"phases"`
	Artifacts Artifacts `yaml:"artifacts,omitempty"`
}

// Env declares build environment variables.
type Env struct {
	Variables         map[string]string `yaml:"variables,omitempty"`
	ExportedVariables []string          `yaml:"exported-variables,omitempty"`
}

// Phases holds the command phases.
type Phases struct {
	Install   *Phase `yaml:"install,omitempty"`
	PreBuild  *Phase `yaml:"pre_build,omitempty"`
	Build     *Phase `yaml:"build,omitempty"`
	PostBuild *Phase `yaml:"post_build,omitempty"`
}

// Phase is an ordered list of shell commands.
type Phase struct {
	Commands []string `yaml:"commands"`
}

// Artifacts lists the files the build hands to the next stage.
type Artifacts struct {
	Files []string `yaml:"files,omitempty"`
}

// NamedPhase pairs a phase with its name.
type NamedPhase struct {
	Name  string
	Phase *Phase
}

// Ordered returns the declared phases in execution order.
func (s *Spec) Ordered() []NamedPhase {
	var out []NamedPhase
	for _, np := range []NamedPhase{
		{PhaseInstall, s.Phases.Install},
		{PhasePreBuild, s.Phases.PreBuild},
		{PhaseBuild, s.Phases.Build},
		{PhasePostBuild, s.Phases.PostBuild},
	} {
		if np.Phase != nil {
			out = append(out, np)
		}
	}
	return out
}

// Commands returns every command in execution order.
func (s *Spec) Commands() []string {
	var out []string
	for _, np := range s.Ordered() {
		out = append(out, np.Phase.Commands...)
	}
	return out
}

// Marshal renders the buildspec as YAML.
func (s *Spec) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// String renders the buildspec as YAML, for the CodeBuild BuildSpec property.
func (s *Spec) String() string {
	data, err := s.Marshal()
	if err != nil {
		return ""
	}
	return string(data)
}

// Parse reads a buildspec document.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing buildspec: %w", err)
	}
	if s.Version == "" {
		return nil, fmt.Errorf("parsing buildspec: missing version")
	}
	return &s, nil
}
