// Package pipeline defines the Source → Build → Approve → Deploy-to-ECS
// release pipeline. A Definition renders the CodePipeline stage declarations
// for the template and drives local executions of the same stages.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/lex00/ecs-devsecops-go/internal/manifest"
	"github.com/lex00/ecs-devsecops-go/resources/codepipeline"
)

// Stage names, in execution order.
const (
	StageSource  = "Source"
	StageBuild   = "Build"
	StageApprove = "Approve"
	StageDeploy  = "Deploy-to-ECS"
)

// Action categories.
const (
	CategorySource   = "Source"
	CategoryBuild    = "Build"
	CategoryApproval = "Approval"
	CategoryDeploy   = "Deploy"
)

// Artifact names passed between stages.
const (
	SourceArtifact = "SourceArtifact"
	BuildArtifact  = "BuildArtifact"
)

// Action is the single action of a stage.
type Action struct {
	Name          string
	Category      string
	Owner         string
	Provider      string
	Version       string
	Inputs        []string
	Outputs       []string
	Configuration map[string]any
	// TimeoutMinutes bounds manual approvals; zero leaves the provider default.
	TimeoutMinutes int
}

// Stage is one pipeline stage.
type Stage struct {
	Name   string
	Action Action

	// actions counts the declarations found by FromStages.
	actions int
}

// Definition is the ordered list of stages.
type Definition struct {
	Stages []Stage
}

// Options binds a Definition to the declared resources. Values may be
// plain strings or intrinsics.
type Options struct {
	RepositoryName  any
	Branch          string
	ProjectName     any
	ClusterName     any
	ServiceName     any
	ApprovalMinutes int
	NotificationARN any
}

// New returns the four-stage release pipeline.
func New(o Options) Definition {
	approval := map[string]any{
		"CustomData": "Approve deployment of the scanned image to ECS",
	}
	if o.NotificationARN != nil && o.NotificationARN != "" {
		approval["NotificationArn"] = o.NotificationARN
	}

	return Definition{Stages: []Stage{
		{Name: StageSource, Action: Action{
			Name:     "CodeCommit_Source",
			Category: CategorySource,
			Owner:    "AWS",
			Provider: "CodeCommit",
			Version:  "1",
			Outputs:  []string{SourceArtifact},
			Configuration: map[string]any{
				"RepositoryName": o.RepositoryName,
				"BranchName":     o.Branch,
				// Commits reach the pipeline through the EventBridge rule.
				"PollForSourceChanges": false,
			},
		}},
		{Name: StageBuild, Action: Action{
			Name:          "CodeBuild",
			Category:      CategoryBuild,
			Owner:         "AWS",
			Provider:      "CodeBuild",
			Version:       "1",
			Inputs:        []string{SourceArtifact},
			Outputs:       []string{BuildArtifact},
			Configuration: map[string]any{"ProjectName": o.ProjectName},
		}},
		{Name: StageApprove, Action: Action{
			Name:           "Approve",
			Category:       CategoryApproval,
			Owner:          "AWS",
			Provider:       "Manual",
			Version:        "1",
			Configuration:  approval,
			TimeoutMinutes: o.ApprovalMinutes,
		}},
		{Name: StageDeploy, Action: Action{
			Name:     "DeployAction",
			Category: CategoryDeploy,
			Owner:    "AWS",
			Provider: "ECS",
			Version:  "1",
			Inputs:   []string{BuildArtifact},
			Configuration: map[string]any{
				"ClusterName": o.ClusterName,
				"ServiceName": o.ServiceName,
				"FileName":    manifest.FileName,
			},
		}},
	}}
}

// Stage returns the stage with the given name.
func (d Definition) Stage(name string) (Stage, bool) {
	for _, s := range d.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Declarations renders the stages as CodePipeline stage declarations.
func (d Definition) Declarations() []any {
	out := make([]any, 0, len(d.Stages))
	for _, s := range d.Stages {
		a := s.Action
		decl := codepipeline.Pipeline_ActionDeclaration{
			Name: a.Name,
			ActionTypeId: &codepipeline.Pipeline_ActionTypeId{
				Category: a.Category,
				Owner:    a.Owner,
				Provider: a.Provider,
				Version:  a.Version,
			},
			Configuration:    a.Configuration,
			RunOrder:         1,
			TimeoutInMinutes: a.TimeoutMinutes,
		}
		for _, in := range a.Inputs {
			decl.InputArtifacts = append(decl.InputArtifacts, codepipeline.Pipeline_InputArtifact{Name: in})
		}
		for _, o := range a.Outputs {
			decl.OutputArtifacts = append(decl.OutputArtifacts, codepipeline.Pipeline_OutputArtifact{Name: o})
		}
		out = append(out, codepipeline.Pipeline_StageDeclaration{
			Name:    s.Name,
			Actions: []any{decl},
		})
	}
	return out
}

// FromStages rebuilds a Definition from serialized stage declarations, as
// found under a pipeline's Stages property in a template. Only the first
// action of each stage is kept; Check reports stages with several.
func FromStages(stages []any) (Definition, error) {
	var d Definition
	for i, raw := range stages {
		sm, ok := raw.(map[string]any)
		if !ok {
			return Definition{}, fmt.Errorf("stage %d: not an object", i)
		}
		actions, _ := sm["Actions"].([]any)
		s := Stage{Name: str(sm["Name"]), actions: len(actions)}
		if len(actions) == 0 {
			return Definition{}, fmt.Errorf("stage %s: no actions", s.Name)
		}
		am, ok := actions[0].(map[string]any)
		if !ok {
			return Definition{}, fmt.Errorf("stage %s: action not an object", s.Name)
		}
		s.Action = Action{
			Name:           str(am["Name"]),
			Inputs:         artifactNames(am["InputArtifacts"]),
			Outputs:        artifactNames(am["OutputArtifacts"]),
			TimeoutMinutes: integer(am["TimeoutInMinutes"]),
		}
		if cfg, ok := am["Configuration"].(map[string]any); ok {
			s.Action.Configuration = cfg
		}
		if id, ok := am["ActionTypeId"].(map[string]any); ok {
			s.Action.Category = str(id["Category"])
			s.Action.Owner = str(id["Owner"])
			s.Action.Provider = str(id["Provider"])
			s.Action.Version = str(id["Version"])
		}
		d.Stages = append(d.Stages, s)
	}
	return d, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func integer(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func artifactNames(v any) []string {
	list, _ := v.([]any)
	var out []string
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, str(m["Name"]))
		}
	}
	return out
}

// ProblemKind groups structural problems of a Definition.
type ProblemKind int

const (
	// ProblemOrder is a stage out of place or with the wrong category.
	ProblemOrder ProblemKind = iota
	// ProblemApproval is a missing, duplicated or misplaced manual approval.
	ProblemApproval
	// ProblemArtifact is a deploy action not fed by the build output.
	ProblemArtifact
)

// Problem is one structural defect.
type Problem struct {
	Kind    ProblemKind
	Stage   string
	Message string
}

var expectedCategories = []string{CategorySource, CategoryBuild, CategoryApproval, CategoryDeploy}

// Check reports every structural defect: stages out of order, anything
// other than exactly one manual approval directly before deploy, and a
// deploy action that does not read imagedefinitions.json from the build
// output.
func (d Definition) Check() []Problem {
	var problems []Problem
	add := func(kind ProblemKind, stage, format string, args ...any) {
		problems = append(problems, Problem{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)})
	}

	var got []string
	for _, s := range d.Stages {
		got = append(got, s.Action.Category)
		if s.actions > 1 {
			add(ProblemOrder, s.Name, "stage %s must have exactly one action, has %d", s.Name, s.actions)
		}
	}
	if strings.Join(got, ",") != strings.Join(expectedCategories, ",") {
		add(ProblemOrder, "", "stage categories are [%s], want [%s]", strings.Join(got, ", "), strings.Join(expectedCategories, ", "))
	}

	approvals := 0
	deployIdx := -1
	lastApproval := -1
	for i, s := range d.Stages {
		switch s.Action.Category {
		case CategoryApproval:
			if s.Action.Provider == "Manual" {
				approvals++
				lastApproval = i
			}
		case CategoryDeploy:
			if deployIdx < 0 {
				deployIdx = i
			}
		}
	}
	switch {
	case approvals != 1:
		add(ProblemApproval, StageApprove, "want exactly one manual approval, found %d", approvals)
	case deployIdx >= 0 && lastApproval != deployIdx-1:
		add(ProblemApproval, StageApprove, "manual approval must directly precede the deploy stage")
	}

	var buildOutputs []string
	for _, s := range d.Stages {
		if s.Action.Category == CategoryBuild {
			buildOutputs = append(buildOutputs, s.Action.Outputs...)
		}
	}
	for _, s := range d.Stages {
		if s.Action.Category != CategoryDeploy {
			continue
		}
		if len(s.Action.Inputs) != 1 || !contains(buildOutputs, s.Action.Inputs[0]) {
			add(ProblemArtifact, s.Name, "deploy input %v is not the build output %v", s.Action.Inputs, buildOutputs)
		}
		if f := str(s.Action.Configuration["FileName"]); f != manifest.FileName {
			add(ProblemArtifact, s.Name, "deploy reads %q, want %q", f, manifest.FileName)
		}
	}
	return problems
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
