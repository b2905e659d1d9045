// Package lint checks synthesized templates for DevSecOps invariants the
// CloudFormation schema cannot express.
//
// Rules:
//
//	DSO001: The task execution role may use exactly the registry pull and log actions
//	DSO002: Only ecs-tasks.amazonaws.com may assume the task execution role
//	DSO003: The manifest the build writes names the task's container
//	DSO004: The deploy stage reads imagedefinitions.json from the build output
//	DSO005: Stages run Source, Build, one manual approval, Deploy
//	DSO006: The buildspec lints before pushing and scans after pushing
//	DSO007: The public listener serves plain HTTP
//	DSO008: The image repository outlives the stack
package lint

import (
	"fmt"
	"sort"
	"strings"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/buildspec"
	"github.com/lex00/ecs-devsecops-go/internal/manifest"
	"github.com/lex00/ecs-devsecops-go/internal/pipeline"
	"github.com/lex00/ecs-devsecops-go/internal/topology"
)

const (
	typeTaskDefinition = "AWS::ECS::TaskDefinition"
	typeRole           = "AWS::IAM::Role"
	typePolicy         = "AWS::IAM::Policy"
	typeProject        = "AWS::CodeBuild::Project"
	typePipeline       = "AWS::CodePipeline::Pipeline"
	typeListener       = "AWS::ElasticLoadBalancingV2::Listener"
	typeLoadBalancer   = "AWS::ElasticLoadBalancingV2::LoadBalancer"
	typeECRRepository  = "AWS::ECR::Repository"
)

const ecsTasksPrincipal = "ecs-tasks.amazonaws.com"

func finding(resource string, sev Severity, msg, suggestion string) Finding {
	return Finding{
		Issue:    Issue{Message: msg, Suggestion: suggestion, Severity: sev},
		Resource: resource,
	}
}

// ExecutionPolicyActions checks the actions granted to task execution roles.
type ExecutionPolicyActions struct{}

func (ExecutionPolicyActions) ID() string { return "DSO001" }
func (ExecutionPolicyActions) Description() string {
	return "The task execution role may use exactly the registry pull and log actions"
}

func (r ExecutionPolicyActions) Check(t *devsecops.Template) []Finding {
	var out []Finding
	for _, role := range executionRoles(t, &out) {
		rd := t.Resources[role]
		if arns := asList(rd.Properties["ManagedPolicyArns"]); len(arns) > 0 {
			out = append(out, finding(role, SeverityError,
				"execution role has managed policies attached",
				"grant the execution role only an explicit statement"))
		}

		granted := rolePolicyActions(t, role)
		missing, extra := diffSets(topology.ExecutionActions, granted)
		if len(missing) > 0 {
			out = append(out, finding(role, SeverityError,
				fmt.Sprintf("execution role lacks %s", strings.Join(missing, ", ")),
				"tasks cannot pull their image or ship logs without these actions"))
		}
		if len(extra) > 0 {
			out = append(out, finding(role, SeverityError,
				fmt.Sprintf("execution role grants unexpected actions %s", strings.Join(extra, ", ")),
				"move application permissions to the task role"))
		}
	}
	return out
}

// ExecutionRoleTrust checks who may assume task execution roles.
type ExecutionRoleTrust struct{}

func (ExecutionRoleTrust) ID() string { return "DSO002" }
func (ExecutionRoleTrust) Description() string {
	return "Only ecs-tasks.amazonaws.com may assume the task execution role"
}

func (r ExecutionRoleTrust) Check(t *devsecops.Template) []Finding {
	var out []Finding
	for _, role := range executionRoles(t, nil) {
		stmts := statements(t.Resources[role].Properties["AssumeRolePolicyDocument"])
		if len(stmts) == 0 {
			out = append(out, finding(role, SeverityError, "execution role has no trust policy", ""))
			continue
		}
		for _, s := range stmts {
			if s["Effect"] != "Allow" {
				continue
			}
			p, _ := s["Principal"].(map[string]any)
			services := asStrings(p["Service"])
			if len(p) != 1 || len(services) != 1 || services[0] != ecsTasksPrincipal {
				out = append(out, finding(role, SeverityError,
					fmt.Sprintf("execution role trusts %v", s["Principal"]),
					"trust only the "+ecsTasksPrincipal+" service principal"))
			}
		}
	}
	return out
}

// ManifestContainerName checks the manifest written by each build.
type ManifestContainerName struct{}

func (ManifestContainerName) ID() string { return "DSO003" }
func (ManifestContainerName) Description() string {
	return "The manifest the build writes names the task's container"
}

func (r ManifestContainerName) Check(t *devsecops.Template) []Finding {
	containers := containerNames(t)
	var out []Finding
	for _, id := range idsOfType(t, typeProject) {
		spec, ferr := projectBuildSpec(t, id)
		if ferr != nil {
			out = append(out, *ferr)
			continue
		}
		if spec == nil {
			continue
		}
		var names []string
		for _, cmd := range spec.Commands() {
			if name, file, ok := manifest.ParseWriteCommand(cmd); ok && file == manifest.FileName {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			out = append(out, finding(id, SeverityError,
				"buildspec never writes "+manifest.FileName,
				"write the image definitions file in post_build"))
			continue
		}
		for _, n := range names {
			if !containers[n] {
				out = append(out, finding(id, SeverityError,
					fmt.Sprintf("manifest names container %q, which no task definition declares", n),
					"use the task definition's container name"))
			}
		}
	}
	return out
}

// DeployArtifact checks what the deploy stage reads.
type DeployArtifact struct{}

func (DeployArtifact) ID() string { return "DSO004" }
func (DeployArtifact) Description() string {
	return "The deploy stage reads imagedefinitions.json from the build output"
}

func (r DeployArtifact) Check(t *devsecops.Template) []Finding {
	return pipelineProblems(t, false, pipeline.ProblemArtifact)
}

// StageOrder checks the order of pipeline stages.
type StageOrder struct{}

func (StageOrder) ID() string { return "DSO005" }
func (StageOrder) Description() string {
	return "Stages run Source, Build, one manual approval, Deploy"
}

func (r StageOrder) Check(t *devsecops.Template) []Finding {
	return pipelineProblems(t, true, pipeline.ProblemOrder, pipeline.ProblemApproval)
}

func pipelineProblems(t *devsecops.Template, reportDecode bool, kinds ...pipeline.ProblemKind) []Finding {
	want := make(map[pipeline.ProblemKind]bool)
	for _, k := range kinds {
		want[k] = true
	}
	var out []Finding
	for _, id := range idsOfType(t, typePipeline) {
		def, err := pipeline.FromStages(asList(t.Resources[id].Properties["Stages"]))
		if err != nil {
			if reportDecode {
				out = append(out, finding(id, SeverityError, "unreadable stages: "+err.Error(), ""))
			}
			continue
		}
		for _, p := range def.Check() {
			if want[p.Kind] {
				out = append(out, finding(id, SeverityError, p.Message, ""))
			}
		}
	}
	return out
}

// BuildGateOrder checks the order of the security gates in each buildspec.
type BuildGateOrder struct{}

func (BuildGateOrder) ID() string { return "DSO006" }
func (BuildGateOrder) Description() string {
	return "The buildspec lints before pushing and scans after pushing"
}

func (r BuildGateOrder) Check(t *devsecops.Template) []Finding {
	var out []Finding
	for _, id := range idsOfType(t, typeProject) {
		spec, ferr := projectBuildSpec(t, id)
		if ferr != nil || spec == nil {
			continue
		}
		for _, msg := range gateProblems(spec.Gates()) {
			out = append(out, finding(id, SeverityError, msg, ""))
		}
		for _, cmd := range spec.Commands() {
			if buildspec.Classify(cmd) == buildspec.GateScan && buildspec.PipesToShell(cmd) {
				out = append(out, finding(id, SeverityError,
					"vulnerability scan pipes its download into a shell and passes when the download fails",
					"save the scanner with curl -f to a file, then run the file"))
			}
		}
	}
	return out
}

func gateProblems(steps []buildspec.GateStep) []string {
	first := make(map[buildspec.Gate]int)
	last := make(map[buildspec.Gate]int)
	phase := make(map[buildspec.Gate]string)
	for i, s := range steps {
		if _, ok := first[s.Gate]; !ok {
			first[s.Gate] = i
			phase[s.Gate] = s.Phase
		}
		last[s.Gate] = i
	}

	var problems []string
	push, hasPush := first[buildspec.GatePush]
	if !hasPush {
		return []string{"buildspec never pushes an image"}
	}
	if lint, ok := first[buildspec.GateLint]; !ok || lint > push {
		problems = append(problems, "Dockerfile lint must run before the first push")
	}
	if guard, ok := first[buildspec.GateGuard]; !ok || guard > push || phase[buildspec.GateGuard] != buildspec.PhasePostBuild {
		problems = append(problems, "post_build must check CODEBUILD_BUILD_SUCCEEDING before pushing")
	}
	scan, hasScan := first[buildspec.GateScan]
	if !hasScan || scan < last[buildspec.GatePush] {
		problems = append(problems, "vulnerability scan must run after the image is pushed")
	}
	if m, ok := first[buildspec.GateManifest]; !ok || (hasScan && m < scan) {
		problems = append(problems, "image definitions must be written after the scan")
	}
	return problems
}

// PlainHTTPListener reports unencrypted public listeners.
type PlainHTTPListener struct{}

func (PlainHTTPListener) ID() string { return "DSO007" }
func (PlainHTTPListener) Description() string {
	return "The public listener serves plain HTTP"
}

func (r PlainHTTPListener) Check(t *devsecops.Template) []Finding {
	var out []Finding
	for _, id := range idsOfType(t, typeListener) {
		props := t.Resources[id].Properties
		if props["Protocol"] != "HTTP" {
			continue
		}
		lb := refTarget(props["LoadBalancerArn"])
		lbDef, ok := t.Resources[lb]
		if !ok || lbDef.Type != typeLoadBalancer || lbDef.Properties["Scheme"] != "internet-facing" {
			continue
		}
		out = append(out, finding(id, SeverityInfo,
			fmt.Sprintf("internet-facing listener on port %v serves plain HTTP", props["Port"]),
			"add an HTTPS listener with an ACM certificate"))
	}
	return out
}

// RegistryRetained checks the deletion policy of image repositories.
type RegistryRetained struct{}

func (RegistryRetained) ID() string { return "DSO008" }
func (RegistryRetained) Description() string {
	return "The image repository outlives the stack"
}

func (r RegistryRetained) Check(t *devsecops.Template) []Finding {
	var out []Finding
	for _, id := range idsOfType(t, typeECRRepository) {
		if t.Resources[id].DeletionPolicy != "Retain" {
			out = append(out, finding(id, SeverityWarning,
				"image repository is deleted with the stack",
				"set DeletionPolicy Retain to keep pushed images"))
		}
	}
	return out
}

// =============================================================================
// Template helpers
// =============================================================================

func idsOfType(t *devsecops.Template, typ string) []string {
	var ids []string
	for id, r := range t.Resources {
		if r.Type == typ {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// executionRoles returns the roles task definitions use as execution roles.
// Task definitions without one are reported into out when it is non-nil.
func executionRoles(t *devsecops.Template, out *[]Finding) []string {
	seen := make(map[string]bool)
	var roles []string
	for _, id := range idsOfType(t, typeTaskDefinition) {
		role := refTarget(t.Resources[id].Properties["ExecutionRoleArn"])
		if _, ok := t.Resources[role]; !ok || t.Resources[role].Type != typeRole {
			if out != nil {
				*out = append(*out, finding(id, SeverityError,
					"task definition has no execution role declared in the template", ""))
			}
			continue
		}
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}

// rolePolicyActions collects the actions granted to a role by its inline
// policies and by AWS::IAM::Policy resources attached to it.
func rolePolicyActions(t *devsecops.Template, role string) []string {
	var docs []any
	for _, p := range asList(t.Resources[role].Properties["Policies"]) {
		if m, ok := p.(map[string]any); ok {
			docs = append(docs, m["PolicyDocument"])
		}
	}
	for _, id := range idsOfType(t, typePolicy) {
		props := t.Resources[id].Properties
		for _, r := range asList(props["Roles"]) {
			if refTarget(r) == role {
				docs = append(docs, props["PolicyDocument"])
			}
		}
	}

	var actions []string
	for _, doc := range docs {
		for _, s := range statements(doc) {
			if s["Effect"] == "Allow" {
				actions = append(actions, asStrings(s["Action"])...)
			}
		}
	}
	return actions
}

func containerNames(t *devsecops.Template) map[string]bool {
	names := make(map[string]bool)
	for _, id := range idsOfType(t, typeTaskDefinition) {
		for _, c := range asList(t.Resources[id].Properties["ContainerDefinitions"]) {
			if m, ok := c.(map[string]any); ok {
				if n, ok := m["Name"].(string); ok {
					names[n] = true
				}
			}
		}
	}
	return names
}

// projectBuildSpec parses a project's inline buildspec. Projects reading
// the buildspec from the source return nil.
func projectBuildSpec(t *devsecops.Template, id string) (*buildspec.Spec, *Finding) {
	src, _ := t.Resources[id].Properties["Source"].(map[string]any)
	body, ok := src["BuildSpec"].(string)
	if !ok || !strings.Contains(body, "phases") {
		return nil, nil
	}
	spec, err := buildspec.Parse([]byte(body))
	if err != nil {
		f := finding(id, SeverityError, "unreadable buildspec: "+err.Error(), "")
		return nil, &f
	}
	return spec, nil
}

func statements(doc any) []map[string]any {
	m, _ := doc.(map[string]any)
	var out []map[string]any
	switch s := m["Statement"].(type) {
	case []any:
		for _, item := range s {
			if sm, ok := item.(map[string]any); ok {
				out = append(out, sm)
			}
		}
	case map[string]any:
		out = append(out, s)
	}
	return out
}

// refTarget returns the logical ID a Ref or Fn::GetAtt points at.
func refTarget(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := m["Ref"].(string); ok {
		return s
	}
	switch g := m["Fn::GetAtt"].(type) {
	case []any:
		if len(g) > 0 {
			s, _ := g[0].(string)
			return s
		}
	case string:
		name, _, _ := strings.Cut(g, ".")
		return name
	}
	return ""
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func asStrings(v any) []string {
	switch s := v.(type) {
	case string:
		return []string{s}
	case []any:
		var out []string
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case []string:
		return s
	}
	return nil
}

// diffSets returns what want has that got lacks, and the reverse.
func diffSets(want, got []string) (missing, extra []string) {
	w := make(map[string]bool, len(want))
	for _, s := range want {
		w[s] = true
	}
	g := make(map[string]bool, len(got))
	for _, s := range got {
		g[s] = true
	}
	for _, s := range want {
		if !g[s] {
			missing = append(missing, s)
		}
	}
	for s := range g {
		if !w[s] {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return missing, extra
}
