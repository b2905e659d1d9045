package lint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	devsecops "github.com/lex00/ecs-devsecops-go"
	"github.com/lex00/ecs-devsecops-go/internal/buildspec"
	"github.com/lex00/ecs-devsecops-go/internal/config"
	"github.com/lex00/ecs-devsecops-go/internal/network"
	"github.com/lex00/ecs-devsecops-go/internal/template"
	"github.com/lex00/ecs-devsecops-go/internal/topology"
)

// synthTemplate returns a freshly synthesized template, as read back from
// its JSON form.
func synthTemplate(t *testing.T) *devsecops.Template {
	t.Helper()
	cfg, err := config.Load("", map[string]string{"vpcId": "vpc-0123abcd"})
	require.NoError(t, err)
	vpc := &network.VPC{ID: "vpc-0123abcd", CIDR: "10.0.0.0/16", Subnets: []network.Subnet{
		{ID: "subnet-pub-a", AvailabilityZone: "us-east-1a", Public: true},
		{ID: "subnet-pub-b", AvailabilityZone: "us-east-1b", Public: true},
		{ID: "subnet-priv-a", AvailabilityZone: "us-east-1a"},
		{ID: "subnet-priv-b", AvailabilityZone: "us-east-1b"},
	}}
	topo, err := topology.Build(cfg, vpc)
	require.NoError(t, err)
	tmpl, _, err := topo.Stack.Template()
	require.NoError(t, err)

	data, err := template.ToJSON(tmpl)
	require.NoError(t, err)
	parsed, err := template.Parse(data)
	require.NoError(t, err)
	return parsed
}

func rules(result Result) []string {
	var out []string
	for _, f := range result.Issues {
		out = append(out, f.Rule)
	}
	return out
}

func obj(v any) map[string]any { return v.(map[string]any) }
func list(v any) []any         { return v.([]any) }

func TestLintTemplate_Synthesized(t *testing.T) {
	result := LintTemplate(synthTemplate(t), Options{})
	assert.True(t, result.Success)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "DSO007", result.Issues[0].Rule)
	assert.Equal(t, SeverityInfo, result.Issues[0].Severity)
	assert.Equal(t, topology.Listener, result.Issues[0].Resource)
}

func TestExecutionPolicyActions(t *testing.T) {
	t.Run("extra action", func(t *testing.T) {
		tmpl := synthTemplate(t)
		stmt := obj(list(obj(tmpl.Resources[topology.ExecutionRolePolicy].Properties["PolicyDocument"])["Statement"])[0])
		stmt["Action"] = append(list(stmt["Action"]), "s3:GetObject")

		result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO001"}})
		assert.False(t, result.Success)
		require.Len(t, result.Issues, 1)
		assert.Contains(t, result.Issues[0].Message, "s3:GetObject")
		assert.Equal(t, topology.ExecutionRole, result.Issues[0].Resource)
	})

	t.Run("missing action", func(t *testing.T) {
		tmpl := synthTemplate(t)
		stmt := obj(list(obj(tmpl.Resources[topology.ExecutionRolePolicy].Properties["PolicyDocument"])["Statement"])[0])
		stmt["Action"] = list(stmt["Action"])[:5]

		result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO001"}})
		require.Len(t, result.Issues, 1)
		assert.Contains(t, result.Issues[0].Message, "logs:PutLogEvents")
	})

	t.Run("managed policy", func(t *testing.T) {
		tmpl := synthTemplate(t)
		tmpl.Resources[topology.ExecutionRole].Properties["ManagedPolicyArns"] = []any{"arn:aws:iam::aws:policy/AdministratorAccess"}

		result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO001"}})
		assert.Equal(t, []string{"DSO001"}, rules(result))
	})
}

func TestExecutionRoleTrust(t *testing.T) {
	tmpl := synthTemplate(t)
	doc := obj(tmpl.Resources[topology.ExecutionRole].Properties["AssumeRolePolicyDocument"])
	obj(list(doc["Statement"])[0])["Principal"] = map[string]any{"Service": []any{"ecs-tasks.amazonaws.com", "ec2.amazonaws.com"}}

	result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO002"}})
	assert.Equal(t, []string{"DSO002"}, rules(result))
}

func TestManifestContainerName(t *testing.T) {
	tmpl := synthTemplate(t)
	container := obj(list(tmpl.Resources[topology.TaskDefinition].Properties["ContainerDefinitions"])[0])
	container["Name"] = "renamed"

	result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO003"}})
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0].Message, "cs-cdk-devsecops-container")
	assert.Equal(t, topology.BuildProject, result.Issues[0].Resource)
}

func TestDeployArtifact(t *testing.T) {
	tmpl := synthTemplate(t)
	stages := list(tmpl.Resources[topology.Pipeline].Properties["Stages"])
	deploy := obj(list(obj(stages[3])["Actions"])[0])
	deploy["InputArtifacts"] = []any{map[string]any{"Name": "SourceArtifact"}}

	result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO004", "DSO005"}})
	assert.Equal(t, []string{"DSO004"}, rules(result))
}

func TestStageOrder(t *testing.T) {
	tmpl := synthTemplate(t)
	stages := list(tmpl.Resources[topology.Pipeline].Properties["Stages"])
	stages[2], stages[3] = stages[3], stages[2]

	result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO004", "DSO005"}})
	assert.Equal(t, []string{"DSO005", "DSO005"}, rules(result))
}

func TestBuildGateOrder(t *testing.T) {
	tmpl := synthTemplate(t)
	source := obj(tmpl.Resources[topology.BuildProject].Properties["Source"])
	spec, err := buildspec.Parse([]byte(source["BuildSpec"].(string)))
	require.NoError(t, err)

	// Drop the lint gate and move the scan ahead of the pushes.
	var build []string
	for _, c := range spec.Phases.Build.Commands {
		if buildspec.Classify(c) != buildspec.GateLint {
			build = append(build, c)
		}
	}
	spec.Phases.Build.Commands = build
	var post, scan []string
	for _, c := range spec.Phases.PostBuild.Commands {
		if buildspec.Classify(c) == buildspec.GateScan {
			scan = append(scan, c)
			continue
		}
		post = append(post, c)
	}
	spec.Phases.PostBuild.Commands = append(scan, post...)
	source["BuildSpec"] = spec.String()

	result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO006"}})
	var messages []string
	for _, f := range result.Issues {
		messages = append(messages, f.Message)
	}
	assert.ElementsMatch(t, []string{
		"Dockerfile lint must run before the first push",
		"vulnerability scan must run after the image is pushed",
	}, messages)
}

func TestBuildGateOrder_PipedScanner(t *testing.T) {
	tmpl := synthTemplate(t)
	source := obj(tmpl.Resources[topology.BuildProject].Properties["Source"])
	spec, err := buildspec.Parse([]byte(source["BuildSpec"].(string)))
	require.NoError(t, err)

	result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO006"}})
	assert.Empty(t, result.Issues)

	for i, c := range spec.Phases.PostBuild.Commands {
		if buildspec.Classify(c) == buildspec.GateScan {
			spec.Phases.PostBuild.Commands[i] = "curl -s https://example.com/inline_scan.sh | bash -s -- -f $ECR_REPOSITORY_URI:$IMAGE_TAG"
		}
	}
	source["BuildSpec"] = spec.String()

	result = LintTemplate(tmpl, Options{EnabledRules: []string{"DSO006"}})
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0].Message, "passes when the download fails")
	assert.False(t, result.Success)
}

func TestGateProblems_ManifestBeforeScan(t *testing.T) {
	opts := buildspec.Options{
		ContainerName:  "web",
		Dockerfile:     "Dockerfile",
		HadolintImage:  "hadolint/hadolint:v1.16.2",
		HadolintConfig: ".hadolint.yaml",
		ScannerURL:     "https://example.com/inline_scan.sh",
	}
	assert.Empty(t, gateProblems(buildspec.DevSecOps(opts).Gates()))

	spec := buildspec.DevSecOps(opts)
	cmds := spec.Phases.PostBuild.Commands
	var scanIdx, manifestIdx int
	for i, c := range cmds {
		switch buildspec.Classify(c) {
		case buildspec.GateScan:
			scanIdx = i
		case buildspec.GateManifest:
			manifestIdx = i
		}
	}
	cmds[scanIdx], cmds[manifestIdx] = cmds[manifestIdx], cmds[scanIdx]

	assert.Equal(t, []string{"image definitions must be written after the scan"}, gateProblems(spec.Gates()))
}

func TestRegistryRetained(t *testing.T) {
	tmpl := synthTemplate(t)
	repo := tmpl.Resources[topology.ImageRepository]
	repo.DeletionPolicy = ""
	tmpl.Resources[topology.ImageRepository] = repo

	result := LintTemplate(tmpl, Options{EnabledRules: []string{"DSO008"}})
	assert.False(t, result.Success)
	assert.Equal(t, []string{"DSO008"}, rules(result))
	assert.Equal(t, SeverityWarning, result.Issues[0].Severity)
}

func TestGetRules(t *testing.T) {
	assert.Len(t, getRules(Options{}), len(AllRules()))
	assert.Len(t, getRules(Options{EnabledRules: []string{"DSO001", "DSO002"}}), 2)
	assert.Len(t, getRules(Options{DisabledRules: []string{"DSO007"}}), len(AllRules())-1)

	result := LintTemplate(synthTemplate(t), Options{DisabledRules: []string{"DSO007"}})
	assert.Empty(t, result.Issues)
}

func TestLintFile(t *testing.T) {
	tmpl := synthTemplate(t)
	data, err := template.ToYAML(tmpl)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "template.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	result, err := LintFile(path, Options{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, path, result.Issues[0].File)

	_, err = LintFile(filepath.Join(t.TempDir(), "missing.json"), Options{})
	assert.Error(t, err)
}
