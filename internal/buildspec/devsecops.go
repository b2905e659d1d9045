package buildspec

import (
	"fmt"
	"strings"

	"github.com/lex00/ecs-devsecops-go/internal/manifest"
)

// Environment variables the build reads.
const (
	EnvRepositoryURI   = "ECR_REPOSITORY_URI"
	EnvClusterName     = "CLUSTER_NAME"
	EnvImageTag        = "IMAGE_TAG"
	EnvSourceVersion   = "CODEBUILD_RESOLVED_SOURCE_VERSION"
	EnvBuildSucceeding = "CODEBUILD_BUILD_SUCCEEDING"
	EnvRegion          = "AWS_DEFAULT_REGION"
)

// ScanScript is where the build saves the downloaded scanner.
const ScanScript = "inline_scan.sh"

// Options parameterize the DevSecOps build.
type Options struct {
	ContainerName  string
	Dockerfile     string
	HadolintImage  string
	HadolintConfig string
	ScannerURL     string
}

// DevSecOps returns the lint, build, push, scan and manifest buildspec.
func DevSecOps(o Options) *Spec {
	imageLatest := "$" + EnvRepositoryURI + ":latest"
	imageTagged := "$" + EnvRepositoryURI + ":$" + EnvImageTag

	return &Spec{
		Version: Version,
		Phases: Phases{
			PreBuild: &Phase{Commands: []string{
				"env",
				fmt.Sprintf("export %s=$(echo $%s | cut -c 1-7)", EnvImageTag, EnvSourceVersion),
			}},
			Build: &Phase{Commands: []string{
				`echo "Dockerfile lint stage"`,
				"docker pull " + o.HadolintImage,
				fmt.Sprintf("docker run --rm -i -v ${PWD}/%s:/.hadolint.yaml %s hadolint -f json - < ./%s",
					o.HadolintConfig, o.HadolintImage, o.Dockerfile),
				`echo "Dockerfile lint stage passed"`,
				"echo Logging in to Amazon ECR...",
				fmt.Sprintf("aws ecr get-login-password --region $%s | docker login --username AWS --password-stdin ${%s%%%%/*}",
					EnvRegion, EnvRepositoryURI),
				fmt.Sprintf("docker build -f %s -t %s .", o.Dockerfile, imageLatest),
				fmt.Sprintf("docker tag %s %s", imageLatest, imageTagged),
				"docker history --no-trunc " + imageTagged,
			}},
			PostBuild: &Phase{Commands: []string{
				fmt.Sprintf(`if [ "$%s" = "0" ]; then echo "build failed, not pushing"; exit 1; fi`, EnvBuildSucceeding),
				"echo Build completed on `date`",
				"docker push " + imageLatest,
				"docker push " + imageTagged,
				`echo "Vulnerability scan, post_build fails if the image has vulnerabilities"`,
				"export COMPOSE_INTERACTIVE_NO_CLI=1",
				// Download to a file first: a failed download piped into bash
				// would run an empty script and pass the gate.
				fmt.Sprintf("curl -sSfL %s -o %s && bash %s -f %s", o.ScannerURL, ScanScript, ScanScript, imageTagged),
				"echo Writing image definitions file...",
				manifest.WriteCommand(o.ContainerName),
				"cat " + manifest.FileName,
			}},
		},
		Artifacts: Artifacts{Files: []string{manifest.FileName}},
	}
}

// Gate is the role a command plays in the build.
type Gate int

const (
	// GateNone is diagnostic output; its failure still fails the phase.
	GateNone Gate = iota
	GateRevision
	GateLint
	GateLogin
	GateBuild
	GateTag
	GateGuard
	GatePush
	GateScan
	GateManifest
)

var gateNames = map[Gate]string{
	GateNone:     "diagnostic",
	GateRevision: "revision",
	GateLint:     "lint",
	GateLogin:    "login",
	GateBuild:    "build",
	GateTag:      "tag",
	GateGuard:    "guard",
	GatePush:     "push",
	GateScan:     "scan",
	GateManifest: "manifest",
}

func (g Gate) String() string {
	if name, ok := gateNames[g]; ok {
		return name
	}
	return fmt.Sprintf("gate(%d)", int(g))
}

// Classify tells which gate a command is.
func Classify(cmd string) Gate {
	c := strings.TrimSpace(cmd)
	switch {
	case strings.HasPrefix(c, "docker run") && strings.Contains(c, "hadolint"):
		return GateLint
	case strings.Contains(c, EnvBuildSucceeding):
		return GateGuard
	case strings.Contains(c, EnvImageTag+"=") && strings.Contains(c, EnvSourceVersion):
		return GateRevision
	case strings.Contains(c, "ecr get-login"):
		return GateLogin
	case strings.HasPrefix(c, "docker build"):
		return GateBuild
	case strings.HasPrefix(c, "docker tag"):
		return GateTag
	case strings.HasPrefix(c, "docker push"):
		return GatePush
	case strings.Contains(c, "inline_scan"), strings.HasPrefix(c, "curl") && strings.Contains(c, "| bash -s"):
		return GateScan
	}
	if _, _, ok := manifest.ParseWriteCommand(c); ok {
		return GateManifest
	}
	return GateNone
}

// PipesToShell reports a command that pipes a download straight into a
// shell. Such a command exits 0 when the download fails.
func PipesToShell(cmd string) bool {
	c := strings.TrimSpace(cmd)
	if !strings.HasPrefix(c, "curl") && !strings.HasPrefix(c, "wget") {
		return false
	}
	for _, sh := range []string{"| bash", "| sh", "|bash", "|sh"} {
		if strings.Contains(c, sh) {
			return true
		}
	}
	return false
}

// GateStep locates a gate command within a buildspec.
type GateStep struct {
	Phase string
	Index int
	Gate  Gate
}

// Gates returns the gate commands of a buildspec in execution order,
// skipping diagnostics.
func (s *Spec) Gates() []GateStep {
	var out []GateStep
	for _, np := range s.Ordered() {
		for i, cmd := range np.Phase.Commands {
			if g := Classify(cmd); g != GateNone {
				out = append(out, GateStep{Phase: np.Name, Index: i, Gate: g})
			}
		}
	}
	return out
}
