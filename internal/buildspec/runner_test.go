package buildspec

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/ecs-devsecops-go/internal/manifest"
)

const repoURI = "123456789012.dkr.ecr.us-east-1.amazonaws.com/cdk-ecs-devsecops"

func runSimulated(t *testing.T, fail map[Gate]int) (*BuildResult, *SimulatedExecutor, error) {
	t.Helper()
	dir := t.TempDir()
	sim := &SimulatedExecutor{Dir: dir, Fail: fail}
	r := &Runner{
		Exec: sim,
		Dir:  dir,
		Env: map[string]string{
			EnvRepositoryURI: repoURI,
			EnvSourceVersion: "abcdef1234567890abcdef1234567890abcdef12",
		},
	}
	res, err := r.Run(context.Background(), DevSecOps(testOptions()))
	return res, sim, err
}

func TestRunner_Success(t *testing.T) {
	res, sim, err := runSimulated(t, nil)
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, manifest.FileName, filepath.Base(res.Artifacts[0]))

	e, err := manifest.Read(res.Artifacts[0], "cs-cdk-devsecops-container")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(e.ImageURI, ":abcdef1"))
	assert.Equal(t, repoURI+":abcdef1", e.ImageURI)
	assert.NotEmpty(t, sim.Manifest())
}

func TestRunner_LintFailureNeverPushes(t *testing.T) {
	res, sim, err := runSimulated(t, map[Gate]int{GateLint: 1})
	require.ErrorIs(t, err, ErrPhaseFailed)
	assert.False(t, res.Succeeded)
	assert.Empty(t, res.Artifacts)

	build, _ := res.Phase(PhaseBuild)
	assert.Equal(t, StatusFailed, build.Status)
	post, _ := res.Phase(PhasePostBuild)
	assert.Equal(t, StatusFailed, post.Status, "the guard fails post_build")
	assert.False(t, sim.Ran(GateBuild))
	assert.True(t, sim.Ran(GateGuard))
	assert.False(t, sim.Ran(GatePush))
	assert.Nil(t, sim.Manifest())
}

func TestRunner_ScanFailureFailsBuild(t *testing.T) {
	res, sim, err := runSimulated(t, map[Gate]int{GateScan: 1})
	require.ErrorIs(t, err, ErrPhaseFailed)
	assert.False(t, res.Succeeded)
	assert.True(t, sim.Ran(GatePush))
	assert.False(t, sim.Ran(GateManifest))
	assert.Empty(t, res.Artifacts)
}

func TestRunner_PreBuildFailureSkipsRest(t *testing.T) {
	res, sim, err := runSimulated(t, map[Gate]int{GateRevision: 2})
	require.ErrorIs(t, err, ErrPhaseFailed)

	build, _ := res.Phase(PhaseBuild)
	post, _ := res.Phase(PhasePostBuild)
	assert.Equal(t, StatusSkipped, build.Status)
	assert.Equal(t, StatusSkipped, post.Status)
	assert.False(t, sim.Ran(GateLint))
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Exec: &SimulatedExecutor{}}
	_, err := r.Run(ctx, DevSecOps(testOptions()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Exec: &SimulatedExecutor{}, Dir: dir}
	spec := &Spec{
		Version:   Version,
		Phases:    Phases{Build: &Phase{Commands: []string{"true"}}},
		Artifacts: Artifacts{Files: []string{"out.txt"}},
	}
	_, err := r.Run(context.Background(), spec)
	assert.ErrorIs(t, err, ErrPhaseFailed)
}

func TestShellExecutor_ExportsPersist(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	dir := t.TempDir()
	r := &Runner{Exec: &ShellExecutor{Dir: dir}, Dir: dir, Env: map[string]string{"REV": "abcdef1234"}}
	spec := &Spec{
		Version: Version,
		Phases: Phases{
			PreBuild: &Phase{Commands: []string{"export TAG=$(echo $REV | cut -c 1-7)"}},
			Build:    &Phase{Commands: []string{`test "$TAG" = abcdef1`, `printf '%s' "$TAG" > out.txt`}},
		},
		Artifacts: Artifacts{Files: []string{"out.txt"}},
	}

	res, err := r.Run(context.Background(), spec)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abcdef1", string(data))
	assert.Equal(t, "abcdef1", res.Env["TAG"])
}

func TestShellExecutor_ExitCode(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	res, err := (&ShellExecutor{Dir: t.TempDir()}).Run(context.Background(), "exit 3", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

// scanCommand returns the generated scan command for scannerURL.
func scanCommand(t *testing.T, scannerURL string) string {
	t.Helper()
	o := testOptions()
	o.ScannerURL = scannerURL
	for _, cmd := range DevSecOps(o).Commands() {
		if Classify(cmd) == GateScan {
			return cmd
		}
	}
	t.Fatal("no scan command")
	return ""
}

func TestShellExecutor_ScanGate(t *testing.T) {
	for _, tool := range []string{"bash", "curl"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skip(tool + " not available")
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/clean", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `echo "scanned $2" > scanned.txt`)
	})
	mux.HandleFunc("/vulnerable", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "exit 1")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// The test server is local; keep host proxies out of the way.
	env := map[string]string{EnvRepositoryURI: repoURI, EnvImageTag: "abcdef1", "NO_PROXY": "*", "no_proxy": "*"}
	tests := []struct {
		name     string
		url      string
		wantExit bool
		scanned  bool
	}{
		{"clean image", srv.URL + "/clean", false, true},
		{"vulnerable image", srv.URL + "/vulnerable", true, false},
		{"scanner download fails", srv.URL + "/missing", true, false},
		{"scanner unreachable", "http://127.0.0.1:1/inline_scan.sh", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			res, err := (&ShellExecutor{Dir: dir}).Run(context.Background(), scanCommand(t, tt.url), env)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExit, res.ExitCode != 0, "exit code %d", res.ExitCode)

			_, statErr := os.Stat(filepath.Join(dir, "scanned.txt"))
			assert.Equal(t, tt.scanned, statErr == nil)
		})
	}
}
