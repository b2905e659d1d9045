package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/ecs-devsecops-go/internal/buildspec"
)

const containerName = "cs-cdk-devsecops-container"

type fixture struct {
	pipeline *Pipeline
	deployer *DryRunDeployer
	sim      *buildspec.SimulatedExecutor
}

func newFixture(t *testing.T, approver Approver, fail map[buildspec.Gate]int) *fixture {
	t.Helper()
	dir := t.TempDir()
	sim := &buildspec.SimulatedExecutor{Dir: dir, Fail: fail}
	deployer := &DryRunDeployer{}
	spec := buildspec.DevSecOps(buildspec.Options{
		ContainerName:  containerName,
		Dockerfile:     "Dockerfile",
		HadolintImage:  "hadolint/hadolint:v1.16.2",
		HadolintConfig: ".hadolint.yml",
		ScannerURL:     "https://ci-tools.anchore.io/inline_scan-v0.3.3",
	})
	return &fixture{
		sim:      sim,
		deployer: deployer,
		pipeline: &Pipeline{
			Definition: testDefinition(),
			Source:     LocalSource{Dir: dir, CommitID: "abcdef1234567890"},
			Builder: &CodeBuild{
				Spec: spec,
				Exec: sim,
				Env:  map[string]string{buildspec.EnvRepositoryURI: "123456789012.dkr.ecr.us-east-1.amazonaws.com/repo"},
			},
			Approver:      approver,
			Deployer:      deployer,
			ContainerName: containerName,
		},
	}
}

func statuses(e *Execution) []Status {
	var out []Status
	for _, s := range e.Stages {
		out = append(out, s.Status)
	}
	return out
}

func TestRun_Approved(t *testing.T) {
	f := newFixture(t, StaticApprover{}, nil)
	exec, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, exec.Status)
	assert.NotEmpty(t, exec.ID)
	assert.Equal(t, "abcdef1234567890", exec.CommitID)
	assert.Equal(t, []Status{StatusSucceeded, StatusSucceeded, StatusSucceeded, StatusSucceeded}, statuses(exec))

	reqs := f.deployer.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, containerName, reqs[0].Image.Name)
	assert.True(t, strings.HasSuffix(reqs[0].Image.ImageURI, ":abcdef1"))
	assert.Equal(t, "cluster", reqs[0].ClusterName)
	assert.Equal(t, "service", reqs[0].ServiceName)
	assert.Equal(t, exec.ID, reqs[0].ExecutionID)
}

func TestRun_RejectedNeverDeploys(t *testing.T) {
	f := newFixture(t, StaticApprover{Reject: true, Reason: "not today"}, nil)
	exec, err := f.pipeline.Run(context.Background())
	require.ErrorIs(t, err, ErrRejected)

	assert.Equal(t, StatusRejected, exec.Status)
	assert.Equal(t, []Status{StatusSucceeded, StatusSucceeded, StatusRejected, StatusSkipped}, statuses(exec))
	assert.Empty(t, f.deployer.Requests())
}

func TestRun_TimeoutNeverDeploys(t *testing.T) {
	f := newFixture(t, WaitingApprover{}, nil)
	f.pipeline.ApprovalTimeout = 20 * time.Millisecond

	exec, err := f.pipeline.Run(context.Background())
	require.ErrorIs(t, err, ErrApprovalTimeout)

	assert.Equal(t, StatusTimedOut, exec.Status)
	approve, _ := exec.Stage(StageApprove)
	assert.Equal(t, StatusTimedOut, approve.Status)
	deploy, _ := exec.Stage(StageDeploy)
	assert.Equal(t, StatusSkipped, deploy.Status)
	assert.Empty(t, f.deployer.Requests())
}

func TestRun_BuildFailureSkipsApproval(t *testing.T) {
	var asked bool
	approver := ApproverFunc(func(context.Context, ApprovalRequest) error {
		asked = true
		return nil
	})
	f := newFixture(t, approver, map[buildspec.Gate]int{buildspec.GateScan: 1})

	exec, err := f.pipeline.Run(context.Background())
	require.ErrorIs(t, err, ErrStageFailed)
	assert.ErrorContains(t, err, "build phase failed")
	assert.Equal(t, StatusFailed, exec.Status)
	assert.Equal(t, []Status{StatusSucceeded, StatusFailed, StatusSkipped, StatusSkipped}, statuses(exec))
	assert.False(t, asked)
	assert.Empty(t, f.deployer.Requests())
}

func TestRun_ApproverSeesImage(t *testing.T) {
	var got ApprovalRequest
	f := newFixture(t, ApproverFunc(func(_ context.Context, req ApprovalRequest) error {
		got = req
		return nil
	}), nil)

	_, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got.Image.ImageURI, ":abcdef1"))
	assert.NotEmpty(t, got.Summary)
}

func TestRun_WrongContainerFailsDeploy(t *testing.T) {
	f := newFixture(t, StaticApprover{}, nil)
	f.pipeline.ContainerName = "other"

	exec, err := f.pipeline.Run(context.Background())
	require.ErrorIs(t, err, ErrStageFailed)
	deploy, _ := exec.Stage(StageDeploy)
	assert.Equal(t, StatusFailed, deploy.Status)
	assert.Empty(t, f.deployer.Requests())
}

func TestRun_Serialized(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0
	approver := ApproverFunc(func(context.Context, ApprovalRequest) error {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})
	f := newFixture(t, approver, nil)

	var wg sync.WaitGroup
	ids := make([]string, 3)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			exec, err := f.pipeline.Run(context.Background())
			assert.NoError(t, err)
			ids[i] = exec.ID
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Len(t, f.deployer.Requests(), 3)
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotEqual(t, ids[1], ids[2])
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, ApproverFunc(func(ctx context.Context, _ ApprovalRequest) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}), nil)

	exec, err := f.pipeline.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrApprovalTimeout))
	assert.Equal(t, StatusFailed, exec.Status)
	assert.Empty(t, f.deployer.Requests())
}

func TestPromptApprover(t *testing.T) {
	tests := []struct {
		input   string
		wantErr error
	}{
		{"y\n", nil},
		{"YES\n", nil},
		{"n\n", ErrRejected},
		{"\n", ErrRejected},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out strings.Builder
			a := PromptApprover{In: strings.NewReader(tt.input), Out: &out}
			err := a.Approve(context.Background(), ApprovalRequest{ExecutionID: "exec-1"})
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, out.String(), "exec-1")
		})
	}
}

func TestPromptApprover_Timeout(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = PromptApprover{In: r, Out: &strings.Builder{}}.Approve(ctx, ApprovalRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The timed-out prompt released the input: the next answer goes to the
	// next prompt.
	_, err = w.WriteString("y\n")
	require.NoError(t, err)
	next, cancelNext := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelNext()
	assert.NoError(t, PromptApprover{In: r, Out: &strings.Builder{}}.Approve(next, ApprovalRequest{}))
}

func TestLocalSource_GitHead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "refs", "heads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "refs", "heads", "main"), []byte("0123456789abcdef\n"), 0o644))

	rev, err := LocalSource{Dir: dir}.Fetch(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", rev.CommitID)
	assert.Equal(t, "main", rev.Branch)
}

func TestLocalSource_PackedRefs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "packed-refs"),
		[]byte("# pack-refs with: peeled\nfedcba9876543210 refs/heads/main\n"), 0o644))

	rev, err := LocalSource{Dir: dir}.Fetch(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "fedcba9876543210", rev.CommitID)
}

func TestLocalSource_NoGit(t *testing.T) {
	rev, err := LocalSource{Dir: t.TempDir()}.Fetch(context.Background(), "main")
	require.NoError(t, err)
	assert.Len(t, rev.CommitID, 32)

	_, err = LocalSource{Dir: filepath.Join(t.TempDir(), "missing")}.Fetch(context.Background(), "main")
	assert.Error(t, err)
}
