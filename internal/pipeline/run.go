package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lex00/ecs-devsecops-go/internal/manifest"
)

var (
	// ErrRejected is returned when the manual approval is rejected.
	ErrRejected = errors.New("approval rejected")
	// ErrApprovalTimeout is returned when nobody decides in time.
	ErrApprovalTimeout = errors.New("approval timed out")
	// ErrStageFailed is returned when a source, build or deploy stage fails.
	ErrStageFailed = errors.New("stage failed")
)

// Status is the state of a stage or execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
	StatusTimedOut  Status = "timed_out"
	StatusSkipped   Status = "skipped"
)

// DefaultApprovalTimeout applies when the approval action sets none.
const DefaultApprovalTimeout = 7 * 24 * time.Hour

// Revision is a fetched source snapshot.
type Revision struct {
	CommitID string
	Branch   string
	// Dir is the checked-out working tree.
	Dir string
}

// SourceProvider fetches the revision to release.
type SourceProvider interface {
	Fetch(ctx context.Context, branch string) (Revision, error)
}

// Artifacts are the files a build produced.
type Artifacts struct {
	Files []string
}

// Builder turns a revision into artifacts.
type Builder interface {
	Build(ctx context.Context, rev Revision) (Artifacts, error)
}

// ApprovalRequest describes what is awaiting approval.
type ApprovalRequest struct {
	ExecutionID string
	Revision    Revision
	Image       manifest.Entry
	Summary     string
}

// Approver decides on a manual approval. A nil error approves; ErrRejected
// rejects. Implementations must return when ctx is done.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) error
}

// DeployRequest is a rolling update of the service to a new image.
type DeployRequest struct {
	ExecutionID string
	ClusterName any
	ServiceName any
	Image       manifest.Entry
}

// Deployer rolls the service to a new image.
type Deployer interface {
	Deploy(ctx context.Context, req DeployRequest) error
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Execution is one run of the pipeline.
type Execution struct {
	ID         string        `json:"id"`
	Status     Status        `json:"status"`
	CommitID   string        `json:"commit_id,omitempty"`
	Image      string        `json:"image,omitempty"`
	Stages     []StageResult `json:"stages"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Stage returns the result of the named stage.
func (e *Execution) Stage(name string) (StageResult, bool) {
	for _, s := range e.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Pipeline runs a Definition locally. Executions are serialized: a second
// Run waits until the first has finished, so two deploys never overlap.
// A failed stage skips every later stage; there is no retry and no
// rollback.
type Pipeline struct {
	Definition Definition
	Source     SourceProvider
	Builder    Builder
	Approver   Approver
	Deployer   Deployer
	// ContainerName is the task container the manifest must name.
	ContainerName string
	// ApprovalTimeout overrides the approval action's TimeoutMinutes.
	ApprovalTimeout time.Duration
	Logger          *slog.Logger

	mu sync.Mutex
}

type runState struct {
	exec      *Execution
	rev       Revision
	artifacts Artifacts
	image     manifest.Entry
	logger    *slog.Logger
}

// Run executes every stage in order. The execution is returned even when
// a stage fails; the error then wraps ErrStageFailed, ErrRejected or
// ErrApprovalTimeout.
func (p *Pipeline) Run(ctx context.Context) (*Execution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	exec := &Execution{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	for _, s := range p.Definition.Stages {
		exec.Stages = append(exec.Stages, StageResult{Name: s.Name, Status: StatusPending})
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := &runState{exec: exec, logger: logger.With("execution", exec.ID)}
	st.logger.Info("execution started")

	var failure error
	for i, s := range p.Definition.Stages {
		res := &exec.Stages[i]
		if failure != nil {
			res.Status = StatusSkipped
			continue
		}

		res.Status = StatusRunning
		res.StartedAt = time.Now()
		st.logger.Info("stage started", "stage", s.Name)

		err := p.runStage(ctx, s, st)
		res.FinishedAt = time.Now()
		switch {
		case err == nil:
			res.Status = StatusSucceeded
			st.logger.Info("stage succeeded", "stage", s.Name)
			continue
		case errors.Is(err, ErrRejected):
			res.Status = StatusRejected
		case errors.Is(err, ErrApprovalTimeout):
			res.Status = StatusTimedOut
		default:
			res.Status = StatusFailed
		}
		res.Error = err.Error()
		exec.Status = res.Status
		failure = err
		st.logger.Warn("stage did not succeed", "stage", s.Name, "status", res.Status, "error", err)
	}

	exec.FinishedAt = time.Now()
	if failure != nil {
		return exec, failure
	}
	exec.Status = StatusSucceeded
	st.logger.Info("execution succeeded", "image", exec.Image)
	return exec, nil
}

func (p *Pipeline) runStage(ctx context.Context, s Stage, st *runState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := s.Action
	switch a.Category {
	case CategorySource:
		rev, err := p.Source.Fetch(ctx, str(a.Configuration["BranchName"]))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStageFailed, s.Name, err)
		}
		st.rev = rev
		st.exec.CommitID = rev.CommitID
		return nil

	case CategoryBuild:
		artifacts, err := p.Builder.Build(ctx, st.rev)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStageFailed, s.Name, err)
		}
		st.artifacts = artifacts
		// The approver sees the image that would be deployed.
		if entry, err := p.readManifest(artifacts); err == nil {
			st.image = entry
			st.exec.Image = entry.ImageURI
		}
		return nil

	case CategoryApproval:
		return p.approve(ctx, a, st)

	case CategoryDeploy:
		entry, err := p.readManifest(st.artifacts)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStageFailed, s.Name, err)
		}
		req := DeployRequest{
			ExecutionID: st.exec.ID,
			ClusterName: a.Configuration["ClusterName"],
			ServiceName: a.Configuration["ServiceName"],
			Image:       entry,
		}
		if err := p.Deployer.Deploy(ctx, req); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStageFailed, s.Name, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s: unsupported action category %q", ErrStageFailed, s.Name, a.Category)
}

func (p *Pipeline) approve(ctx context.Context, a Action, st *runState) error {
	timeout := p.ApprovalTimeout
	if timeout == 0 && a.TimeoutMinutes > 0 {
		timeout = time.Duration(a.TimeoutMinutes) * time.Minute
	}
	if timeout == 0 {
		timeout = DefaultApprovalTimeout
	}

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := ApprovalRequest{
		ExecutionID: st.exec.ID,
		Revision:    st.rev,
		Image:       st.image,
		Summary:     str(a.Configuration["CustomData"]),
	}
	err := p.Approver.Approve(actx, req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRejected):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded) || actx.Err() != nil:
		return fmt.Errorf("%w after %s", ErrApprovalTimeout, timeout)
	}
	return fmt.Errorf("%w: approval: %v", ErrStageFailed, err)
}

func (p *Pipeline) readManifest(a Artifacts) (manifest.Entry, error) {
	for _, f := range a.Files {
		if filepath.Base(f) == manifest.FileName {
			return manifest.Read(f, p.ContainerName)
		}
	}
	return manifest.Entry{}, fmt.Errorf("%w: build output has no %s", manifest.ErrInvalid, manifest.FileName)
}
