package buildspec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrPhaseFailed is returned when a build phase fails.
var ErrPhaseFailed = errors.New("build phase failed")

// Phase outcomes.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
)

// CommandResult records one executed command.
type CommandResult struct {
	Command  string
	Gate     Gate
	ExitCode int
}

// PhaseResult records one phase.
type PhaseResult struct {
	Name     string
	Status   string
	Commands []CommandResult
}

// BuildResult is the outcome of a local build.
type BuildResult struct {
	Succeeded bool
	Phases    []PhaseResult
	// Artifacts are the collected artifact files, only set on success.
	Artifacts []string
	Env       map[string]string
}

// Phase returns the named phase result.
func (r *BuildResult) Phase(name string) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// Runner executes buildspecs with CodeBuild's phase transitions: a failed
// install or pre_build skips the remaining phases, a failed build still runs
// post_build with CODEBUILD_BUILD_SUCCEEDING=0, and any failed command ends
// its phase. Artifacts are collected only when every phase succeeded.
type Runner struct {
	Exec   Executor
	Env    map[string]string
	Dir    string
	Logger *slog.Logger
}

// Run executes the buildspec. The result is returned even when the build
// fails; the error then wraps ErrPhaseFailed.
func (r *Runner) Run(ctx context.Context, spec *Spec) (*BuildResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	env := copyEnv(r.Env)
	if spec.Env != nil {
		for k, v := range spec.Env.Variables {
			if _, set := env[k]; !set {
				env[k] = v
			}
		}
	}
	env[EnvBuildSucceeding] = "1"

	result := &BuildResult{}
	var failure error
	skipRest := false

	for _, np := range spec.Ordered() {
		pr := PhaseResult{Name: np.Name}
		if skipRest {
			pr.Status = StatusSkipped
			result.Phases = append(result.Phases, pr)
			continue
		}

		logger.Info("phase started", "phase", np.Name)
		err := r.runPhase(ctx, np, env, &pr)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, err
		}
		if err != nil {
			pr.Status = StatusFailed
			env[EnvBuildSucceeding] = "0"
			if failure == nil {
				failure = err
			}
			logger.Warn("phase failed", "phase", np.Name, "error", err)
			// Only a failed build phase lets post_build run.
			if np.Name != PhaseBuild {
				skipRest = true
			}
		} else {
			pr.Status = StatusSucceeded
			logger.Info("phase succeeded", "phase", np.Name)
		}
		result.Phases = append(result.Phases, pr)
	}

	result.Env = env
	if failure != nil {
		return result, failure
	}

	artifacts, err := r.collect(spec.Artifacts.Files)
	if err != nil {
		return result, err
	}
	result.Succeeded = true
	result.Artifacts = artifacts
	return result, nil
}

func (r *Runner) runPhase(ctx context.Context, np NamedPhase, env map[string]string, pr *PhaseResult) error {
	for _, cmd := range np.Phase.Commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := r.Exec.Run(ctx, cmd, env)
		if err != nil {
			return fmt.Errorf("%s: %w", np.Name, err)
		}
		pr.Commands = append(pr.Commands, CommandResult{Command: cmd, Gate: Classify(cmd), ExitCode: res.ExitCode})
		if res.ExitCode != 0 {
			return fmt.Errorf("%w: %s: command %q exited %d", ErrPhaseFailed, np.Name, cmd, res.ExitCode)
		}
		for k, v := range res.Env {
			env[k] = v
		}
	}
	return nil
}

func (r *Runner) collect(patterns []string) ([]string, error) {
	if r.Dir == "" {
		return append([]string(nil), patterns...), nil
	}
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(r.Dir, p))
		if err != nil {
			return nil, fmt.Errorf("artifact pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: artifact %q not found", ErrPhaseFailed, p)
		}
		for _, m := range matches {
			if _, err := os.Stat(m); err != nil {
				return nil, err
			}
			out = append(out, m)
		}
	}
	return out, nil
}
