package buildspec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lex00/ecs-devsecops-go/internal/manifest"
)

// Result is the outcome of one command.
type Result struct {
	ExitCode int
	// Env is the environment after the command, nil when unchanged.
	Env map[string]string
}

// Executor runs a single buildspec command.
type Executor interface {
	Run(ctx context.Context, command string, env map[string]string) (Result, error)
}

// ShellExecutor runs commands with bash in a working directory. Variables
// exported by one command are visible to the next, as in CodeBuild.
type ShellExecutor struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements Executor.
func (e *ShellExecutor) Run(ctx context.Context, command string, env map[string]string) (Result, error) {
	envFile, err := os.CreateTemp("", "buildspec-env-*")
	if err != nil {
		return Result{}, err
	}
	envPath := envFile.Name()
	envFile.Close()
	defer os.Remove(envPath)

	script := command + "\n__rc=$?\nenv -0 > " + shellQuote(envPath) + "\nexit $__rc\n"
	cmd := exec.CommandContext(ctx, "bash", "-c", script)
	cmd.Dir = e.Dir
	// Later entries win, so the build environment overrides the host's.
	cmd.Env = append(os.Environ(), flatten(env)...)
	cmd.Stdout = writerOr(e.Stdout)
	cmd.Stderr = writerOr(e.Stderr)

	err = cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		return Result{ExitCode: exitErr.ExitCode()}, nil
	default:
		return Result{}, fmt.Errorf("running %q: %w", command, err)
	}

	data, err := os.ReadFile(envPath)
	if err != nil {
		return Result{}, err
	}
	return Result{Env: parseEnv(data)}, nil
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func flatten(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func parseEnv(data []byte) map[string]string {
	out := make(map[string]string)
	for _, kv := range bytes.Split(data, []byte{0}) {
		k, v, ok := strings.Cut(string(kv), "=")
		if !ok || k == "" || strings.HasPrefix(k, "__") || k == "_" || k == "PWD" || k == "SHLVL" || k == "OLDPWD" {
			continue
		}
		out[k] = v
	}
	return out
}

// SimulatedExecutor stands in for CodeBuild without docker, registry or
// scanner. It emulates the effects of the DevSecOps gates (tag derivation,
// the build-succeeding guard, the manifest file) and fails the gates listed
// in Fail with the given exit code.
type SimulatedExecutor struct {
	// Dir receives the manifest file. Empty keeps it in memory only.
	Dir  string
	Fail map[Gate]int

	mu       sync.Mutex
	commands []string
	manifest []byte
}

// Run implements Executor.
func (e *SimulatedExecutor) Run(ctx context.Context, command string, env map[string]string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	e.mu.Lock()
	e.commands = append(e.commands, command)
	e.mu.Unlock()

	gate := Classify(command)
	if code, ok := e.Fail[gate]; ok {
		return Result{ExitCode: code}, nil
	}

	switch gate {
	case GateRevision:
		next := copyEnv(env)
		next[EnvImageTag] = manifest.ShortTag(env[EnvSourceVersion])
		return Result{Env: next}, nil
	case GateGuard:
		if env[EnvBuildSucceeding] == "0" {
			return Result{ExitCode: 1}, nil
		}
	case GateManifest:
		name, file, _ := manifest.ParseWriteCommand(command)
		data, err := manifest.Encode(manifest.New(name, manifest.ImageURI(env[EnvRepositoryURI], env[EnvImageTag])))
		if err != nil {
			return Result{}, err
		}
		e.mu.Lock()
		e.manifest = data
		e.mu.Unlock()
		if e.Dir != "" {
			if err := os.WriteFile(filepath.Join(e.Dir, file), data, 0o644); err != nil {
				return Result{}, err
			}
		}
	}
	return Result{}, nil
}

// Commands returns the commands run so far.
func (e *SimulatedExecutor) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// Ran reports whether any command of the gate ran.
func (e *SimulatedExecutor) Ran(g Gate) bool {
	for _, c := range e.Commands() {
		if Classify(c) == g {
			return true
		}
	}
	return false
}

// Manifest returns the last manifest written.
func (e *SimulatedExecutor) Manifest() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manifest
}

func copyEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env)+1)
	for k, v := range env {
		out[k] = v
	}
	return out
}
