package pipeline

import (
	"context"
	"log/slog"

	"github.com/lex00/ecs-devsecops-go/internal/buildspec"
)

// CodeBuild builds a revision with a buildspec, running its commands in
// the revision's working tree.
type CodeBuild struct {
	Spec *buildspec.Spec
	Exec buildspec.Executor
	// Env is the project environment (ECR_REPOSITORY_URI, CLUSTER_NAME...).
	Env    map[string]string
	Logger *slog.Logger
}

// Build implements Builder.
func (b *CodeBuild) Build(ctx context.Context, rev Revision) (Artifacts, error) {
	env := make(map[string]string, len(b.Env)+1)
	for k, v := range b.Env {
		env[k] = v
	}
	env[buildspec.EnvSourceVersion] = rev.CommitID

	r := &buildspec.Runner{Exec: b.Exec, Env: env, Dir: rev.Dir, Logger: b.Logger}
	res, err := r.Run(ctx, b.Spec)
	if err != nil {
		return Artifacts{}, err
	}
	return Artifacts{Files: res.Artifacts}, nil
}
