package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalSource releases a working tree on disk. The commit comes from
// CommitID, else from the tree's .git HEAD, else a random revision is
// made up so that every execution gets a distinct image tag.
type LocalSource struct {
	Dir      string
	CommitID string
}

// Fetch implements SourceProvider.
func (s LocalSource) Fetch(ctx context.Context, branch string) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	info, err := os.Stat(s.Dir)
	if err != nil {
		return Revision{}, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return Revision{}, fmt.Errorf("source directory: %s is not a directory", s.Dir)
	}

	commit := s.CommitID
	if commit == "" {
		commit, err = gitHead(s.Dir)
		if err != nil {
			commit = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
	}
	return Revision{CommitID: commit, Branch: branch, Dir: s.Dir}, nil
}

// gitHead resolves .git/HEAD to a commit without shelling out to git.
func gitHead(dir string) (string, error) {
	gitDir := filepath.Join(dir, ".git")
	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(head))
	ref, ok := strings.CutPrefix(line, "ref: ")
	if !ok {
		return line, nil
	}
	data, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(ref)))
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	// Refs may only exist in packed-refs.
	packed, perr := os.ReadFile(filepath.Join(gitDir, "packed-refs"))
	if perr != nil {
		return "", err
	}
	for _, l := range strings.Split(string(packed), "\n") {
		hash, name, ok := strings.Cut(strings.TrimSpace(l), " ")
		if ok && name == ref {
			return hash, nil
		}
	}
	return "", fmt.Errorf("ref %s not found", ref)
}
