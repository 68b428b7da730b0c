package scm

import (
	"context"
	"os/exec"
	"strings"
)

// Git is the SCM implementation backed by the git CLI. Root resolution
// is worktree-aware the same way steveyegge-beads/internal/git/gitdir.go
// is: it shells out to `git rev-parse` rather than assuming `.git` is a
// directory, since in a linked worktree it's a file pointing elsewhere.
type Git struct {
	r runner
}

// NewGit constructs a Git backend rooted at the working-tree toplevel
// containing dir. dir need not itself be the repo root.
func NewGit(ctx context.Context, dir string) (*Git, error) {
	r := runner{bin: "git", kind: GitKind, dir: dir}
	top, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, err
	}
	return &Git{r: runner{bin: "git", kind: GitKind, dir: top}}, nil
}

func (g *Git) Kind() Kind { return GitKind }
func (g *Git) Root() string { return g.r.dir }

func (g *Git) CurrentAnchor(ctx context.Context) (string, error) {
	return g.r.run(ctx, "rev-parse", "--abbrev-ref", "--end-of-options", "HEAD")
}

func (g *Git) CurrentCommit(ctx context.Context) (string, error) {
	return g.r.run(ctx, "rev-parse", "--end-of-options", "HEAD")
}

func (g *Git) CommitForAnchor(ctx context.Context, anchor string) (string, error) {
	if err := sanitizeAnchor(anchor); err != nil {
		return "", err
	}
	return g.r.run(ctx, "rev-parse", "--end-of-options", anchor)
}

func (g *Git) ParentCommit(ctx context.Context, commit string) (string, error) {
	if err := sanitizeAnchor(commit); err != nil {
		return "", err
	}
	return g.r.run(ctx, "rev-parse", "--end-of-options", commit+"^")
}

func (g *Git) DiffGit(ctx context.Context, from, to string) (string, error) {
	if err := sanitizeAnchor(from); err != nil {
		return "", err
	}
	if err := sanitizeAnchor(to); err != nil {
		return "", err
	}
	return g.r.run(ctx, "diff", "--no-color", "--end-of-options", from, to)
}

func (g *Git) DiffGitFile(ctx context.Context, from, to, path string) (string, error) {
	if err := sanitizeAnchor(from); err != nil {
		return "", err
	}
	if err := sanitizeAnchor(to); err != nil {
		return "", err
	}
	if err := sanitizePath(path); err != nil {
		return "", err
	}
	return g.r.run(ctx, "diff", "--no-color", "--end-of-options", from, to, "--", path)
}

func (g *Git) ChangedFilesBetween(ctx context.Context, from, to string) ([]string, error) {
	if err := sanitizeAnchor(from); err != nil {
		return nil, err
	}
	if err := sanitizeAnchor(to); err != nil {
		return nil, err
	}
	out, err := g.r.run(ctx, "diff", "--name-only", "--end-of-options", from, to)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func (g *Git) FileExists(ctx context.Context, rev, path string) (bool, error) {
	if err := sanitizeAnchor(rev); err != nil {
		return false, err
	}
	if err := sanitizePath(path); err != nil {
		return false, err
	}
	cmd := exec.CommandContext(ctx, "git", "cat-file", "-e", rev+":"+path)
	cmd.Dir = g.r.dir
	return cmd.Run() == nil, nil
}

func (g *Git) ShowFile(ctx context.Context, rev, path string) (string, error) {
	if err := sanitizeAnchor(rev); err != nil {
		return "", err
	}
	if err := sanitizePath(path); err != nil {
		return "", err
	}
	return g.r.run(ctx, "show", "--end-of-options", rev+":"+path)
}
