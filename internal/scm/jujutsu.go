package scm

import (
	"context"
	"strings"
)

// Jujutsu is the SCM implementation backed by the jj CLI. jj anchors
// working-copy state by change id rather than branch name; commit_ids
// surfaced here are the underlying git commit hash jj tracks, so diffs
// and file reads stay in git's unified format regardless of backend.
type Jujutsu struct {
	r runner
}

// NewJujutsu constructs a Jujutsu backend rooted at the workspace
// containing dir.
func NewJujutsu(ctx context.Context, dir string) (*Jujutsu, error) {
	r := runner{bin: "jj", kind: JujutsuKind, dir: dir}
	top, err := r.run(ctx, "workspace", "root")
	if err != nil {
		return nil, err
	}
	return &Jujutsu{r: runner{bin: "jj", kind: JujutsuKind, dir: top}}, nil
}

func (j *Jujutsu) Kind() Kind   { return JujutsuKind }
func (j *Jujutsu) Root() string { return j.r.dir }

func (j *Jujutsu) CurrentAnchor(ctx context.Context) (string, error) {
	return j.r.run(ctx, "log", "-r", "@", "--no-graph", "-T", "change_id")
}

func (j *Jujutsu) CurrentCommit(ctx context.Context) (string, error) {
	return j.r.run(ctx, "log", "-r", "@", "--no-graph", "-T", "commit_id")
}

func (j *Jujutsu) CommitForAnchor(ctx context.Context, anchor string) (string, error) {
	if err := sanitizeAnchor(anchor); err != nil {
		return "", err
	}
	return j.r.run(ctx, "log", "-r", anchor, "--no-graph", "-T", "commit_id")
}

func (j *Jujutsu) ParentCommit(ctx context.Context, commit string) (string, error) {
	if err := sanitizeAnchor(commit); err != nil {
		return "", err
	}
	return j.r.run(ctx, "log", "-r", commit+"-", "--no-graph", "-T", "commit_id")
}

func (j *Jujutsu) DiffGit(ctx context.Context, from, to string) (string, error) {
	if err := sanitizeAnchor(from); err != nil {
		return "", err
	}
	if err := sanitizeAnchor(to); err != nil {
		return "", err
	}
	return j.r.run(ctx, "diff", "--no-color", "--git", "--from", from, "--to", to)
}

func (j *Jujutsu) DiffGitFile(ctx context.Context, from, to, path string) (string, error) {
	if err := sanitizeAnchor(from); err != nil {
		return "", err
	}
	if err := sanitizeAnchor(to); err != nil {
		return "", err
	}
	if err := sanitizePath(path); err != nil {
		return "", err
	}
	return j.r.run(ctx, "diff", "--no-color", "--git", "--from", from, "--to", to, path)
}

func (j *Jujutsu) ChangedFilesBetween(ctx context.Context, from, to string) ([]string, error) {
	if err := sanitizeAnchor(from); err != nil {
		return nil, err
	}
	if err := sanitizeAnchor(to); err != nil {
		return nil, err
	}
	out, err := j.r.run(ctx, "diff", "--summary", "--from", from, "--to", to)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		// jj --summary prefixes each line with a one-letter status (A/M/D).
		fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
		if len(fields) == 2 {
			files = append(files, fields[1])
		}
	}
	return files, nil
}

func (j *Jujutsu) FileExists(ctx context.Context, rev, path string) (bool, error) {
	if err := sanitizeAnchor(rev); err != nil {
		return false, err
	}
	if err := sanitizePath(path); err != nil {
		return false, err
	}
	_, err := j.r.run(ctx, "file", "show", "-r", rev, path)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (j *Jujutsu) ShowFile(ctx context.Context, rev, path string) (string, error) {
	if err := sanitizeAnchor(rev); err != nil {
		return "", err
	}
	if err := sanitizePath(path); err != nil {
		return "", err
	}
	return j.r.run(ctx, "file", "show", "-r", rev, path)
}
