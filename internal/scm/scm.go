// Package scm abstracts the underlying source-control tool (git or jj)
// behind the narrow capability set the rest of crit needs: resolving
// anchors to commits, walking commit parents, and diffing/reading file
// content at a revision. Everything here shells out via os/exec rather
// than linking a native implementation, the same approach
// steveyegge-beads takes for git in internal/git/gitdir.go.
package scm

import (
	"context"
	"errors"
	"fmt"
)

// Kind names which backend an SCM value wraps.
type Kind string

const (
	GitKind Kind = "git"
	JujutsuKind Kind = "jj"
)

// SCM is the capability set every operation in the service façade and
// the drift engine consume. All methods take a context so a caller can
// bound or cancel the underlying subprocess.
type SCM interface {
	Kind() Kind
	Root() string

	// CurrentAnchor returns the backend-native notion of "where we are":
	// the current branch name for git, the working-copy change id for jj.
	CurrentAnchor(ctx context.Context) (string, error)
	CurrentCommit(ctx context.Context) (string, error)
	CommitForAnchor(ctx context.Context, anchor string) (string, error)
	ParentCommit(ctx context.Context, commit string) (string, error)

	// DiffGit returns a unified diff in git format between two commits.
	DiffGit(ctx context.Context, from, to string) (string, error)
	// DiffGitFile is DiffGit scoped to a single file path.
	DiffGitFile(ctx context.Context, from, to, path string) (string, error)
	// ChangedFilesBetween lists paths touched between two commits.
	ChangedFilesBetween(ctx context.Context, from, to string) ([]string, error)

	FileExists(ctx context.Context, rev, path string) (bool, error)
	ShowFile(ctx context.Context, rev, path string) (string, error)
}

// AmbiguousBackend is returned by Detect when both .git/ and .jj/ are
// present and their resolved repo roots disagree.
type AmbiguousBackend struct {
	GitRoot string
	JjRoot  string
}

func (e *AmbiguousBackend) Error() string {
	return fmt.Sprintf("ambiguous scm backend: git root %q and jj root %q disagree", e.GitRoot, e.JjRoot)
}

// NoBackendFound is returned by Detect when neither .git/ nor .jj/ is
// present anywhere above dir.
var NoBackendFound = errors.New("no git or jj repository found")

// CommandFailed wraps a failed SCM subprocess invocation, preserving the
// arguments for diagnostics without leaking them into a sentinel
// comparison (callers should use errors.As, not string matching).
type CommandFailed struct {
	Backend Kind
	Args    []string
	Err     error
}

func (e *CommandFailed) Error() string {
	return fmt.Sprintf("%s %v: %v", e.Backend, e.Args, e.Err)
}

func (e *CommandFailed) Unwrap() error { return e.Err }
