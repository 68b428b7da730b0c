package scm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Fake is an in-memory SCM used by this package's tests and the service
// package's tests so they can exercise commit
// resolution and file-content flows without shelling out to a real git
// or jj binary. Diffs are supplied directly by the test rather than
// computed, since producing a byte-correct unified diff from two
// arbitrary file snapshots is the drift engine's own job, not the SCM
// layer's — exercising that codepath belongs to drift's tests, not a
// fake that would just reimplement diffing.
type Fake struct {
	kind Kind
	root string

	anchor string
	commit string

	// files[commit][path] = content
	files map[string]map[string]string
	// parents[commit] = parent commit, "" if root
	parents map[string]string
	// diffs[from+"\x00"+to+"\x00"+path] = unified diff text; path is ""
	// for the whole-tree diff.
	diffs map[string]string
	// changed[from+"\x00"+to] = file list
	changed map[string][]string
}

// NewFake builds an empty fake repository rooted at an arbitrary commit
// with a random id, so tests don't need to fabricate plausible-looking
// hashes themselves.
func NewFake(root string) *Fake {
	initial := uuid.NewString()
	return &Fake{
		kind:    GitKind,
		root:    root,
		anchor:  "main",
		commit:  initial,
		files:   map[string]map[string]string{initial: {}},
		parents: map[string]string{initial: ""},
		diffs:   map[string]string{},
		changed: map[string][]string{},
	}
}

// Commit records a new commit as a child of the current HEAD, with the
// given file contents (a full snapshot, not a delta), and advances HEAD
// to it. It returns the new commit id.
func (f *Fake) Commit(files map[string]string) string {
	id := uuid.NewString()
	snapshot := make(map[string]string, len(files))
	for k, v := range files {
		snapshot[k] = v
	}
	f.files[id] = snapshot
	f.parents[id] = f.commit
	f.commit = id
	return id
}

// SetDiff registers the unified diff text Fake should return: with an
// empty path, for DiffGit(from, to); with a non-empty path, for
// DiffGitFile(from, to, path).
func (f *Fake) SetDiff(from, to, path, diff string) {
	f.diffs[diffKey(from, to, path)] = diff
}

// SetChangedFiles registers the result ChangedFilesBetween(from, to)
// should return.
func (f *Fake) SetChangedFiles(from, to string, paths []string) {
	f.changed[from+"\x00"+to] = paths
}

func diffKey(from, to, path string) string {
	return from + "\x00" + to + "\x00" + path
}

func (f *Fake) Kind() Kind   { return f.kind }
func (f *Fake) Root() string { return f.root }

func (f *Fake) CurrentAnchor(ctx context.Context) (string, error) { return f.anchor, nil }
func (f *Fake) CurrentCommit(ctx context.Context) (string, error) { return f.commit, nil }

func (f *Fake) CommitForAnchor(ctx context.Context, anchor string) (string, error) {
	if err := sanitizeAnchor(anchor); err != nil {
		return "", err
	}
	if anchor == f.anchor {
		return f.commit, nil
	}
	if _, ok := f.files[anchor]; ok {
		return anchor, nil
	}
	return "", &CommandFailed{Backend: f.kind, Args: []string{"rev-parse", anchor}, Err: fmt.Errorf("unknown anchor %q", anchor)}
}

func (f *Fake) ParentCommit(ctx context.Context, commit string) (string, error) {
	if err := sanitizeAnchor(commit); err != nil {
		return "", err
	}
	parent, ok := f.parents[commit]
	if !ok {
		return "", &CommandFailed{Backend: f.kind, Args: []string{"rev-parse", commit + "^"}, Err: fmt.Errorf("unknown commit %q", commit)}
	}
	if parent == "" {
		return "", &CommandFailed{Backend: f.kind, Args: []string{"rev-parse", commit + "^"}, Err: fmt.Errorf("%q has no parent", commit)}
	}
	return parent, nil
}

func (f *Fake) DiffGit(ctx context.Context, from, to string) (string, error) {
	return f.diffs[diffKey(from, to, "")], nil
}

func (f *Fake) DiffGitFile(ctx context.Context, from, to, path string) (string, error) {
	if err := sanitizePath(path); err != nil {
		return "", err
	}
	return f.diffs[diffKey(from, to, path)], nil
}

func (f *Fake) ChangedFilesBetween(ctx context.Context, from, to string) ([]string, error) {
	return f.changed[from+"\x00"+to], nil
}

func (f *Fake) FileExists(ctx context.Context, rev, path string) (bool, error) {
	if err := sanitizePath(path); err != nil {
		return false, err
	}
	snapshot, ok := f.files[rev]
	if !ok {
		return false, nil
	}
	_, ok = snapshot[path]
	return ok, nil
}

func (f *Fake) ShowFile(ctx context.Context, rev, path string) (string, error) {
	if err := sanitizePath(path); err != nil {
		return "", err
	}
	snapshot, ok := f.files[rev]
	if !ok {
		return "", &CommandFailed{Backend: f.kind, Args: []string{"show", rev + ":" + path}, Err: fmt.Errorf("unknown commit %q", rev)}
	}
	content, ok := snapshot[path]
	if !ok {
		return "", &CommandFailed{Backend: f.kind, Args: []string{"show", rev + ":" + path}, Err: fmt.Errorf("path %q not found at %q", path, rev)}
	}
	return content, nil
}

var _ SCM = (*Fake)(nil)
