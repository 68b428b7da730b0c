package service

import (
	"context"
	"fmt"

	"github.com/critlabs/crit/internal/drift"
	"github.com/critlabs/crit/internal/ignore"
	"github.com/critlabs/crit/internal/store"
)

// Diff returns the unified diff for reviewID between its initial commit
// and its final commit (if merged) or the SCM's current commit
// otherwise, backing the `crit diff <review_id>` CLI verb.
func (s *Service) Diff(ctx context.Context, reviewID string) (string, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return "", err
	}
	defer s.close(sess)

	detail, err := sess.st.ReviewDetail(ctx, reviewID)
	if err != nil {
		return "", wrapStoreErr(err, reviewID)
	}

	to, err := s.resolveDiffTarget(ctx, sess, detail)
	if err != nil {
		return "", err
	}

	text, err := sess.scm.DiffGit(ctx, detail.InitialCommit, to)
	if err != nil {
		return "", internalf("diff git", err)
	}
	return text, nil
}

// ChangedFilesResult is reviewID's changed-file list, narrowed to its
// reviewable surface via component K's .critignore filter, between its
// initial commit and its current (or final) commit.
type ChangedFilesResult struct {
	Files         []string
	IgnoredCount  int
	HasCritignore bool
}

// ChangedFiles lists reviewID's changed files with the always-ignored
// prefixes and any .critignore patterns applied, backing `crit diff`'s
// file listing. If every changed file is excluded, it fails with
// ignore.AllFilesIgnored rather than presenting an empty review surface
// silently.
func (s *Service) ChangedFiles(ctx context.Context, reviewID string) (ChangedFilesResult, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return ChangedFilesResult{}, err
	}
	defer s.close(sess)

	detail, err := sess.st.ReviewDetail(ctx, reviewID)
	if err != nil {
		return ChangedFilesResult{}, wrapStoreErr(err, reviewID)
	}

	to, err := s.resolveDiffTarget(ctx, sess, detail)
	if err != nil {
		return ChangedFilesResult{}, err
	}

	paths, err := sess.scm.ChangedFilesBetween(ctx, detail.InitialCommit, to)
	if err != nil {
		return ChangedFilesResult{}, internalf("changed files between", err)
	}

	filter, err := ignore.Load(s.RepoRoot)
	if err != nil {
		return ChangedFilesResult{}, internalf("load critignore", err)
	}
	kept, nIgnored := filter.FilterFiles(paths)
	if len(paths) > 0 && len(kept) == 0 {
		return ChangedFilesResult{}, &ignore.AllFilesIgnored{Count: nIgnored, HasCritignore: filter.HasCritignore()}
	}

	return ChangedFilesResult{Files: kept, IgnoredCount: nIgnored, HasCritignore: filter.HasCritignore()}, nil
}

// resolveDiffTarget picks the commit a review's diff/drift runs up to:
// its final_commit once merged, otherwise the SCM's current commit.
func (s *Service) resolveDiffTarget(ctx context.Context, sess *session, detail store.ReviewDetail) (string, error) {
	if detail.FinalCommit != "" {
		return detail.FinalCommit, nil
	}
	to, err := sess.scm.CurrentCommit(ctx)
	if err != nil {
		return "", internalf("resolve current commit", err)
	}
	return to, nil
}

// ThreadDrift re-anchors threadID's original line against the review's
// current (or final) commit via internal/drift.
func (s *Service) ThreadDrift(ctx context.Context, threadID string) (drift.Result, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return drift.Result{}, err
	}
	defer s.close(sess)

	t, ok, err := findThreadByID(ctx, sess.st, threadID)
	if err != nil {
		return drift.Result{}, internalf("find thread", err)
	}
	if !ok {
		return drift.Result{}, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}

	detail, err := sess.st.ReviewDetail(ctx, t.ReviewID)
	if err != nil {
		return drift.Result{}, wrapStoreErr(err, t.ReviewID)
	}

	to, err := s.resolveDiffTarget(ctx, sess, detail)
	if err != nil {
		return drift.Result{}, err
	}

	diffText, err := sess.scm.DiffGitFile(ctx, t.CommitHash, to, t.FilePath)
	if err != nil {
		return drift.Result{}, internalf("diff git file", err)
	}

	result, err := drift.Calculate(diffText, t.SelectionStart)
	if err != nil {
		return drift.Result{}, internalf("calculate drift", err)
	}
	return result, nil
}
