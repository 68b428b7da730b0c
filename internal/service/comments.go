package service

import (
	"context"
	"fmt"

	"github.com/critlabs/crit/internal/eventlog"
	"github.com/critlabs/crit/internal/idgen"
	"github.com/critlabs/crit/internal/store"
)

// AddCommentResult is the outcome of the compound add_comment_to_review
// workflow (spec.md §4.H).
type AddCommentResult struct {
	CommentID     string
	ThreadID      string
	ThreadCreated bool
}

// AddCommentToReview implements spec.md §4.H's compound workflow: parse
// the selection, find or create the owning thread, then append a
// comment. review_id's review must be open.
//
// expectedHash, when non-empty, is an optimistic-locking guard: if the
// selection resolves to an existing open thread, expectedHash must match
// that thread's current CommitHash or the call fails with
// ErrOptimisticLock rather than silently appending against a thread
// that has moved since the caller last read it. A brand-new thread has
// no prior anchor to race against, so the guard is skipped in that case.
func (s *Service) AddCommentToReview(ctx context.Context, reviewID, file, selection, body, expectedHash string) (AddCommentResult, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return AddCommentResult{}, err
	}
	defer s.close(sess)

	detail, err := sess.st.ReviewDetail(ctx, reviewID)
	if err != nil {
		return AddCommentResult{}, wrapStoreErr(err, reviewID)
	}
	if detail.Status != store.ReviewOpen {
		return AddCommentResult{}, &ErrInvalidReviewStatus{Actual: string(detail.Status), Expected: string(store.ReviewOpen)}
	}

	sel, err := parseSelection(selection)
	if err != nil {
		return AddCommentResult{}, err
	}
	start, _ := sel.Bounds()

	author := s.identity()

	existing, found, err := sess.st.FindOpenThread(ctx, reviewID, file, start)
	if err != nil {
		return AddCommentResult{}, internalf("find open thread", err)
	}

	var threadID string
	threadCreated := false
	if found {
		if expectedHash != "" && expectedHash != existing.CommitHash {
			return AddCommentResult{}, &ErrOptimisticLock{ThreadID: existing.ThreadID, Expected: expectedHash, Actual: existing.CommitHash}
		}
		threadID = existing.ThreadID
	} else {
		commit, err := s.resolveBaselineCommit(ctx, sess, detail)
		if err != nil {
			return AddCommentResult{}, err
		}
		exists, err := sess.scm.FileExists(ctx, commit, file)
		if err != nil {
			return AddCommentResult{}, internalf("check file exists", err)
		}
		if !exists {
			return AddCommentResult{}, &ErrFileNotFound{ReviewID: reviewID, Commit: commit, Path: file}
		}

		threadID, err = idgen.New(idgen.ThreadPrefix)
		if err != nil {
			return AddCommentResult{}, internalf("generate thread id", err)
		}
		if err := appendEvent(s.RepoRoot, reviewID, author, eventlog.ThreadCreated, eventlog.ThreadCreatedData{
			ThreadID:   threadID,
			ReviewID:   reviewID,
			FilePath:   file,
			Selection:  sel,
			CommitHash: commit,
		}); err != nil {
			return AddCommentResult{}, err
		}
		threadCreated = true
	}

	// The numeric suffix comes from the projection's next comment
	// number, which requires a fresh sync when a ThreadCreated was just
	// appended above.
	n, err := s.nextCommentNumber(ctx, threadID)
	if err != nil {
		return AddCommentResult{}, err
	}
	commentID := idgen.Comment(threadID, n)

	if err := appendEvent(s.RepoRoot, reviewID, author, eventlog.CommentAdded, eventlog.CommentAddedData{
		CommentID: commentID,
		ThreadID:  threadID,
		Body:      body,
	}); err != nil {
		return AddCommentResult{}, err
	}

	return AddCommentResult{CommentID: commentID, ThreadID: threadID, ThreadCreated: threadCreated}, nil
}

// AddReply appends a comment directly to an already-known thread,
// backing the `crit reply <thread_id> MESSAGE` CLI verb: unlike
// AddCommentToReview it never creates a thread, since the caller
// already has a thread_id rather than a (file, line) anchor.
//
// expectedHash, when non-empty, must match the thread's current
// CommitHash or the call fails with ErrOptimisticLock (see
// AddCommentToReview).
func (s *Service) AddReply(ctx context.Context, threadID, body, expectedHash string) (AddCommentResult, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return AddCommentResult{}, err
	}

	t, ok, err := findThreadByID(ctx, sess.st, threadID)
	if err != nil {
		s.close(sess)
		return AddCommentResult{}, internalf("find thread", err)
	}
	if !ok {
		s.close(sess)
		return AddCommentResult{}, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	if expectedHash != "" && expectedHash != t.CommitHash {
		s.close(sess)
		return AddCommentResult{}, &ErrOptimisticLock{ThreadID: threadID, Expected: expectedHash, Actual: t.CommitHash}
	}

	detail, err := sess.st.ReviewDetail(ctx, t.ReviewID)
	s.close(sess)
	if err != nil {
		return AddCommentResult{}, wrapStoreErr(err, t.ReviewID)
	}
	if detail.Status != store.ReviewOpen {
		return AddCommentResult{}, &ErrInvalidReviewStatus{Actual: string(detail.Status), Expected: string(store.ReviewOpen)}
	}

	author := s.identity()
	n, err := s.nextCommentNumber(ctx, threadID)
	if err != nil {
		return AddCommentResult{}, err
	}
	commentID := idgen.Comment(threadID, n)

	if err := appendEvent(s.RepoRoot, t.ReviewID, author, eventlog.CommentAdded, eventlog.CommentAddedData{
		CommentID: commentID,
		ThreadID:  threadID,
		Body:      body,
	}); err != nil {
		return AddCommentResult{}, err
	}

	return AddCommentResult{CommentID: commentID, ThreadID: threadID}, nil
}

// nextCommentNumber opens a fresh session (so a just-appended
// ThreadCreated is visible) and returns the next sequence number for
// threadID.
func (s *Service) nextCommentNumber(ctx context.Context, threadID string) (int, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return 0, err
	}
	defer s.close(sess)
	n, err := sess.st.NextCommentNumber(ctx, threadID)
	if err != nil {
		return 0, internalf("next comment number", err)
	}
	return n, nil
}

// resolveBaselineCommit implements spec.md §4.H's commit-resolution
// fallback chain for new threads: prefer final_commit, else
// commit_for_anchor(scm_anchor), else commit_for_anchor(jj_change_id)
// (legacy), else initial_commit.
func (s *Service) resolveBaselineCommit(ctx context.Context, sess *session, detail store.ReviewDetail) (string, error) {
	if detail.FinalCommit != "" {
		return detail.FinalCommit, nil
	}
	if detail.SCMAnchor != "" {
		if c, err := sess.scm.CommitForAnchor(ctx, detail.SCMAnchor); err == nil {
			return c, nil
		}
	}
	if detail.JJChangeID != "" {
		if c, err := sess.scm.CommitForAnchor(ctx, detail.JJChangeID); err == nil {
			return c, nil
		}
	}
	if detail.InitialCommit != "" {
		return detail.InitialCommit, nil
	}
	return "", internalf("resolve baseline commit", fmt.Errorf("review %s has no resolvable commit", detail.ReviewID))
}
