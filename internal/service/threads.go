package service

import (
	"context"
	"fmt"

	"github.com/critlabs/crit/internal/eventlog"
	"github.com/critlabs/crit/internal/store"
)

// ListThreads returns a review's threads, optionally filtered by status
// and/or file path.
func (s *Service) ListThreads(ctx context.Context, reviewID string, status *store.ThreadStatus, file string) ([]store.Thread, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close(sess)
	if _, err := sess.st.ReviewDetail(ctx, reviewID); err != nil {
		return nil, wrapStoreErr(err, reviewID)
	}
	threads, err := sess.st.ListThreads(ctx, reviewID, status, file)
	if err != nil {
		return nil, internalf("list threads", err)
	}
	return threads, nil
}

// GetThread returns a thread's comments alongside the thread row.
func (s *Service) GetThread(ctx context.Context, threadID string) (store.Thread, []store.Comment, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return store.Thread{}, nil, err
	}
	defer s.close(sess)

	t, ok, err := findThreadByID(ctx, sess.st, threadID)
	if err != nil {
		return store.Thread{}, nil, internalf("find thread", err)
	}
	if !ok {
		return store.Thread{}, nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	comments, err := sess.st.ListComments(ctx, threadID)
	if err != nil {
		return store.Thread{}, nil, internalf("list comments", err)
	}
	return t, comments, nil
}

// findThreadByID is a best-effort scan: the store only indexes threads
// by (review_id, file, line) for the open-thread lookup used by
// add_comment_to_review, so a direct thread-id lookup walks every
// review's thread list. Reviews are few enough per process invocation
// that this is not worth a dedicated index.
func findThreadByID(ctx context.Context, st *store.Store, threadID string) (store.Thread, bool, error) {
	reviews, err := st.ListReviews(ctx, store.ReviewFilter{})
	if err != nil {
		return store.Thread{}, false, err
	}
	for _, r := range reviews {
		threads, err := st.ListThreads(ctx, r.ReviewID, nil, "")
		if err != nil {
			return store.Thread{}, false, err
		}
		for _, t := range threads {
			if t.ThreadID == threadID {
				return t, true, nil
			}
		}
	}
	return store.Thread{}, false, nil
}

// ResolveThread transitions threadID from open to resolved.
func (s *Service) ResolveThread(ctx context.Context, threadID, reason string) error {
	return s.transitionThread(ctx, threadID, eventlog.ThreadResolved, eventlog.ThreadResolvedData{ThreadID: threadID, Reason: reason}, store.ThreadOpen)
}

// ReopenThread transitions threadID from resolved back to open.
func (s *Service) ReopenThread(ctx context.Context, threadID string) error {
	return s.transitionThread(ctx, threadID, eventlog.ThreadReopened, eventlog.ThreadReopenedData{ThreadID: threadID}, store.ThreadResolved)
}

func (s *Service) transitionThread(ctx context.Context, threadID string, tag eventlog.Tag, data any, expected store.ThreadStatus) error {
	sess, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer s.close(sess)

	t, ok, err := findThreadByID(ctx, sess.st, threadID)
	if err != nil {
		return internalf("find thread", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	if t.Status != expected {
		return &ErrInvalidReviewStatus{Actual: string(t.Status), Expected: string(expected)}
	}

	return appendEvent(s.RepoRoot, t.ReviewID, s.identity(), tag, data)
}
