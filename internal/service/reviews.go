package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/critlabs/crit/internal/eventlog"
	"github.com/critlabs/crit/internal/idgen"
	"github.com/critlabs/crit/internal/store"
)

// CreateReview starts a new review against the SCM's current position.
// title is required; description and requestedReviewers are optional.
func (s *Service) CreateReview(ctx context.Context, title, description string, requestedReviewers []string) (store.Review, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return store.Review{}, err
	}
	defer s.close(sess)

	anchor, err := sess.scm.CurrentAnchor(ctx)
	if err != nil {
		return store.Review{}, internalf("resolve current anchor", err)
	}
	commit, err := sess.scm.CurrentCommit(ctx)
	if err != nil {
		return store.Review{}, internalf("resolve current commit", err)
	}

	reviewID, err := idgen.New(idgen.ReviewPrefix)
	if err != nil {
		return store.Review{}, internalf("generate review id", err)
	}

	author := s.identity()
	if err := appendEvent(s.RepoRoot, reviewID, author, eventlog.ReviewCreated, eventlog.ReviewCreatedData{
		ReviewID:           reviewID,
		Title:              title,
		Description:        description,
		SCMKind:            string(sess.scm.Kind()),
		SCMAnchor:          anchor,
		InitialCommit:      commit,
		RequestedReviewers: requestedReviewers,
	}); err != nil {
		return store.Review{}, err
	}

	return s.resyncAndGetReview(ctx, reviewID)
}

// resyncAndGetReview re-syncs (so the just-appended event lands in the
// projection) and returns the freshly projected review row.
func (s *Service) resyncAndGetReview(ctx context.Context, reviewID string) (store.Review, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return store.Review{}, err
	}
	defer s.close(sess)
	detail, err := sess.st.ReviewDetail(ctx, reviewID)
	if err != nil {
		return store.Review{}, wrapStoreErr(err, reviewID)
	}
	return detail.Review, nil
}

// RequestReviewers appends reviewers to reviewID's reviewer set.
func (s *Service) RequestReviewers(ctx context.Context, reviewID string, reviewers []string) error {
	sess, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer s.close(sess)

	if _, err := sess.st.ReviewDetail(ctx, reviewID); err != nil {
		return wrapStoreErr(err, reviewID)
	}

	return appendEvent(s.RepoRoot, reviewID, s.identity(), eventlog.ReviewersRequested, eventlog.ReviewersRequestedData{
		ReviewID:  reviewID,
		Reviewers: reviewers,
	})
}

// Vote records the acting agent's lgtm/block vote on reviewID. kind
// must be "lgtm" or "block".
func (s *Service) Vote(ctx context.Context, reviewID, kind, reason string) error {
	sess, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer s.close(sess)

	if _, err := sess.st.ReviewDetail(ctx, reviewID); err != nil {
		return wrapStoreErr(err, reviewID)
	}

	return appendEvent(s.RepoRoot, reviewID, s.identity(), eventlog.ReviewerVoted, eventlog.ReviewerVotedData{
		ReviewID: reviewID,
		Voter:    s.identity(),
		Vote:     kind,
		Reason:   reason,
	})
}

// Approve transitions reviewID from open to approved.
func (s *Service) Approve(ctx context.Context, reviewID string) error {
	sess, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer s.close(sess)

	detail, err := sess.st.ReviewDetail(ctx, reviewID)
	if err != nil {
		return wrapStoreErr(err, reviewID)
	}
	if detail.Status != store.ReviewOpen {
		return &ErrInvalidReviewStatus{Actual: string(detail.Status), Expected: string(store.ReviewOpen)}
	}

	return appendEvent(s.RepoRoot, reviewID, s.identity(), eventlog.ReviewApproved, eventlog.ReviewApprovedData{ReviewID: reviewID})
}

// Merge transitions reviewID from open or approved to merged, blocked
// by any reviewer's latest vote being "block".
func (s *Service) Merge(ctx context.Context, reviewID, finalCommit string) error {
	sess, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer s.close(sess)

	detail, err := sess.st.ReviewDetail(ctx, reviewID)
	if err != nil {
		return wrapStoreErr(err, reviewID)
	}
	if detail.Status != store.ReviewOpen && detail.Status != store.ReviewApproved {
		return &ErrInvalidReviewStatus{Actual: string(detail.Status), Expected: "open or approved"}
	}
	for _, v := range detail.LatestVotes {
		if v.Vote == "block" {
			return &ErrMergeBlocked{ReviewID: reviewID, Voter: v.Voter}
		}
	}

	if finalCommit == "" {
		finalCommit, err = sess.scm.CurrentCommit(ctx)
		if err != nil {
			return internalf("resolve current commit", err)
		}
	}

	return appendEvent(s.RepoRoot, reviewID, s.identity(), eventlog.ReviewMerged, eventlog.ReviewMergedData{
		ReviewID:    reviewID,
		FinalCommit: finalCommit,
	})
}

// Abandon transitions reviewID to abandoned from any non-terminal status.
func (s *Service) Abandon(ctx context.Context, reviewID, reason string) error {
	sess, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer s.close(sess)

	detail, err := sess.st.ReviewDetail(ctx, reviewID)
	if err != nil {
		return wrapStoreErr(err, reviewID)
	}
	if detail.Status == store.ReviewMerged || detail.Status == store.ReviewAbandoned {
		return &ErrInvalidReviewStatus{Actual: string(detail.Status), Expected: "open or approved"}
	}

	return appendEvent(s.RepoRoot, reviewID, s.identity(), eventlog.ReviewAbandoned, eventlog.ReviewAbandonedData{
		ReviewID: reviewID,
		Reason:   reason,
	})
}

// ListReviews returns reviews matching filter.
func (s *Service) ListReviews(ctx context.Context, filter store.ReviewFilter) ([]store.Review, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close(sess)
	reviews, err := sess.st.ListReviews(ctx, filter)
	if err != nil {
		return nil, internalf("list reviews", err)
	}
	return reviews, nil
}

// GetReview returns a review's detail aggregate.
func (s *Service) GetReview(ctx context.Context, reviewID string) (store.ReviewDetail, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return store.ReviewDetail{}, err
	}
	defer s.close(sess)
	detail, err := sess.st.ReviewDetail(ctx, reviewID)
	if err != nil {
		return store.ReviewDetail{}, wrapStoreErr(err, reviewID)
	}
	return detail, nil
}

// wrapStoreErr turns store.ErrNotFound into the service's ReviewNotFound
// sentinel, leaving any other error to internalf.
func wrapStoreErr(err error, reviewID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrReviewNotFound, reviewID)
	}
	return internalf("review lookup", err)
}
