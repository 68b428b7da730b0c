package store

import (
	"context"
	"testing"
	"time"

	"github.com/critlabs/crit/internal/eventlog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func apply(t *testing.T, s *Store, reviewID string, ev eventlog.Event) *Anomaly {
	t.Helper()
	ctx := context.Background()
	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	anomaly, err := ApplyEvent(ctx, tx, reviewID, ev)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return anomaly
}

func mustEvent(t *testing.T, author string, tag eventlog.Tag, data any) eventlog.Event {
	t.Helper()
	ev, err := eventlog.New(author, tag, data)
	require.NoError(t, err)
	return ev
}

func TestApplyReviewCreatedThenDetail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewCreated, eventlog.ReviewCreatedData{
		ReviewID: "cr-1", Title: "fix", SCMKind: "git", SCMAnchor: "main", InitialCommit: "c0",
		RequestedReviewers: []string{"bob"},
	}))

	detail, err := s.ReviewDetail(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, ReviewOpen, detail.Status)
	require.Equal(t, "fix", detail.Title)
	require.Equal(t, 0, detail.ThreadCount)

	inbox, err := s.InboxAwaitingVote(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, "cr-1", inbox[0].ReviewID)
}

func TestApproveRequiresOpenStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewCreated, eventlog.ReviewCreatedData{
		ReviewID: "cr-1", Title: "t", InitialCommit: "c0",
	}))
	anomaly := apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewApproved, eventlog.ReviewApprovedData{ReviewID: "cr-1"}))
	require.Nil(t, anomaly)

	detail, err := s.ReviewDetail(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, ReviewApproved, detail.Status)

	anomaly = apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewApproved, eventlog.ReviewApprovedData{ReviewID: "cr-1"}))
	require.NotNil(t, anomaly)
	require.Equal(t, AnomalyInvalidTransition, anomaly.Kind)
}

func TestMergeBlockedByLatestBlockVote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewCreated, eventlog.ReviewCreatedData{
		ReviewID: "cr-1", Title: "t", InitialCommit: "c0",
	}))
	apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewerVoted, eventlog.ReviewerVotedData{
		ReviewID: "cr-1", Voter: "alice", Vote: "lgtm",
	}))
	apply(t, s, "cr-1", mustEvent(t, "bob", eventlog.ReviewerVoted, eventlog.ReviewerVotedData{
		ReviewID: "cr-1", Voter: "bob", Vote: "block",
	}))

	anomaly := apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewMerged, eventlog.ReviewMergedData{
		ReviewID: "cr-1", FinalCommit: "cafe",
	}))
	require.NotNil(t, anomaly)
	detail, err := s.ReviewDetail(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, ReviewOpen, detail.Status)

	// bob updates his vote; merge now succeeds.
	apply(t, s, "cr-1", mustEvent(t, "bob", eventlog.ReviewerVoted, eventlog.ReviewerVotedData{
		ReviewID: "cr-1", Voter: "bob", Vote: "lgtm",
	}))
	anomaly = apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewMerged, eventlog.ReviewMergedData{
		ReviewID: "cr-1", FinalCommit: "cafe",
	}))
	require.Nil(t, anomaly)
	detail, err = s.ReviewDetail(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, ReviewMerged, detail.Status)
	require.Equal(t, "cafe", detail.FinalCommit)
}

func TestThreadCreateCommentAndDuplicateAnchor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewCreated, eventlog.ReviewCreatedData{
		ReviewID: "cr-1", Title: "t", InitialCommit: "c0",
	}))

	line := 10
	apply(t, s, "cr-1", mustEvent(t, "bob", eventlog.ThreadCreated, eventlog.ThreadCreatedData{
		ThreadID: "th-1", ReviewID: "cr-1", FilePath: "src/a.rs",
		Selection: eventlog.Selection{Line: &line}, CommitHash: "c0",
	}))
	apply(t, s, "bob", mustEvent(t, "bob", eventlog.CommentAdded, eventlog.CommentAddedData{
		CommentID: "th-1.1", ThreadID: "th-1", Body: "hi",
	}))

	thread, found, err := s.FindOpenThread(ctx, "cr-1", "src/a.rs", 10)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "th-1", thread.ThreadID)

	next, err := s.NextCommentNumber(ctx, "th-1")
	require.NoError(t, err)
	require.Equal(t, 2, next)

	// A second ThreadCreated at the same anchor while th-1 is still open
	// must not create a duplicate.
	anomaly := apply(t, s, "cr-1", mustEvent(t, "bob", eventlog.ThreadCreated, eventlog.ThreadCreatedData{
		ThreadID: "th-2", ReviewID: "cr-1", FilePath: "src/a.rs",
		Selection: eventlog.Selection{Line: &line}, CommitHash: "c0",
	}))
	require.NotNil(t, anomaly)
	require.Equal(t, AnomalyDuplicateOpenAnchor, anomaly.Kind)

	comments, err := s.ListComments(ctx, "th-1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
}

func TestInboxNewCommentsSinceLastParticipation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewCreated, eventlog.ReviewCreatedData{
		ReviewID: "cr-1", Title: "t", InitialCommit: "c0",
	}))
	line := 1
	apply(t, s, "cr-1", mustEvent(t, "bob", eventlog.ThreadCreated, eventlog.ThreadCreatedData{
		ThreadID: "th-1", ReviewID: "cr-1", FilePath: "a.go",
		Selection: eventlog.Selection{Line: &line}, CommitHash: "c0",
	}))
	apply(t, s, "cr-1", mustEvent(t, "bob", eventlog.CommentAdded, eventlog.CommentAddedData{
		CommentID: "th-1.1", ThreadID: "th-1", Body: "q",
	}))

	inbox, err := s.InboxNewComments(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, inbox, 1, "alice authored the review and has not replied yet")

	apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.CommentAdded, eventlog.CommentAddedData{
		CommentID: "th-1.2", ThreadID: "th-1", Body: "answered",
	}))
	inbox, err = s.InboxNewComments(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, inbox, 0, "alice's own latest comment is now the last one")
}

func TestCursorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.GetCursor(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, Cursor{}, c)

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, SetCursor(ctx, tx, "cr-1", Cursor{LastLineNumber: 5, LastPrefixHash: "abc"}, time.Now().UTC().Format(timeLayout)))
	require.NoError(t, tx.Commit())

	c, err = s.GetCursor(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, 5, c.LastLineNumber)
	require.Equal(t, "abc", c.LastPrefixHash)

	tx, err = s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, ClearCursor(ctx, tx, "cr-1"))
	require.NoError(t, tx.Commit())

	c, err = s.GetCursor(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, Cursor{}, c)
}

func TestListReviewsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	apply(t, s, "cr-1", mustEvent(t, "alice", eventlog.ReviewCreated, eventlog.ReviewCreatedData{ReviewID: "cr-1", Title: "a", InitialCommit: "c0"}))
	apply(t, s, "cr-2", mustEvent(t, "bob", eventlog.ReviewCreated, eventlog.ReviewCreatedData{ReviewID: "cr-2", Title: "b", InitialCommit: "c0"}))
	apply(t, s, "cr-2", mustEvent(t, "bob", eventlog.ReviewApproved, eventlog.ReviewApprovedData{ReviewID: "cr-2"}))

	open := ReviewOpen
	reviews, err := s.ListReviews(ctx, ReviewFilter{Status: &open})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, "cr-1", reviews[0].ReviewID)
}
