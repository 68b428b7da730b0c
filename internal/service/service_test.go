package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critlabs/crit/internal/ignore"
	"github.com/critlabs/crit/internal/scm"
	"github.com/critlabs/crit/internal/store"
	syncpkg "github.com/critlabs/crit/internal/sync"
)

// newTestService initializes a v2 .crit/ layout under a temp dir and
// returns a Service wired to an in-memory scm.Fake rooted there.
func newTestService(t *testing.T) (*Service, *scm.Fake) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, Init(root))

	fake := scm.NewFake(root)
	fake.Commit(map[string]string{"main.go": "line1\nline2\nline3\n"})

	svc := New(root, scm.Auto, "tester")
	svc.scmFactory = func(ctx context.Context, repoRoot string, pref scm.Preference) (scm.SCM, error) {
		return fake, nil
	}
	return svc, fake
}

func TestCreateReviewThenList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "Add feature", "desc", []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, "Add feature", review.Title)
	assert.Equal(t, store.ReviewOpen, review.Status)

	reviews, err := svc.ListReviews(ctx, store.ReviewFilter{})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, review.ReviewID, reviews[0].ReviewID)
}

func TestAddCommentToReviewCreatesThreadThenAppendsToIt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)

	res1, err := svc.AddCommentToReview(ctx, review.ReviewID, "main.go", "2", "first comment", "")
	require.NoError(t, err)
	assert.True(t, res1.ThreadCreated)

	res2, err := svc.AddCommentToReview(ctx, review.ReviewID, "main.go", "2", "second comment", "")
	require.NoError(t, err)
	assert.False(t, res2.ThreadCreated)
	assert.Equal(t, res1.ThreadID, res2.ThreadID)
	assert.NotEqual(t, res1.CommentID, res2.CommentID)

	_, comments, err := svc.GetThread(ctx, res1.ThreadID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
}

func TestAddCommentToReviewRejectsMissingFile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)

	_, err = svc.AddCommentToReview(ctx, review.ReviewID, "does-not-exist.go", "1", "body", "")
	require.Error(t, err)
	var notFound *ErrFileNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestMergeBlockedThenUnblockedByNewerVote(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", []string{"bob"})
	require.NoError(t, err)

	require.NoError(t, svc.Vote(ctx, review.ReviewID, "block", "needs work"))

	err = svc.Merge(ctx, review.ReviewID, "final-commit")
	require.Error(t, err)
	var blocked *ErrMergeBlocked
	require.ErrorAs(t, err, &blocked)

	require.NoError(t, svc.Vote(ctx, review.ReviewID, "lgtm", ""))
	require.NoError(t, svc.Merge(ctx, review.ReviewID, "final-commit"))

	detail, err := svc.GetReview(ctx, review.ReviewID)
	require.NoError(t, err)
	assert.Equal(t, store.ReviewMerged, detail.Status)
	assert.Equal(t, "final-commit", detail.FinalCommit)
}

func TestApproveRequiresOpenStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Abandon(ctx, review.ReviewID, "no longer needed"))

	err = svc.Approve(ctx, review.ReviewID)
	var invalidStatus *ErrInvalidReviewStatus
	require.ErrorAs(t, err, &invalidStatus)
}

func TestResolveAndReopenThread(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)
	res, err := svc.AddCommentToReview(ctx, review.ReviewID, "main.go", "1", "body", "")
	require.NoError(t, err)

	require.NoError(t, svc.ResolveThread(ctx, res.ThreadID, "done"))
	thread, _, err := svc.GetThread(ctx, res.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, store.ThreadResolved, thread.Status)

	require.NoError(t, svc.ReopenThread(ctx, res.ThreadID))
	thread, _, err = svc.GetThread(ctx, res.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, store.ThreadOpen, thread.Status)
}

func TestAddReplyAppendsToExistingThreadWithoutCreatingOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)
	res, err := svc.AddCommentToReview(ctx, review.ReviewID, "main.go", "1", "first", "")
	require.NoError(t, err)

	reply, err := svc.AddReply(ctx, res.ThreadID, "a reply", "")
	require.NoError(t, err)
	assert.False(t, reply.ThreadCreated)
	assert.Equal(t, res.ThreadID, reply.ThreadID)

	_, comments, err := svc.GetThread(ctx, res.ThreadID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "a reply", comments[1].Body)
}

func TestAddReplyRejectsStaleExpectedHash(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)
	res, err := svc.AddCommentToReview(ctx, review.ReviewID, "main.go", "1", "first", "")
	require.NoError(t, err)

	_, err = svc.AddReply(ctx, res.ThreadID, "a reply", "not-the-anchor-commit")
	require.Error(t, err)
	var lockErr *ErrOptimisticLock
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, res.ThreadID, lockErr.ThreadID)
}

func TestAddCommentToReviewRejectsStaleExpectedHashOnExistingThread(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)
	res, err := svc.AddCommentToReview(ctx, review.ReviewID, "main.go", "1", "first", "")
	require.NoError(t, err)
	require.True(t, res.ThreadCreated)

	_, err = svc.AddCommentToReview(ctx, review.ReviewID, "main.go", "1", "second", "not-the-anchor-commit")
	require.Error(t, err)
	var lockErr *ErrOptimisticLock
	require.ErrorAs(t, err, &lockErr)
}

func TestGetReviewNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetReview(context.Background(), "cr-nonexistent")
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestOperationsFailBeforeInit(t *testing.T) {
	root := t.TempDir()
	svc := New(root, scm.Auto, "tester")
	_, err := svc.ListReviews(context.Background(), store.ReviewFilter{})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestDiffReturnsUnifiedDiffBetweenInitialAndCurrent(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)

	detail, err := svc.GetReview(ctx, review.ReviewID)
	require.NoError(t, err)

	current, err := fake.CurrentCommit(ctx)
	require.NoError(t, err)
	fake.SetDiff(detail.InitialCommit, current, "", "diff --git a/main.go b/main.go\n")

	text, err := svc.Diff(ctx, review.ReviewID)
	require.NoError(t, err)
	assert.Contains(t, text, "diff --git")
}

func TestChangedFilesAppliesCritignoreFilter(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)

	detail, err := svc.GetReview(ctx, review.ReviewID)
	require.NoError(t, err)

	current, err := fake.CurrentCommit(ctx)
	require.NoError(t, err)
	fake.SetChangedFiles(detail.InitialCommit, current, []string{"main.go", "vendor/lib.go"})

	require.NoError(t, os.WriteFile(filepath.Join(svc.RepoRoot, ".critignore"), []byte("vendor/\n"), 0o644))

	result, err := svc.ChangedFiles(ctx, review.ReviewID)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, result.Files)
	assert.Equal(t, 1, result.IgnoredCount)
	assert.True(t, result.HasCritignore)
}

func TestChangedFilesFailsWhenEveryFileIsIgnored(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)

	detail, err := svc.GetReview(ctx, review.ReviewID)
	require.NoError(t, err)

	current, err := fake.CurrentCommit(ctx)
	require.NoError(t, err)
	fake.SetChangedFiles(detail.InitialCommit, current, []string{"vendor/lib.go"})

	require.NoError(t, os.WriteFile(filepath.Join(svc.RepoRoot, ".critignore"), []byte("vendor/\n"), 0o644))

	_, err = svc.ChangedFiles(ctx, review.ReviewID)
	require.Error(t, err)
	var allIgnored *ignore.AllFilesIgnored
	require.ErrorAs(t, err, &allIgnored)
	assert.Equal(t, 1, allIgnored.Count)
	assert.True(t, allIgnored.HasCritignore)
}

func TestInboxAwaitingVote(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Init(root))
	fake := scm.NewFake(root)
	fake.Commit(map[string]string{"main.go": "a\nb\n"})

	author := New(root, scm.Auto, "alice")
	author.scmFactory = func(ctx context.Context, repoRoot string, pref scm.Preference) (scm.SCM, error) {
		return fake, nil
	}
	review, err := author.CreateReview(context.Background(), "T", "", []string{"bob"})
	require.NoError(t, err)

	bob := New(root, scm.Auto, "bob")
	bob.scmFactory = author.scmFactory
	inbox, err := bob.GetInbox(context.Background())
	require.NoError(t, err)
	require.Len(t, inbox.AwaitingVote, 1)
	assert.Equal(t, review.ReviewID, inbox.AwaitingVote[0].ReviewID)
}

func TestSyncTwiceIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateReview(ctx, "T", "", nil)
	require.NoError(t, err)

	report, err := svc.Sync(ctx, syncpkg.Incremental, "")
	require.NoError(t, err)
	assert.Empty(t, report.Anomalies)
	assert.Empty(t, report.Regressions)
}

func TestInitCreatesV2Layout(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Init(root))
	assert.DirExists(t, filepath.Join(root, ".crit", "reviews"))
	data, err := os.ReadFile(filepath.Join(root, ".crit", "version"))
	require.NoError(t, err)
	assert.Equal(t, "2\n", string(data))
}
