package eventlog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendReadRoundTrip(t *testing.T) {
	root := t.TempDir()

	ev1, err := New("alice", ReviewCreated, ReviewCreatedData{
		ReviewID: "cr-abc123", Title: "fix thing", SCMKind: "git",
		SCMAnchor: "main", InitialCommit: "deadbeef",
	})
	require.NoError(t, err)
	require.NoError(t, Append(root, "cr-abc123", ev1))

	ev2, err := New("bob", ReviewerVoted, ReviewerVotedData{
		ReviewID: "cr-abc123", Voter: "bob", Vote: "lgtm",
	})
	require.NoError(t, err)
	require.NoError(t, Append(root, "cr-abc123", ev2))

	events, err := Read(root, "cr-abc123", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ReviewCreated, events[0].Event)
	assert.Equal(t, "alice", events[0].Author)
	assert.Equal(t, ReviewerVoted, events[1].Event)
	assert.Equal(t, "bob", events[1].Author)
}

func TestReadFromLineSkipsEarlierEvents(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		ev, err := New("alice", ThreadReopened, ThreadReopenedData{ThreadID: "th-x"})
		require.NoError(t, err)
		require.NoError(t, Append(root, "cr-abc123", ev))
	}
	events, err := Read(root, "cr-abc123", 3)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestReadMissingLogReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	events, err := Read(root, "cr-does-not-exist", 0)
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestReadToleratesBlankLines(t *testing.T) {
	root := t.TempDir()
	ev, err := New("alice", ReviewApproved, ReviewApprovedData{ReviewID: "cr-abc123"})
	require.NoError(t, err)
	require.NoError(t, Append(root, "cr-abc123", ev))

	path := reviewLogPath(root, "cr-abc123")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\n   \n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := Read(root, "cr-abc123", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestReadDetectsCorruptLine(t *testing.T) {
	root := t.TempDir()
	ev, err := New("alice", ReviewApproved, ReviewApprovedData{ReviewID: "cr-abc123"})
	require.NoError(t, err)
	require.NoError(t, Append(root, "cr-abc123", ev))

	path := reviewLogPath(root, "cr-abc123")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not valid json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := Read(root, "cr-abc123", 0)
	require.Len(t, events, 1, "events before the corrupt line are still returned")
	var corrupt *CorruptLog
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 2, corrupt.Line)
}

func TestTotalLinesCountsBlankLines(t *testing.T) {
	root := t.TempDir()
	ev, err := New("alice", ReviewApproved, ReviewApprovedData{ReviewID: "cr-abc123"})
	require.NoError(t, err)
	require.NoError(t, Append(root, "cr-abc123", ev))

	path := reviewLogPath(root, "cr-abc123")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	n, err := TotalLines(root, "cr-abc123")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTotalLinesMissingLogIsZero(t *testing.T) {
	root := t.TempDir()
	n, err := TotalLines(root, "cr-nope")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPrefixHashStableAcrossAppends(t *testing.T) {
	root := t.TempDir()
	ev1, err := New("alice", ReviewApproved, ReviewApprovedData{ReviewID: "cr-abc123"})
	require.NoError(t, err)
	require.NoError(t, Append(root, "cr-abc123", ev1))

	h1, err := PrefixHash(root, "cr-abc123", 1)
	require.NoError(t, err)
	require.NotEmpty(t, h1)

	ev2, err := New("bob", ReviewMerged, ReviewMergedData{ReviewID: "cr-abc123", FinalCommit: "cafe"})
	require.NoError(t, err)
	require.NoError(t, Append(root, "cr-abc123", ev2))

	h2, err := PrefixHash(root, "cr-abc123", 1)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "hash of the first line must not change once more lines are appended")

	h3, err := PrefixHash(root, "cr-abc123", 2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestAppendCreatesParentDirectories(t *testing.T) {
	root := t.TempDir()
	ev, err := New("alice", ReviewApproved, ReviewApprovedData{ReviewID: "cr-fresh"})
	require.NoError(t, err)
	require.NoError(t, Append(root, "cr-fresh", ev))

	_, err = os.Stat(filepath.Join(root, ".crit", "reviews", "cr-fresh", "events.jsonl"))
	require.NoError(t, err)
}

func TestConcurrentAppendsAreAllPersisted(t *testing.T) {
	root := t.TempDir()
	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ev, err := New("agent", ThreadReopened, ThreadReopenedData{ThreadID: "th-concurrent"})
			if err != nil {
				errs <- err
				return
			}
			errs <- Append(root, "cr-concurrent", ev)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := TotalLines(root, "cr-concurrent")
	require.NoError(t, err)
	assert.Equal(t, writers, n, "every concurrent writer's line must survive intact, none interleaved or dropped")
}
