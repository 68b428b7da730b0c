package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriftLawSameCommitIsUnchanged(t *testing.T) {
	res, err := Calculate("", 5)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Status)
	assert.Equal(t, 5, res.CurrentLine)
}

func TestDriftLawEmptyDiffIsUnchangedForEveryLine(t *testing.T) {
	for _, line := range []int{1, 10, 999} {
		res, err := Calculate("", line)
		require.NoError(t, err)
		assert.Equal(t, Unchanged, res.Status)
		assert.Equal(t, line, res.CurrentLine)
	}
}

func TestDriftLawPureInsertionShiftsAnchorsAtOrAfterPoint(t *testing.T) {
	diff := "@@ -3,0 +3,3 @@\n+a\n+b\n+c\n"

	atPoint, err := Calculate(diff, 3)
	require.NoError(t, err)
	assert.Equal(t, Shifted, atPoint.Status)
	assert.Equal(t, 6, atPoint.CurrentLine)

	after, err := Calculate(diff, 5)
	require.NoError(t, err)
	assert.Equal(t, Shifted, after.Status)
	assert.Equal(t, 8, after.CurrentLine)

	before, err := Calculate(diff, 2)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, before.Status)
	assert.Equal(t, 2, before.CurrentLine)
}

func TestDriftLawDeletionShiftsSurvivorsAndMarksDeleted(t *testing.T) {
	// Delete lines 3..4 (inclusive), two lines removed.
	diff := "@@ -1,6 +1,4 @@\n one\n two\n-three\n-four\n five\n six\n"

	survivor, err := Calculate(diff, 5)
	require.NoError(t, err)
	assert.Equal(t, Shifted, survivor.Status)
	assert.Equal(t, 3, survivor.CurrentLine)

	deletedA, err := Calculate(diff, 3)
	require.NoError(t, err)
	assert.Equal(t, Deleted, deletedA.Status)

	deletedB, err := Calculate(diff, 4)
	require.NoError(t, err)
	assert.Equal(t, Deleted, deletedB.Status)
}

func TestDriftScenario3InsertionBeforeAnchor(t *testing.T) {
	diff := "@@ -3,0 +3,3 @@\n+x\n+y\n+z\n"
	res, err := Calculate(diff, 5)
	require.NoError(t, err)
	assert.Equal(t, Shifted, res.Status)
	assert.Equal(t, 5, res.OriginalLine)
	assert.Equal(t, 8, res.CurrentLine)
}

func TestDriftScenario4DeletionOfAnchor(t *testing.T) {
	diff := "@@ -1,5 +1,4 @@\n line1\n line2\n-line3\n line4\n line5\n"
	res, err := Calculate(diff, 3)
	require.NoError(t, err)
	assert.Equal(t, Deleted, res.Status)
}

func TestDriftReplacedAnchorIsDeleted(t *testing.T) {
	// Old line 2 is replaced by a different line: the walk reaches the
	// anchor as a "-" line before any "+" line, so it reports Deleted.
	diff := "@@ -1,3 +1,3 @@\n one\n-two\n+TWO\n three\n"
	res, err := Calculate(diff, 2)
	require.NoError(t, err)
	assert.Equal(t, Deleted, res.Status)
}

func TestDriftHunkEntirelyAfterAnchorLeavesItUntouched(t *testing.T) {
	diff := "@@ -100,2 +100,3 @@\n ninety-nine\n+new\n hundred\n"
	res, err := Calculate(diff, 1)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Status)
	assert.Equal(t, 1, res.CurrentLine)
}

func TestDriftMultipleHunksAccumulateShift(t *testing.T) {
	diff := "@@ -1,0 +1,2 @@\n+a\n+b\n" +
		"@@ -10,0 +12,1 @@\n+c\n"
	res, err := Calculate(diff, 20)
	require.NoError(t, err)
	assert.Equal(t, Shifted, res.Status)
	assert.Equal(t, 23, res.CurrentLine)
}
