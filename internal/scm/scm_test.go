package scm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAnchorRejectsFlagLooking(t *testing.T) {
	err := sanitizeAnchor("--upload-pack=evil")
	var invalid *InvalidAnchor
	require.ErrorAs(t, err, &invalid)
}

func TestSanitizeAnchorRejectsControlChars(t *testing.T) {
	require.Error(t, sanitizeAnchor("main\nrm -rf /"))
	require.Error(t, sanitizeAnchor("main\x00"))
}

func TestSanitizeAnchorAcceptsOrdinaryRefs(t *testing.T) {
	assert.NoError(t, sanitizeAnchor("main"))
	assert.NoError(t, sanitizeAnchor("feature/foo"))
	assert.NoError(t, sanitizeAnchor("deadbeefcafe"))
}

func TestSanitizePathRejectsTraversal(t *testing.T) {
	require.Error(t, sanitizePath("../secrets"))
	require.Error(t, sanitizePath("a/../../b"))
	require.Error(t, sanitizePath("/etc/passwd"))
	require.Error(t, sanitizePath(""))
}

func TestSanitizePathAcceptsOrdinary(t *testing.T) {
	assert.NoError(t, sanitizePath("src/main.go"))
	assert.NoError(t, sanitizePath("README.md"))
}

func TestFakeCommitAndParent(t *testing.T) {
	ctx := context.Background()
	f := NewFake("/repo")
	base, err := f.CurrentCommit(ctx)
	require.NoError(t, err)

	next := f.Commit(map[string]string{"a.go": "v2"})
	parent, err := f.ParentCommit(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, base, parent)

	cur, err := f.CurrentCommit(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, cur)
}

func TestFakeParentOfRootCommitFails(t *testing.T) {
	ctx := context.Background()
	f := NewFake("/repo")
	base, _ := f.CurrentCommit(ctx)
	_, err := f.ParentCommit(ctx, base)
	var failed *CommandFailed
	require.ErrorAs(t, err, &failed)
}

func TestFakeShowFileAndExists(t *testing.T) {
	ctx := context.Background()
	f := NewFake("/repo")
	c1 := f.Commit(map[string]string{"a.go": "package a\n"})

	ok, err := f.FileExists(ctx, c1, "a.go")
	require.NoError(t, err)
	assert.True(t, ok)

	content, err := f.ShowFile(ctx, c1, "a.go")
	require.NoError(t, err)
	assert.Equal(t, "package a\n", content)

	ok, err = f.FileExists(ctx, c1, "missing.go")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.ShowFile(ctx, c1, "missing.go")
	require.Error(t, err)
}

func TestFakeDiffRegistration(t *testing.T) {
	ctx := context.Background()
	f := NewFake("/repo")
	c1 := f.Commit(map[string]string{"a.go": "one\n"})
	c2 := f.Commit(map[string]string{"a.go": "one\ntwo\n"})

	diff := "@@ -1 +1,2 @@\n one\n+two\n"
	f.SetDiff(c1, c2, "a.go", diff)
	f.SetChangedFiles(c1, c2, []string{"a.go"})

	got, err := f.DiffGitFile(ctx, c1, c2, "a.go")
	require.NoError(t, err)
	assert.Equal(t, diff, got)

	files, err := f.ChangedFilesBetween(ctx, c1, c2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, files)
}

func TestDetectRejectsUnknownPreference(t *testing.T) {
	_, err := Detect(context.Background(), t.TempDir(), Preference("svn"))
	require.Error(t, err)
}

func TestNoBackendFoundIsSentinel(t *testing.T) {
	assert.True(t, errors.Is(NoBackendFound, NoBackendFound))
}
