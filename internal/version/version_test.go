package version

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectUninitialized(t *testing.T) {
	root := t.TempDir()
	gen, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, gen)
}

func TestDetectV1FromNonEmptyLegacyLog(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".crit"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".crit", "events.jsonl"), []byte(`{"event":"ReviewCreated"}`+"\n"), 0o644))

	gen, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, V1, gen)
}

func TestDetectV2FromReviewsDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".crit", "reviews"), 0o755))

	gen, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, V2, gen)
}

func TestDetectVersionFileWins(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".crit", "reviews"), 0o755))
	// A non-empty legacy log alone would be detected as v1.
	require.NoError(t, os.WriteFile(filepath.Join(root, ".crit", "events.jsonl"), []byte(`{"event":"ReviewCreated"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".crit", "version"), []byte("2\n"), 0o644))

	gen, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, V2, gen)
}

func TestRequireV2FailsOnV1(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".crit"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".crit", "events.jsonl"), []byte(`{}`+"\n"), 0o644))

	err := RequireV2(root)
	var needsMigration *NeedsMigration
	require.ErrorAs(t, err, &needsMigration)
}

func TestRequireV2AcceptsUninitialized(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, RequireV2(root))
}
