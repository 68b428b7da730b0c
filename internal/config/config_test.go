package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.SCMPreference)
	assert.Equal(t, "text", cfg.DefaultFormat)
}

func TestLoadReadsConfigYaml(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".crit"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".crit", "config.yaml"),
		[]byte("scm_preference: jj\ndefault_format: json\n"), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "jj", cfg.SCMPreference)
	assert.Equal(t, "json", cfg.DefaultFormat)
}

func TestEnvVarsOverrideConfigYaml(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".crit"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".crit", "config.yaml"),
		[]byte("scm_preference: jj\ndefault_format: json\n"), 0o644))

	t.Setenv("CRIT_SCM", "git")
	t.Setenv("FORMAT", "text")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "git", cfg.SCMPreference)
	assert.Equal(t, "text", cfg.DefaultFormat)
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".crit"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".crit", "config.yaml"),
		[]byte("scm_preference: [unterminated\n"), 0o644))

	_, err := Load(root)
	assert.Error(t, err)
}
