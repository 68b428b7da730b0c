// Package config loads crit's small set of startup-only settings:
// SCM preference and default output format. Settings are read fresh on
// every invocation rather than cached, the same hermeticity
// steveyegge-beads/internal/config gives its own bootstrap flags (see
// yaml_config.go's comment on GH#536) — a long-lived process here would
// go stale the moment a user edited config.yaml or an env var between
// commands, and crit has no daemon to amortize the cost of rereading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the settings a command needs before it can do anything
// else: which SCM to talk to, and how to format output.
type Config struct {
	SCMPreference string `yaml:"scm_preference"`
	DefaultFormat string `yaml:"default_format"`
}

// fileConfig mirrors the on-disk .crit/config.yaml shape. A field left
// unset in the file stays the zero value, and Load fills it from env
// vars or the hardcoded default below.
type fileConfig struct {
	SCMPreference string `yaml:"scm_preference"`
	DefaultFormat string `yaml:"default_format"`
}

// Load reads <repoRoot>/.crit/config.yaml, if present, then applies
// CRIT_SCM and FORMAT environment overrides on top of it. A missing
// config.yaml is not an error — every field just falls back to its
// default.
func Load(repoRoot string) (Config, error) {
	cfg := Config{SCMPreference: "auto", DefaultFormat: "text"}

	path := filepath.Join(repoRoot, ".crit", "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		var fc fileConfig
		if unmarshalErr := yaml.Unmarshal(data, &fc); unmarshalErr != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, unmarshalErr)
		}
		if fc.SCMPreference != "" {
			cfg.SCMPreference = fc.SCMPreference
		}
		if fc.DefaultFormat != "" {
			cfg.DefaultFormat = fc.DefaultFormat
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if v := os.Getenv("CRIT_SCM"); v != "" {
		cfg.SCMPreference = v
	}
	if v := os.Getenv("FORMAT"); v != "" {
		cfg.DefaultFormat = v
	}

	return cfg, nil
}
