// Package version detects which generation of the on-disk .crit/ layout
// a repository is using, per spec.md §4.J.
package version

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Generation is the detected on-disk layout generation.
type Generation int

const (
	// Uninitialized means there is no version file, no non-empty legacy
	// log and no reviews/ directory (including when .crit/ is absent);
	// the first write to the repo is free to create a v2 layout directly.
	Uninitialized Generation = iota
	V1
	V2
)

func (g Generation) String() string {
	switch g {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return "uninitialized"
	}
}

// Detect applies the priority order of spec.md §4.J: an explicit
// .crit/version file wins; otherwise a non-empty legacy
// .crit/events.jsonl implies v1; otherwise a .crit/reviews/ directory
// implies v2; otherwise the repo is uninitialized.
func Detect(repoRoot string) (Generation, error) {
	critDir := filepath.Join(repoRoot, ".crit")

	versionPath := filepath.Join(critDir, "version")
	if data, err := os.ReadFile(versionPath); err == nil {
		n, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr != nil {
			return Uninitialized, fmt.Errorf("version: parse %s: %w", versionPath, convErr)
		}
		switch n {
		case 1:
			return V1, nil
		case 2:
			return V2, nil
		default:
			return Uninitialized, fmt.Errorf("version: unknown version %d in %s", n, versionPath)
		}
	} else if !os.IsNotExist(err) {
		return Uninitialized, fmt.Errorf("version: read %s: %w", versionPath, err)
	}

	legacyLog := filepath.Join(critDir, "events.jsonl")
	if info, err := os.Stat(legacyLog); err == nil && info.Size() > 0 {
		return V1, nil
	}

	reviewsDir := filepath.Join(critDir, "reviews")
	if info, err := os.Stat(reviewsDir); err == nil && info.IsDir() {
		return V2, nil
	}

	return Uninitialized, nil
}

// NeedsMigration is the sentinel RequireV2 returns for a v1 repository,
// carrying a remediation string for the CLI to surface to the user.
type NeedsMigration struct {
	Remediation string
}

func (e *NeedsMigration) Error() string {
	return fmt.Sprintf("repository uses the legacy v1 layout: %s", e.Remediation)
}

// RequireV2 enforces that repoRoot is not on the legacy v1 layout.
// Uninitialized is accepted: the first write simply becomes v2.
func RequireV2(repoRoot string) error {
	gen, err := Detect(repoRoot)
	if err != nil {
		return err
	}
	if gen == V1 {
		return &NeedsMigration{Remediation: "run `crit migrate` to move .crit/events.jsonl to the per-review v2 layout"}
	}
	return nil
}
