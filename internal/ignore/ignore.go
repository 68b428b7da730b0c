// Package ignore filters repository-relative file paths using gitignore
// semantics, per spec.md §4.K. The always-ignored prefixes mirror what
// steveyegge-beads/cmd/bd/doctor/gitignore.go hardcodes for .beads/ —
// crit's own store and logs must never themselves be reviewable — but
// the user-maintained pattern file is matched with a real gitignore
// implementation (github.com/sabhiram/go-gitignore) rather than the
// hand-rolled prefix matcher bkyoung-code-reviewer's
// internal/adapter/repository/git.go uses, which only handles literal
// path prefixes and misses negation, wildcards, and directory-only
// patterns.
package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// alwaysIgnored prefixes can never be overridden by a .critignore
// negation pattern.
var alwaysIgnored = []string{".crit/", ".beads/"}

// Filter applies .critignore semantics to a candidate file list.
type Filter struct {
	matcher      *gitignore.GitIgnore
	hasCritignore bool
}

// Load builds a Filter from repoRoot's .critignore file, if present. A
// missing .critignore is not an error; every path is then subject only
// to the always-ignored prefixes.
func Load(repoRoot string) (*Filter, error) {
	path := filepath.Join(repoRoot, ".critignore")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Filter{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ignore: read %s: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")
	matcher := gitignore.CompileIgnoreLines(lines...)
	return &Filter{matcher: matcher, hasCritignore: true}, nil
}

// Ignores reports whether path should be excluded from review surfaces.
func (f *Filter) Ignores(path string) bool {
	for _, prefix := range alwaysIgnored {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if f.matcher == nil {
		return false
	}
	return f.matcher.MatchesPath(path)
}

// FilterPaths loads repoRoot's .critignore (if any) and partitions paths
// in one call, per SPEC_FULL.md §4.K's
// FilterPaths(root, paths) -> (kept, nIgnored, err) signature.
func FilterPaths(repoRoot string, paths []string) (kept []string, nIgnored int, err error) {
	f, err := Load(repoRoot)
	if err != nil {
		return nil, 0, err
	}
	kept, nIgnored = f.FilterFiles(paths)
	return kept, nIgnored, nil
}

// FilterFiles partitions paths into kept and ignored-count, per
// spec.md §4.K's filter_files(list) -> (kept, n_ignored).
func (f *Filter) FilterFiles(paths []string) (kept []string, nIgnored int) {
	for _, p := range paths {
		if f.Ignores(p) {
			nIgnored++
			continue
		}
		kept = append(kept, p)
	}
	return kept, nIgnored
}

// AllFilesIgnored is raised by a higher layer (the service façade) when
// every file in a review surface was excluded, rather than silently
// proceeding with an empty review.
type AllFilesIgnored struct {
	Count         int
	HasCritignore bool
}

func (e *AllFilesIgnored) Error() string {
	if e.HasCritignore {
		return fmt.Sprintf("all %d candidate files are excluded by .critignore", e.Count)
	}
	return fmt.Sprintf("all %d candidate files are excluded (no .critignore present)", e.Count)
}

// HasCritignore reports whether a user-maintained .critignore was
// loaded, used to populate AllFilesIgnored.HasCritignore.
func (f *Filter) HasCritignore() bool { return f.hasCritignore }
