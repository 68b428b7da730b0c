package scm

import (
	"context"
	"fmt"
	"path/filepath"
)

// Preference pins Detect to a single backend, bypassing dual-detection.
type Preference string

const (
	Auto Preference = "auto"
	PreferGit Preference = "git"
	PreferJJ  Preference = "jj"
)

// Detect probes dir (and its ancestors, via each backend's own root
// resolution) for a git and/or jj repository. jj is preferred when both
// are detected and their resolved roots agree, since jj repos are
// typically colocated with a git repo it also manages. If both are
// detected and the roots disagree after canonicalization, detection
// fails with AmbiguousBackend rather than silently picking one.
func Detect(ctx context.Context, dir string, pref Preference) (SCM, error) {
	switch pref {
	case PreferGit:
		return NewGit(ctx, dir)
	case PreferJJ:
		return NewJujutsu(ctx, dir)
	case Auto, "":
		// fall through to dual probe below
	default:
		return nil, fmt.Errorf("scm: unknown backend preference %q", pref)
	}

	jj, jjErr := NewJujutsu(ctx, dir)
	git, gitErr := NewGit(ctx, dir)

	switch {
	case jjErr == nil && gitErr == nil:
		jjRoot, err1 := filepath.Abs(jj.Root())
		gitRoot, err2 := filepath.Abs(git.Root())
		if err1 != nil || err2 != nil || jjRoot != gitRoot {
			return nil, &AmbiguousBackend{GitRoot: git.Root(), JjRoot: jj.Root()}
		}
		return jj, nil
	case jjErr == nil:
		return jj, nil
	case gitErr == nil:
		return git, nil
	default:
		return nil, NoBackendFound
	}
}
