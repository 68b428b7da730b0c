// Package drift re-anchors a thread's original line against a later
// commit by walking the unified diff between the thread's baseline and
// the commit in question. The algorithm follows spec.md §4.E exactly;
// the hunk parsing it walks is internal/diffutil, adapted from
// bkyoung-code-reviewer's internal/diff/parser.go.
package drift

import "github.com/critlabs/crit/internal/diffutil"

// Status tags which of the four outcomes a Result represents. Modeled
// as a tagged struct rather than an interface hierarchy: callers switch
// on Status once rather than type-switching across four concrete types.
type Status int

const (
	Unchanged Status = iota
	Shifted
	Modified
	Deleted
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Shifted:
		return "shifted"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Result is the outcome of re-anchoring one thread against one diff.
type Result struct {
	Status       Status
	OriginalLine int
	// CurrentLine is meaningful for Unchanged and Shifted only.
	CurrentLine int
}

// Calculate re-anchors originalLine using the unified diff text between
// a thread's baseline commit and the commit being checked against.
func Calculate(diffText string, originalLine int) (Result, error) {
	hunks, err := diffutil.Parse(diffText)
	if err != nil {
		return Result{}, err
	}

	current := originalLine
	for _, h := range hunks {
		hunkOldEnd := h.OldStart + h.OldCount - 1
		if h.OldCount == 0 {
			// Pure insertion: the new lines sit logically before
			// OldStart, so there is no old-side line they replace.
			hunkOldEnd = h.OldStart - 1
		}

		switch {
		case h.OldStart > originalLine:
			// Hunk entirely after the anchor; no effect.
			continue
		case hunkOldEnd < originalLine:
			// Hunk entirely before the anchor; apply its net line delta.
			delta := h.NewCount - h.OldCount
			if delta < 0 && current < -delta {
				current = 0
			} else {
				current += delta
			}
			continue
		default:
			res, ok := walkHunk(h, originalLine)
			if !ok {
				return Result{Status: Modified, OriginalLine: originalLine}, nil
			}
			if res.deleted {
				return Result{Status: Deleted, OriginalLine: originalLine}, nil
			}
			current = res.newLine
		}
	}

	if current == originalLine {
		return Result{Status: Unchanged, OriginalLine: originalLine, CurrentLine: current}, nil
	}
	return Result{Status: Shifted, OriginalLine: originalLine, CurrentLine: current}, nil
}

type walkResult struct {
	newLine int
	deleted bool
}

// walkHunk tracks paired old/new line cursors through a hunk that
// straddles originalLine. ok is false when the walk completes without
// ever visiting originalLine as a context line (Modified).
func walkHunk(h diffutil.Hunk, originalLine int) (res walkResult, ok bool) {
	oldCursor := h.OldStart
	newCursor := h.NewStart

	for _, line := range h.Lines {
		switch line.Kind {
		case diffutil.Context:
			if oldCursor == originalLine {
				return walkResult{newLine: newCursor}, true
			}
			oldCursor++
			newCursor++
		case diffutil.Deletion:
			if oldCursor == originalLine {
				return walkResult{deleted: true}, true
			}
			oldCursor++
		case diffutil.Addition:
			newCursor++
		}
	}
	return walkResult{}, false
}
