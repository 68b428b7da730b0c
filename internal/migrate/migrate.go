// Package migrate moves a repository from the legacy v1 layout (one
// shared .crit/events.jsonl) to v2 (one events.jsonl per review under
// .crit/reviews/<id>/), per spec.md §4.I.
//
// The backup step is grounded on steveyegge-beads/internal/reset/backup.go's
// timestamped-sibling-directory-before-destructive-operation idiom,
// narrowed to a single file: bd backs up the whole .beads/ directory
// because its reset operation can touch anything under it; crit's
// migration only ever replaces one file, so a same-volume os.Rename to
// a sibling name is both simpler and, unlike a recursive directory
// copy, atomic.
package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/critlabs/crit/internal/eventlog"
	"github.com/critlabs/crit/internal/version"
)

// Options controls one migration run.
type Options struct {
	DryRun bool
	// Backup is false in the zero value; the CLI's --backup flag defaults
	// to true. When true the legacy log is moved aside; when false it is
	// deleted.
	Backup bool
}

// Report summarizes what Run did (or, in dry-run mode, would do).
type Report struct {
	Skipped       bool // already v2, or nothing to migrate
	DryRun        bool
	ReviewCount   int
	EventCount    int
	BackupPath    string // empty if Backup was false
	LegacyRemoved bool   // true if the legacy log was deleted outright
}

// CorruptHistory is returned when the legacy log references a thread
// before that thread's ThreadCreated event appears earlier in the file.
type CorruptHistory struct{ Line int }

func (e *CorruptHistory) Error() string {
	return fmt.Sprintf("migrate: corrupt history at line %d: event references a thread before its creation", e.Line)
}

// Run executes the v1->v2 migration against repoRoot.
func Run(repoRoot string, opts Options) (Report, error) {
	critDir := filepath.Join(repoRoot, ".crit")
	if _, err := os.Stat(critDir); os.IsNotExist(err) {
		return Report{}, fmt.Errorf("migrate: %s does not exist (run `crit init` first)", critDir)
	} else if err != nil {
		return Report{}, fmt.Errorf("migrate: stat %s: %w", critDir, err)
	}

	gen, err := version.Detect(repoRoot)
	if err != nil {
		return Report{}, fmt.Errorf("migrate: detect version: %w", err)
	}
	if gen == version.V2 {
		return Report{Skipped: true}, nil
	}
	if gen == version.Uninitialized {
		// .crit/ exists but carries no legacy log and no reviews/ dir:
		// nothing to migrate. Bring it up to v2 directly rather than
		// erroring, matching version.RequireV2's "first write becomes
		// v2" treatment of this state.
		if !opts.DryRun {
			if err := os.MkdirAll(filepath.Join(critDir, "reviews"), 0o755); err != nil {
				return Report{}, fmt.Errorf("migrate: mkdir reviews: %w", err)
			}
			if err := os.WriteFile(filepath.Join(critDir, "version"), []byte("2\n"), 0o644); err != nil {
				return Report{}, fmt.Errorf("migrate: write version: %w", err)
			}
		}
		return Report{Skipped: true, DryRun: opts.DryRun}, nil
	}

	legacyPath := filepath.Join(critDir, "events.jsonl")
	lines, err := readLines(legacyPath)
	if err != nil {
		return Report{}, fmt.Errorf("migrate: read %s: %w", legacyPath, err)
	}

	grouped, eventCount, err := groupByReview(lines)
	if err != nil {
		return Report{}, err
	}

	for reviewID, events := range grouped {
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})
		grouped[reviewID] = events
	}

	report := Report{DryRun: opts.DryRun, ReviewCount: len(grouped), EventCount: eventCount}

	if opts.DryRun {
		return report, nil
	}

	for reviewID, events := range grouped {
		for _, ev := range events {
			if err := eventlog.Append(repoRoot, reviewID, ev); err != nil {
				return report, fmt.Errorf("migrate: append event for review %s: %w", reviewID, err)
			}
		}
	}

	if opts.Backup {
		backupPath := legacyPath + ".v1.backup"
		if err := os.Rename(legacyPath, backupPath); err != nil {
			return report, fmt.Errorf("migrate: rename legacy log to backup: %w", err)
		}
		report.BackupPath = backupPath
	} else {
		if err := os.Remove(legacyPath); err != nil {
			return report, fmt.Errorf("migrate: remove legacy log: %w", err)
		}
		report.LegacyRemoved = true
	}

	if err := os.WriteFile(filepath.Join(critDir, "version"), []byte("2\n"), 0o644); err != nil {
		return report, fmt.Errorf("migrate: write version: %w", err)
	}

	indexPath := filepath.Join(critDir, "index.db")
	if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
		return report, fmt.Errorf("migrate: remove stale index.db: %w", err)
	}

	return report, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := strings.Split(string(data), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// groupByReview parses every legacy log line and buckets it by the
// review_id it belongs to, per spec.md §4.I step 3: events carrying a
// review_id route directly; ThreadResolved/ThreadReopened/CommentAdded
// carry only a thread_id and are routed via the owning review first
// established by an earlier ThreadCreated in the same pass.
func groupByReview(lines []string) (map[string][]eventlog.Event, int, error) {
	grouped := map[string][]eventlog.Event{}
	threadOwner := map[string]string{}

	for i, raw := range lines {
		lineNo := i + 1
		var ev eventlog.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, 0, fmt.Errorf("migrate: parse line %d: %w", lineNo, err)
		}

		reviewID, err := reviewIDFor(ev, threadOwner, lineNo)
		if err != nil {
			return nil, 0, err
		}
		if ev.Event == eventlog.ThreadCreated {
			var d eventlog.ThreadCreatedData
			if err := json.Unmarshal(ev.Data, &d); err != nil {
				return nil, 0, fmt.Errorf("migrate: decode ThreadCreated at line %d: %w", lineNo, err)
			}
			threadOwner[d.ThreadID] = d.ReviewID
		}
		grouped[reviewID] = append(grouped[reviewID], ev)
	}
	return grouped, len(lines), nil
}

func reviewIDFor(ev eventlog.Event, threadOwner map[string]string, lineNo int) (string, error) {
	switch ev.Event {
	case eventlog.ReviewCreated:
		var d eventlog.ReviewCreatedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode ReviewCreated at line %d: %w", lineNo, err)
		}
		return d.ReviewID, nil
	case eventlog.ReviewersRequested:
		var d eventlog.ReviewersRequestedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode ReviewersRequested at line %d: %w", lineNo, err)
		}
		return d.ReviewID, nil
	case eventlog.ReviewerVoted:
		var d eventlog.ReviewerVotedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode ReviewerVoted at line %d: %w", lineNo, err)
		}
		return d.ReviewID, nil
	case eventlog.ReviewApproved:
		var d eventlog.ReviewApprovedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode ReviewApproved at line %d: %w", lineNo, err)
		}
		return d.ReviewID, nil
	case eventlog.ReviewMerged:
		var d eventlog.ReviewMergedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode ReviewMerged at line %d: %w", lineNo, err)
		}
		return d.ReviewID, nil
	case eventlog.ReviewAbandoned:
		var d eventlog.ReviewAbandonedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode ReviewAbandoned at line %d: %w", lineNo, err)
		}
		return d.ReviewID, nil
	case eventlog.ThreadCreated:
		var d eventlog.ThreadCreatedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode ThreadCreated at line %d: %w", lineNo, err)
		}
		return d.ReviewID, nil
	case eventlog.ThreadResolved:
		var d eventlog.ThreadResolvedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode ThreadResolved at line %d: %w", lineNo, err)
		}
		reviewID, ok := threadOwner[d.ThreadID]
		if !ok {
			return "", &CorruptHistory{Line: lineNo}
		}
		return reviewID, nil
	case eventlog.ThreadReopened:
		var d eventlog.ThreadReopenedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode ThreadReopened at line %d: %w", lineNo, err)
		}
		reviewID, ok := threadOwner[d.ThreadID]
		if !ok {
			return "", &CorruptHistory{Line: lineNo}
		}
		return reviewID, nil
	case eventlog.CommentAdded:
		var d eventlog.CommentAddedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return "", fmt.Errorf("migrate: decode CommentAdded at line %d: %w", lineNo, err)
		}
		reviewID, ok := threadOwner[d.ThreadID]
		if !ok {
			return "", &CorruptHistory{Line: lineNo}
		}
		return reviewID, nil
	default:
		return "", fmt.Errorf("migrate: unknown event tag %q at line %d", ev.Event, lineNo)
	}
}
