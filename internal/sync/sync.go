// Package sync reconciles the per-review event logs under .crit/reviews/
// with the projection store, detecting truncated or rewritten logs
// before trusting them, and replaying new events inside one transaction
// per review. It is the only writer of internal/store.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/critlabs/crit/internal/eventlog"
	"github.com/critlabs/crit/internal/store"
)

// Mode selects how Sync reconciles one or all reviews.
type Mode int

const (
	// Incremental applies only events after each review's stored cursor,
	// refusing to proceed past a detected regression.
	Incremental Mode = iota
	// Rebuild discards every review's projection and cursor, then
	// replays every log from line 0.
	Rebuild
	// AcceptRegression discards one review's projected rows, cursor and
	// file-state, and resyncs it from line 0, so its current log becomes
	// the new trusted baseline.
	AcceptRegression
)

// RegressionKind tags why a review's log failed the trust check.
type RegressionKind string

const (
	Shrunk         RegressionKind = "Shrunk"
	PrefixMismatch RegressionKind = "PrefixMismatch"
)

// Regression records one review whose log could not be trusted as a
// pure append since the last sync.
type Regression struct {
	ReviewID string
	Kind     RegressionKind
	Detail   string
}

// Report summarizes one Sync invocation.
type Report struct {
	Applied     int
	FilesSynced int
	FilesSkipped int
	Anomalies   []store.Anomaly
	Regressions []Regression
}

// Sync walks every review directory under <repoRoot>/.crit/reviews,
// reconciling each one into st per mode. acceptReviewID is only
// consulted when mode == AcceptRegression.
func Sync(ctx context.Context, st *store.Store, repoRoot string, mode Mode, acceptReviewID string) (Report, error) {
	reviewsDir := filepath.Join(repoRoot, ".crit", "reviews")
	reviewIDs, err := listReviewDirs(reviewsDir)
	if err != nil {
		return Report{}, err
	}

	var report Report

	if mode == Rebuild {
		for _, id := range reviewIDs {
			tx, err := st.BeginTx(ctx)
			if err != nil {
				return report, fmt.Errorf("sync: begin rebuild tx for %s: %w", id, err)
			}
			if err := store.DeleteReviewProjection(ctx, tx, id); err != nil {
				tx.Rollback()
				return report, err
			}
			if err := tx.Commit(); err != nil {
				return report, fmt.Errorf("sync: commit rebuild wipe for %s: %w", id, err)
			}
		}
	}

	for _, id := range reviewIDs {
		forceFromZero := mode == Rebuild || (mode == AcceptRegression && id == acceptReviewID)
		if mode == AcceptRegression && id == acceptReviewID {
			// "The current file state becomes the new baseline" (spec.md
			// §4.G): the old projection can't be trusted to match a log
			// that was rewritten underneath it, so it is discarded and
			// rebuilt from the new log exactly like a single-review
			// rebuild, not merely cursor-advanced past it.
			tx, err := st.BeginTx(ctx)
			if err != nil {
				return report, fmt.Errorf("sync: begin accept-regression tx for %s: %w", id, err)
			}
			if err := store.DeleteReviewProjection(ctx, tx, id); err != nil {
				tx.Rollback()
				return report, err
			}
			if err := tx.Commit(); err != nil {
				return report, fmt.Errorf("sync: commit accept-regression wipe for %s: %w", id, err)
			}
		}

		result, err := syncOneReview(ctx, st, repoRoot, id, forceFromZero)
		if err != nil {
			return report, err
		}
		report.Applied += result.applied
		if result.synced {
			report.FilesSynced++
		} else {
			report.FilesSkipped++
		}
		report.Anomalies = append(report.Anomalies, result.anomalies...)
		if result.regression != nil {
			report.Regressions = append(report.Regressions, *result.regression)
		}
	}
	return report, nil
}

type reviewSyncResult struct {
	applied    int
	synced     bool
	anomalies  []store.Anomaly
	regression *Regression
}

func syncOneReview(ctx context.Context, st *store.Store, repoRoot, reviewID string, forceFromZero bool) (reviewSyncResult, error) {
	cursor := store.Cursor{}
	if !forceFromZero {
		c, err := st.GetCursor(ctx, reviewID)
		if err != nil {
			return reviewSyncResult{}, fmt.Errorf("sync: get cursor for %s: %w", reviewID, err)
		}
		cursor = c
	}

	totalLines, err := eventlog.TotalLines(repoRoot, reviewID)
	if err != nil {
		return reviewSyncResult{}, fmt.Errorf("sync: total lines for %s: %w", reviewID, err)
	}

	if !forceFromZero && cursor.LastLineNumber > 0 {
		checkLen := cursor.LastLineNumber
		if totalLines < checkLen {
			return reviewSyncResult{synced: false, regression: &Regression{
				ReviewID: reviewID, Kind: Shrunk,
				Detail: fmt.Sprintf("log now has %d lines, fewer than the %d last synced", totalLines, cursor.LastLineNumber),
			}}, nil
		}
		prefixHash, err := eventlog.PrefixHash(repoRoot, reviewID, checkLen)
		if err != nil {
			return reviewSyncResult{}, fmt.Errorf("sync: prefix hash for %s: %w", reviewID, err)
		}
		if cursor.LastPrefixHash != "" && prefixHash != cursor.LastPrefixHash {
			return reviewSyncResult{synced: false, regression: &Regression{
				ReviewID: reviewID, Kind: PrefixMismatch,
				Detail: "the first synced lines no longer hash the same; the log was rewritten, not just appended to",
			}}, nil
		}
	}

	fromLine := 0
	if !forceFromZero {
		fromLine = cursor.LastLineNumber
	}
	events, err := eventlog.Read(repoRoot, reviewID, fromLine+1)
	if err != nil {
		return reviewSyncResult{}, fmt.Errorf("sync: read events for %s: %w", reviewID, err)
	}

	tx, err := st.BeginTx(ctx)
	if err != nil {
		return reviewSyncResult{}, fmt.Errorf("sync: begin apply tx for %s: %w", reviewID, err)
	}

	var anomalies []store.Anomaly
	touchedFiles := map[string]bool{}
	for _, ev := range events {
		anomaly, err := store.ApplyEvent(ctx, tx, reviewID, ev)
		if err != nil {
			tx.Rollback()
			return reviewSyncResult{}, fmt.Errorf("sync: apply event for %s: %w", reviewID, err)
		}
		if anomaly != nil {
			anomalies = append(anomalies, *anomaly)
		}
		if path := filePathOf(ev); path != "" {
			touchedFiles[path] = true
		}
	}

	finalHash, err := eventlog.PrefixHash(repoRoot, reviewID, totalLines)
	if err != nil {
		tx.Rollback()
		return reviewSyncResult{}, fmt.Errorf("sync: final prefix hash for %s: %w", reviewID, err)
	}
	if err := store.SetCursor(ctx, tx, reviewID, store.Cursor{LastLineNumber: totalLines, LastPrefixHash: finalHash}, nowUTC()); err != nil {
		tx.Rollback()
		return reviewSyncResult{}, err
	}

	for path := range touchedFiles {
		full := filepath.Join(repoRoot, path)
		info, err := os.Stat(full)
		var mtime string
		if err == nil {
			mtime = info.ModTime().UTC().Format(time.RFC3339Nano)
		}
		lineCount, _ := countLines(full)
		if err := store.SetFileState(ctx, tx, reviewID, path, lineCount, mtime, ""); err != nil {
			tx.Rollback()
			return reviewSyncResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return reviewSyncResult{}, fmt.Errorf("sync: commit apply for %s: %w", reviewID, err)
	}

	return reviewSyncResult{applied: len(events), synced: true, anomalies: anomalies}, nil
}

func listReviewDirs(reviewsDir string) ([]string, error) {
	entries, err := os.ReadDir(reviewsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync: list %s: %w", reviewsDir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// filePathOf extracts the file path a ThreadCreated event touches, if
// any, so the sync loop can refresh review_file_state for it. Other
// event kinds don't reference a file.
func filePathOf(ev eventlog.Event) string {
	if ev.Event != eventlog.ThreadCreated {
		return ""
	}
	var d eventlog.ThreadCreatedData
	if err := json.Unmarshal(ev.Data, &d); err != nil {
		return ""
	}
	return d.FilePath
}

func countLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	n := 1
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n, nil
}

// nowUTC is factored out so tests could substitute it if ever needed;
// production code always calls through to the real clock.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339Nano) }
