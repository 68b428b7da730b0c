package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/critlabs/crit/internal/drift"
	"github.com/critlabs/crit/internal/store"
)

// repoStatus summarizes review counts by status when no review_id is given.
type repoStatus struct {
	Open      int `json:"open"`
	Approved  int `json:"approved"`
	Merged    int `json:"merged"`
	Abandoned int `json:"abandoned"`
}

// threadStatusEntry is one thread's current-line re-anchoring result,
// matching original_source/src/cli/commands/status.rs's
// ThreadStatusEntry: `status <review_id>` is this system's analogue of
// the original's `run_status`, which drives calculate_drift per thread
// rather than leaving drift as an algorithm nothing in the CLI surfaces.
type threadStatusEntry struct {
	ThreadID     string `json:"thread_id"`
	FilePath     string `json:"file_path"`
	OriginalLine int    `json:"original_line"`
	CurrentLine  *int   `json:"current_line,omitempty"`
	DriftStatus  string `json:"drift_status"`
	Status       string `json:"status"`
}

type reviewStatusDetail struct {
	store.ReviewDetail
	ThreadsWithDrift int                 `json:"threads_with_drift"`
	ThreadStatuses   []threadStatusEntry `json:"thread_statuses"`
}

var statusCmd = &cobra.Command{
	Use:   "status [review_id]",
	Short: "Show a review's detail with per-thread drift, or a repo-wide review count summary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return runStatusShow(cmd, args[0])
		}

		reviews, err := newService().ListReviews(context.Background(), store.ReviewFilter{})
		if err != nil {
			return err
		}
		var s repoStatus
		for _, r := range reviews {
			switch r.Status {
			case store.ReviewOpen:
				s.Open++
			case store.ReviewApproved:
				s.Approved++
			case store.ReviewMerged:
				s.Merged++
			case store.ReviewAbandoned:
				s.Abandoned++
			}
		}
		return emit(s, func() {
			fmt.Printf("open: %d  approved: %d  merged: %d  abandoned: %d\n", s.Open, s.Approved, s.Merged, s.Abandoned)
		})
	},
}

// runStatusShow builds a reviewStatusDetail: the review's detail plus,
// for every thread, calculate_drift's result against the review's
// current (or final) commit.
func runStatusShow(cmd *cobra.Command, reviewID string) error {
	ctx := context.Background()
	svc := newService()

	detail, err := svc.GetReview(ctx, reviewID)
	if err != nil {
		return err
	}
	threads, err := svc.ListThreads(ctx, reviewID, nil, "")
	if err != nil {
		return err
	}

	driftCount := 0
	entries := make([]threadStatusEntry, 0, len(threads))
	for _, t := range threads {
		result, err := svc.ThreadDrift(ctx, t.ThreadID)
		if err != nil {
			return err
		}

		entry := threadStatusEntry{
			ThreadID:     t.ThreadID,
			FilePath:     t.FilePath,
			OriginalLine: t.SelectionStart,
			Status:       string(t.Status),
		}
		switch result.Status {
		case drift.Unchanged:
			line := result.CurrentLine
			entry.CurrentLine = &line
			entry.DriftStatus = "unchanged"
		case drift.Shifted:
			line := result.CurrentLine
			entry.CurrentLine = &line
			delta := result.CurrentLine - result.OriginalLine
			sign := ""
			if delta > 0 {
				sign = "+"
			}
			entry.DriftStatus = fmt.Sprintf("shifted(%s%d)", sign, delta)
			driftCount++
		case drift.Modified:
			entry.DriftStatus = "modified"
			driftCount++
		case drift.Deleted:
			entry.DriftStatus = "deleted"
			driftCount++
		}
		entries = append(entries, entry)
	}

	out := reviewStatusDetail{ReviewDetail: detail, ThreadsWithDrift: driftCount, ThreadStatuses: entries}
	return emit(out, func() {
		printReviewDetail(detail)
		fmt.Printf("  threads with drift: %d\n", driftCount)
		for _, e := range entries {
			if e.CurrentLine != nil {
				fmt.Printf("    %s  %s:%d -> %d  [%s]  %s\n", e.ThreadID, e.FilePath, e.OriginalLine, *e.CurrentLine, e.DriftStatus, e.Status)
			} else {
				fmt.Printf("    %s  %s:%d  [%s]  %s\n", e.ThreadID, e.FilePath, e.OriginalLine, e.DriftStatus, e.Status)
			}
		}
	})
}
