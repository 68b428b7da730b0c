package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/critlabs/crit/internal/eventlog"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ApplyEvent applies one event to the projection inside tx, returning a
// non-nil anomaly when the event's effect deviated from the transition
// table in spec.md §4.G (e.g. an out-of-order status transition) without
// that deviation aborting the surrounding sync transaction.
func ApplyEvent(ctx context.Context, tx *sql.Tx, reviewID string, ev eventlog.Event) (*Anomaly, error) {
	switch ev.Event {
	case eventlog.ReviewCreated:
		var d eventlog.ReviewCreatedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode ReviewCreated: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reviews (review_id, title, description, author, created_at,
				scm_kind, scm_anchor, initial_commit, status, status_changed_at, status_changed_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'open', ?, ?)
			ON CONFLICT(review_id) DO NOTHING`,
			d.ReviewID, d.Title, d.Description, ev.Author, formatTime(ev.Timestamp),
			d.SCMKind, d.SCMAnchor, d.InitialCommit, formatTime(ev.Timestamp), ev.Author)
		if err != nil {
			return nil, fmt.Errorf("store: insert review: %w", err)
		}
		for _, reviewer := range d.RequestedReviewers {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO review_reviewers (review_id, reviewer, requested_at)
				VALUES (?, ?, ?) ON CONFLICT(review_id, reviewer) DO NOTHING`,
				d.ReviewID, reviewer, formatTime(ev.Timestamp)); err != nil {
				return nil, fmt.Errorf("store: insert review_reviewers: %w", err)
			}
		}
		return nil, nil

	case eventlog.ReviewersRequested:
		var d eventlog.ReviewersRequestedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode ReviewersRequested: %w", err)
		}
		for _, reviewer := range d.Reviewers {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO review_reviewers (review_id, reviewer, requested_at)
				VALUES (?, ?, ?) ON CONFLICT(review_id, reviewer) DO NOTHING`,
				d.ReviewID, reviewer, formatTime(ev.Timestamp)); err != nil {
				return nil, fmt.Errorf("store: insert review_reviewers: %w", err)
			}
		}
		return nil, nil

	case eventlog.ReviewerVoted:
		var d eventlog.ReviewerVotedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode ReviewerVoted: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO review_votes (review_id, voter, vote, reason, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			d.ReviewID, d.Voter, d.Vote, d.Reason, formatTime(ev.Timestamp)); err != nil {
			return nil, fmt.Errorf("store: insert review_votes: %w", err)
		}
		return nil, nil

	case eventlog.ReviewApproved:
		var d eventlog.ReviewApprovedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode ReviewApproved: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE reviews SET status='approved', status_changed_at=?, status_changed_by=?
			WHERE review_id=? AND status='open'`,
			formatTime(ev.Timestamp), ev.Author, d.ReviewID)
		if err != nil {
			return nil, fmt.Errorf("store: approve review: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &Anomaly{ReviewID: d.ReviewID, Kind: AnomalyInvalidTransition, Detail: "ReviewApproved on a non-open review"}, nil
		}
		return nil, nil

	case eventlog.ReviewMerged:
		var d eventlog.ReviewMergedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode ReviewMerged: %w", err)
		}
		blocked, err := anyLatestVoteBlocks(ctx, tx, d.ReviewID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return &Anomaly{ReviewID: d.ReviewID, Kind: AnomalyInvalidTransition, Detail: "ReviewMerged blocked by a latest block vote"}, nil
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE reviews SET status='merged', final_commit=?, status_changed_at=?, status_changed_by=?
			WHERE review_id=? AND status IN ('open','approved')`,
			d.FinalCommit, formatTime(ev.Timestamp), ev.Author, d.ReviewID)
		if err != nil {
			return nil, fmt.Errorf("store: merge review: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &Anomaly{ReviewID: d.ReviewID, Kind: AnomalyInvalidTransition, Detail: "ReviewMerged on a review not open/approved"}, nil
		}
		return nil, nil

	case eventlog.ReviewAbandoned:
		var d eventlog.ReviewAbandonedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode ReviewAbandoned: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE reviews SET status='abandoned', abandon_reason=?, status_changed_at=?, status_changed_by=?
			WHERE review_id=? AND status NOT IN ('merged','abandoned')`,
			d.Reason, formatTime(ev.Timestamp), ev.Author, d.ReviewID)
		if err != nil {
			return nil, fmt.Errorf("store: abandon review: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &Anomaly{ReviewID: d.ReviewID, Kind: AnomalyInvalidTransition, Detail: "ReviewAbandoned on an already-terminal review"}, nil
		}
		return nil, nil

	case eventlog.ThreadCreated:
		var d eventlog.ThreadCreatedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode ThreadCreated: %w", err)
		}
		start, end := d.Selection.Bounds()
		var endArg any
		if d.Selection.Range != nil {
			endArg = end
		} else {
			endArg = nil
		}

		var existing string
		err := tx.QueryRowContext(ctx, `
			SELECT thread_id FROM threads
			WHERE review_id=? AND file_path=? AND selection_start=? AND status='open'`,
			d.ReviewID, d.FilePath, start).Scan(&existing)
		if err == nil {
			return &Anomaly{ReviewID: d.ReviewID, Kind: AnomalyDuplicateOpenAnchor,
				Detail: fmt.Sprintf("thread %s already open at %s:%d, keeping it over %s", existing, d.FilePath, start, d.ThreadID)}, nil
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("store: check duplicate open anchor: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO threads (thread_id, review_id, file_path, selection_start, selection_end,
				commit_hash, status, created_at, author)
			VALUES (?, ?, ?, ?, ?, ?, 'open', ?, ?)`,
			d.ThreadID, d.ReviewID, d.FilePath, start, endArg, d.CommitHash, formatTime(ev.Timestamp), ev.Author); err != nil {
			return nil, fmt.Errorf("store: insert thread: %w", err)
		}
		return nil, nil

	case eventlog.ThreadResolved:
		var d eventlog.ThreadResolvedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode ThreadResolved: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE threads SET status='resolved', resolution_reason=? WHERE thread_id=? AND status='open'`,
			d.Reason, d.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("store: resolve thread: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &Anomaly{Kind: AnomalyInvalidTransition, Detail: fmt.Sprintf("ThreadResolved on non-open thread %s", d.ThreadID)}, nil
		}
		return nil, nil

	case eventlog.ThreadReopened:
		var d eventlog.ThreadReopenedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode ThreadReopened: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE threads SET status='open', resolution_reason='' WHERE thread_id=? AND status='resolved'`,
			d.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("store: reopen thread: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &Anomaly{Kind: AnomalyInvalidTransition, Detail: fmt.Sprintf("ThreadReopened on non-resolved thread %s", d.ThreadID)}, nil
		}
		return nil, nil

	case eventlog.CommentAdded:
		var d eventlog.CommentAddedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("store: decode CommentAdded: %w", err)
		}
		var maxSeq sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM comments WHERE thread_id=?`, d.ThreadID).Scan(&maxSeq); err != nil {
			return nil, fmt.Errorf("store: max seq: %w", err)
		}
		seq := 1
		if maxSeq.Valid {
			seq = int(maxSeq.Int64) + 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO comments (comment_id, thread_id, author, body, created_at, seq)
			VALUES (?, ?, ?, ?, ?, ?)`,
			d.CommentID, d.ThreadID, ev.Author, d.Body, formatTime(ev.Timestamp), seq); err != nil {
			return nil, fmt.Errorf("store: insert comment: %w", err)
		}
		return nil, nil

	default:
		return &Anomaly{ReviewID: reviewID, Kind: AnomalyInvalidTransition, Detail: fmt.Sprintf("unknown event tag %q", ev.Event)}, nil
	}
}

func anyLatestVoteBlocks(ctx context.Context, tx *sql.Tx, reviewID string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT vote FROM review_votes v
		WHERE review_id=? AND created_at = (
			SELECT MAX(created_at) FROM review_votes WHERE review_id=v.review_id AND voter=v.voter
		)`, reviewID)
	if err != nil {
		return false, fmt.Errorf("store: latest votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var vote string
		if err := rows.Scan(&vote); err != nil {
			return false, fmt.Errorf("store: scan vote: %w", err)
		}
		if vote == "block" {
			return true, nil
		}
	}
	return false, rows.Err()
}
