package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func scanReview(row interface{ Scan(...any) error }) (Review, error) {
	var r Review
	var createdAt, statusChangedAt string
	err := row.Scan(&r.ReviewID, &r.Title, &r.Description, &r.Author, &createdAt,
		&r.SCMKind, &r.SCMAnchor, &r.JJChangeID, &r.InitialCommit, &r.FinalCommit,
		&r.Status, &statusChangedAt, &r.StatusChangedBy, &r.AbandonReason)
	if err != nil {
		return Review{}, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.StatusChangedAt = parseTime(statusChangedAt)
	return r, nil
}

const reviewColumns = `review_id, title, description, author, created_at,
	scm_kind, scm_anchor, jj_change_id, initial_commit, final_commit,
	status, status_changed_at, status_changed_by, abandon_reason`

// ListReviews returns reviews matching filter, ordered by (created_at,
// review_id) for stable pagination.
func (s *Store) ListReviews(ctx context.Context, filter ReviewFilter) ([]Review, error) {
	q := "SELECT " + reviewColumns + " FROM reviews r WHERE 1=1"
	var args []any

	if filter.Status != nil {
		q += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	if filter.Author != "" {
		q += " AND author = ?"
		args = append(args, filter.Author)
	}
	if filter.RequestedReviewer != "" {
		q += " AND EXISTS (SELECT 1 FROM review_reviewers rr WHERE rr.review_id = r.review_id AND rr.reviewer = ?)"
		args = append(args, filter.RequestedReviewer)
	}
	if filter.HasUnresolvedOnly {
		q += " AND EXISTS (SELECT 1 FROM threads t WHERE t.review_id = r.review_id AND t.status = 'open')"
	}
	q += " ORDER BY created_at, review_id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapDBError("store: list reviews", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, wrapDBError("store: scan review", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReviewDetail returns a review plus its thread-count and latest-vote
// aggregates, or ErrNotFound.
func (s *Store) ReviewDetail(ctx context.Context, reviewID string) (ReviewDetail, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE review_id = ?", reviewID)
	r, err := scanReview(row)
	if err != nil {
		return ReviewDetail{}, wrapDBError("store: review detail", err)
	}

	detail := ReviewDetail{Review: r}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM threads WHERE review_id = ?", reviewID).Scan(&detail.ThreadCount); err != nil {
		return ReviewDetail{}, wrapDBError("store: thread count", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM threads WHERE review_id = ? AND status = 'open'", reviewID).Scan(&detail.OpenThreadCount); err != nil {
		return ReviewDetail{}, wrapDBError("store: open thread count", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT voter, vote, reason, created_at FROM review_votes v
		WHERE review_id = ? AND created_at = (
			SELECT MAX(created_at) FROM review_votes WHERE review_id = v.review_id AND voter = v.voter
		) ORDER BY voter`, reviewID)
	if err != nil {
		return ReviewDetail{}, wrapDBError("store: latest votes", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v Vote
		var createdAt string
		if err := rows.Scan(&v.Voter, &v.Vote, &v.Reason, &createdAt); err != nil {
			return ReviewDetail{}, wrapDBError("store: scan vote", err)
		}
		v.CreatedAt = parseTime(createdAt)
		detail.LatestVotes = append(detail.LatestVotes, v)
	}
	return detail, rows.Err()
}

const threadColumns = `thread_id, review_id, file_path, selection_start, selection_end,
	commit_hash, status, created_at, author, resolution_reason`

func scanThread(row interface{ Scan(...any) error }) (Thread, error) {
	var t Thread
	var createdAt string
	var selEnd sql.NullInt64
	err := row.Scan(&t.ThreadID, &t.ReviewID, &t.FilePath, &t.SelectionStart, &selEnd,
		&t.CommitHash, &t.Status, &createdAt, &t.Author, &t.ResolutionReason)
	if err != nil {
		return Thread{}, err
	}
	t.CreatedAt = parseTime(createdAt)
	if selEnd.Valid {
		v := int(selEnd.Int64)
		t.SelectionEnd = &v
	}
	return t, nil
}

// ListThreads returns threads for a review, optionally filtered by
// status and/or file path, ordered by (created_at, thread_id).
func (s *Store) ListThreads(ctx context.Context, reviewID string, status *ThreadStatus, file string) ([]Thread, error) {
	q := "SELECT " + threadColumns + " FROM threads WHERE review_id = ?"
	args := []any{reviewID}
	if status != nil {
		q += " AND status = ?"
		args = append(args, string(*status))
	}
	if file != "" {
		q += " AND file_path = ?"
		args = append(args, file)
	}
	q += " ORDER BY created_at, thread_id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapDBError("store: list threads", err)
	}
	defer rows.Close()

	var out []Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, wrapDBError("store: scan thread", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindOpenThread locates the open thread (if any) anchored at
// (reviewID, file, startLine).
func (s *Store) FindOpenThread(ctx context.Context, reviewID, file string, startLine int) (Thread, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+threadColumns+` FROM threads
		WHERE review_id = ? AND file_path = ? AND selection_start = ? AND status = 'open'`,
		reviewID, file, startLine)
	t, err := scanThread(row)
	if err == sql.ErrNoRows {
		return Thread{}, false, nil
	}
	if err != nil {
		return Thread{}, false, wrapDBError("store: find open thread", err)
	}
	return t, true, nil
}

// ListComments returns a thread's comments in append order.
func (s *Store) ListComments(ctx context.Context, threadID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT comment_id, thread_id, author, body, created_at, seq
		FROM comments WHERE thread_id = ? ORDER BY seq`, threadID)
	if err != nil {
		return nil, wrapDBError("store: list comments", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		var createdAt string
		if err := rows.Scan(&c.CommentID, &c.ThreadID, &c.Author, &c.Body, &createdAt, &c.Seq); err != nil {
			return nil, wrapDBError("store: scan comment", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// NextCommentNumber returns max(seq)+1 for threadID, or 1 if it has no
// comments yet.
func (s *Store) NextCommentNumber(ctx context.Context, threadID string) (int, error) {
	var maxSeq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM comments WHERE thread_id = ?`, threadID).Scan(&maxSeq); err != nil {
		return 0, wrapDBError("store: next comment number", err)
	}
	if !maxSeq.Valid {
		return 1, nil
	}
	return int(maxSeq.Int64) + 1, nil
}

// InboxAwaitingVote returns open reviews that requested agent's vote
// and on which agent has not yet cast any vote.
func (s *Store) InboxAwaitingVote(ctx context.Context, agent string) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+reviewColumns+` FROM reviews r
		WHERE status = 'open'
		AND EXISTS (SELECT 1 FROM review_reviewers rr WHERE rr.review_id = r.review_id AND rr.reviewer = ?)
		AND NOT EXISTS (SELECT 1 FROM review_votes rv WHERE rv.review_id = r.review_id AND rv.voter = ?)
		ORDER BY created_at, review_id`, agent, agent)
	if err != nil {
		return nil, wrapDBError("store: inbox awaiting vote", err)
	}
	defer rows.Close()
	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, wrapDBError("store: scan review", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InboxNewComments returns threads owned by reviews authored by agent
// that have received a comment from someone other than agent since
// agent's own last comment on that thread (or ever, if agent never
// commented).
func (s *Store) InboxNewComments(ctx context.Context, agent string) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+threadColumns+` FROM threads t
		JOIN reviews r ON r.review_id = t.review_id
		WHERE r.author = ?
		AND EXISTS (
			SELECT 1 FROM comments c
			WHERE c.thread_id = t.thread_id AND c.author != ?
			AND c.seq > COALESCE((
				SELECT MAX(seq) FROM comments c2 WHERE c2.thread_id = t.thread_id AND c2.author = ?
			), 0)
		)
		ORDER BY t.created_at, t.thread_id`, agent, agent, agent)
	if err != nil {
		return nil, wrapDBError("store: inbox new comments", err)
	}
	defer rows.Close()
	var out []Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, wrapDBError("store: scan thread", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InboxOpenOnAuthored returns every open thread on a review agent
// authored, regardless of comment activity.
func (s *Store) InboxOpenOnAuthored(ctx context.Context, agent string) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+threadColumns+` FROM threads t
		JOIN reviews r ON r.review_id = t.review_id
		WHERE r.author = ? AND t.status = 'open'
		ORDER BY t.created_at, t.thread_id`, agent)
	if err != nil {
		return nil, wrapDBError("store: inbox open on authored", err)
	}
	defer rows.Close()
	var out []Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, wrapDBError("store: scan thread", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Cursor is a review's sync-progress marker.
type Cursor struct {
	LastLineNumber int
	LastPrefixHash string
}

// GetCursor returns the stored cursor for reviewID, or the zero Cursor
// if none has been recorded yet.
func (s *Store) GetCursor(ctx context.Context, reviewID string) (Cursor, error) {
	var c Cursor
	err := s.db.QueryRowContext(ctx, `SELECT last_line_number, last_prefix_hash FROM sync_cursor WHERE review_id = ?`, reviewID).
		Scan(&c.LastLineNumber, &c.LastPrefixHash)
	if err == sql.ErrNoRows {
		return Cursor{}, nil
	}
	if err != nil {
		return Cursor{}, wrapDBError("store: get cursor", err)
	}
	return c, nil
}

// SetCursor upserts reviewID's sync cursor inside tx.
func SetCursor(ctx context.Context, tx *sql.Tx, reviewID string, c Cursor, syncedAt string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_cursor (review_id, last_line_number, last_prefix_hash, last_sync_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(review_id) DO UPDATE SET
			last_line_number = excluded.last_line_number,
			last_prefix_hash = excluded.last_prefix_hash,
			last_sync_ts = excluded.last_sync_ts`,
		reviewID, c.LastLineNumber, c.LastPrefixHash, syncedAt)
	if err != nil {
		return fmt.Errorf("store: set cursor: %w", err)
	}
	return nil
}

// ClearCursor discards reviewID's cursor and file-state snapshot and
// leaves its projected rows in place; the sync engine's accept-regression
// and rebuild paths use DeleteReviewProjection instead.
func ClearCursor(ctx context.Context, tx *sql.Tx, reviewID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_cursor WHERE review_id = ?`, reviewID); err != nil {
		return fmt.Errorf("store: clear cursor: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM review_file_state WHERE review_id = ?`, reviewID); err != nil {
		return fmt.Errorf("store: clear file state: %w", err)
	}
	return nil
}

// SetFileState records a file's observed line count/mtime/prefix hash
// for reviewID.
func SetFileState(ctx context.Context, tx *sql.Tx, reviewID, relPath string, lineCount int, mtime, prefixHash string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO review_file_state (review_id, rel_path, line_count, mtime, prefix_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(review_id, rel_path) DO UPDATE SET
			line_count = excluded.line_count, mtime = excluded.mtime, prefix_hash = excluded.prefix_hash`,
		reviewID, relPath, lineCount, mtime, prefixHash)
	if err != nil {
		return fmt.Errorf("store: set file state: %w", err)
	}
	return nil
}

// DeleteReviewProjection removes every projected row for reviewID, used
// by rebuild before replaying a review's log from scratch.
func DeleteReviewProjection(ctx context.Context, tx *sql.Tx, reviewID string) error {
	stmts := []string{
		`DELETE FROM comments WHERE thread_id IN (SELECT thread_id FROM threads WHERE review_id = ?)`,
		`DELETE FROM threads WHERE review_id = ?`,
		`DELETE FROM review_votes WHERE review_id = ?`,
		`DELETE FROM review_reviewers WHERE review_id = ?`,
		`DELETE FROM review_file_state WHERE review_id = ?`,
		`DELETE FROM sync_cursor WHERE review_id = ?`,
		`DELETE FROM reviews WHERE review_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, reviewID); err != nil {
			return fmt.Errorf("store: delete review projection (%s): %w", strings.Fields(stmt)[1], err)
		}
	}
	return nil
}

// BeginTx starts a transaction for the sync engine's per-review apply
// loop.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}
