package store

// schemaDDL is the semantic schema of spec.md §4.F. Exact column types
// are sqlite's dynamic typing; CREATE TABLE IF NOT EXISTS makes this
// idempotent across every Open call, the same way bd's migrations
// package applies its numbered migrations idempotently.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS reviews (
	review_id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	scm_kind TEXT NOT NULL DEFAULT '',
	scm_anchor TEXT NOT NULL DEFAULT '',
	jj_change_id TEXT NOT NULL DEFAULT '',
	initial_commit TEXT NOT NULL DEFAULT '',
	final_commit TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	status_changed_at TEXT NOT NULL DEFAULT '',
	status_changed_by TEXT NOT NULL DEFAULT '',
	abandon_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS review_reviewers (
	review_id TEXT NOT NULL,
	reviewer TEXT NOT NULL,
	requested_at TEXT NOT NULL,
	PRIMARY KEY (review_id, reviewer)
);

CREATE TABLE IF NOT EXISTS review_votes (
	review_id TEXT NOT NULL,
	voter TEXT NOT NULL,
	vote TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_votes_review ON review_votes(review_id, voter, created_at);

CREATE TABLE IF NOT EXISTS threads (
	thread_id TEXT PRIMARY KEY,
	review_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	selection_start INTEGER NOT NULL,
	selection_end INTEGER,
	commit_hash TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	created_at TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	resolution_reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_threads_review ON threads(review_id);
CREATE INDEX IF NOT EXISTS idx_threads_anchor ON threads(review_id, file_path, selection_start);

CREATE TABLE IF NOT EXISTS comments (
	comment_id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	seq INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_thread ON comments(thread_id, seq);

CREATE TABLE IF NOT EXISTS review_file_state (
	review_id TEXT NOT NULL,
	rel_path TEXT NOT NULL,
	line_count INTEGER NOT NULL DEFAULT 0,
	mtime TEXT NOT NULL DEFAULT '',
	prefix_hash TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (review_id, rel_path)
);

CREATE TABLE IF NOT EXISTS sync_cursor (
	review_id TEXT PRIMARY KEY,
	last_line_number INTEGER NOT NULL DEFAULT 0,
	last_prefix_hash TEXT NOT NULL DEFAULT '',
	last_sync_ts TEXT NOT NULL DEFAULT ''
);
`
