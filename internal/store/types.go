package store

import "time"

type ReviewStatus string

const (
	ReviewOpen      ReviewStatus = "open"
	ReviewApproved  ReviewStatus = "approved"
	ReviewMerged    ReviewStatus = "merged"
	ReviewAbandoned ReviewStatus = "abandoned"
)

type ThreadStatus string

const (
	ThreadOpen     ThreadStatus = "open"
	ThreadResolved ThreadStatus = "resolved"
)

// Review is a row of the reviews table.
type Review struct {
	ReviewID        string
	Title           string
	Description     string
	Author          string
	CreatedAt       time.Time
	SCMKind         string
	SCMAnchor       string
	JJChangeID      string
	InitialCommit   string
	FinalCommit     string
	Status          ReviewStatus
	StatusChangedAt time.Time
	StatusChangedBy string
	AbandonReason   string
}

// ReviewDetail augments Review with the aggregates the service façade's
// read path needs: thread counts and the latest vote per reviewer.
type ReviewDetail struct {
	Review
	ThreadCount     int
	OpenThreadCount int
	LatestVotes     []Vote
}

// Vote is one reviewer's most recent vote on a review.
type Vote struct {
	Voter     string
	Vote      string
	Reason    string
	CreatedAt time.Time
}

// Thread is a row of the threads table.
type Thread struct {
	ThreadID         string
	ReviewID         string
	FilePath         string
	SelectionStart   int
	SelectionEnd     *int
	CommitHash       string
	Status           ThreadStatus
	CreatedAt        time.Time
	Author           string
	ResolutionReason string
}

// Comment is a row of the comments table.
type Comment struct {
	CommentID string
	ThreadID  string
	Author    string
	Body      string
	CreatedAt time.Time
	Seq       int
}

// ReviewFilter narrows ListReviews.
type ReviewFilter struct {
	Status            *ReviewStatus
	Author             string
	RequestedReviewer  string
	HasUnresolvedOnly  bool
}

// AnomalyKind tags a sync-time event that could not be applied cleanly.
type AnomalyKind string

const (
	AnomalyInvalidTransition  AnomalyKind = "InvalidTransition"
	AnomalyDuplicateOpenAnchor AnomalyKind = "DuplicateOpenAnchor"
)

// Anomaly records a single event whose application deviated from the
// happy path but did not abort the sync.
type Anomaly struct {
	ReviewID string
	Kind     AnomalyKind
	Detail   string
}
