package service

import (
	"context"

	"github.com/critlabs/crit/internal/store"
)

// Inbox aggregates the three agent-facing views: reviews awaiting this
// agent's vote, threads with unread comments on reviews this agent
// authored, and every open thread on reviews this agent authored.
type Inbox struct {
	AwaitingVote []store.Review
	NewComments  []store.Thread
	OpenOnAuthored []store.Thread
}

// GetInbox resolves identity and builds a single Inbox snapshot.
func (s *Service) GetInbox(ctx context.Context) (Inbox, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return Inbox{}, err
	}
	defer s.close(sess)

	agent := s.identity()

	awaiting, err := sess.st.InboxAwaitingVote(ctx, agent)
	if err != nil {
		return Inbox{}, internalf("inbox awaiting vote", err)
	}
	newComments, err := sess.st.InboxNewComments(ctx, agent)
	if err != nil {
		return Inbox{}, internalf("inbox new comments", err)
	}
	openOnAuthored, err := sess.st.InboxOpenOnAuthored(ctx, agent)
	if err != nil {
		return Inbox{}, internalf("inbox open on authored", err)
	}

	return Inbox{AwaitingVote: awaiting, NewComments: newComments, OpenOnAuthored: openOnAuthored}, nil
}
