package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/critlabs/crit/internal/service"
)

var commentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "Add or list comments",
}

var (
	commentFile         string
	commentLine         string
	commentExpectedHash string
	replyExpectedHash   string
)

// commentCmd backs both `crit comment <review_id> ... MESSAGE` and
// `crit comments add <review_id> ... MESSAGE`: the compound
// add_comment_to_review workflow (spec.md §4.H).
var commentCmd = &cobra.Command{
	Use:   "comment <review_id> <message>",
	Short: "Add a comment at a file/line, creating or reusing its thread",
	Args:  cobra.ExactArgs(2),
	RunE:  runAddComment,
}

var commentsAddCmd = &cobra.Command{
	Use:   "add <review_id> <message>",
	Short: "Add a comment at a file/line, creating or reusing its thread",
	Args:  cobra.ExactArgs(2),
	RunE:  runAddComment,
}

func runAddComment(cmd *cobra.Command, args []string) error {
	res, err := newService().AddCommentToReview(context.Background(), args[0], commentFile, commentLine, args[1], commentExpectedHash)
	if err != nil {
		return err
	}
	return emit(res, func() { printAddCommentResult(res) })
}

var commentsListCmd = &cobra.Command{
	Use:   "list <thread_id>",
	Short: "List a thread's comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, comments, err := newService().GetThread(context.Background(), args[0])
		if err != nil {
			return err
		}
		return emit(comments, func() {
			for _, c := range comments {
				fmt.Printf("%s  %s: %s\n", c.CommentID, c.Author, c.Body)
			}
		})
	},
}

// replyCmd appends a comment directly to a known thread.
var replyCmd = &cobra.Command{
	Use:   "reply <thread_id> <message>",
	Short: "Reply to an existing thread",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newService().AddReply(context.Background(), args[0], args[1], replyExpectedHash)
		if err != nil {
			return err
		}
		return emit(res, func() { printAddCommentResult(res) })
	},
}

var blockReason string

// lgtmCmd and blockCmd cast a vote (Service.Vote) with a fixed vote
// kind, matching the CLI surface of spec.md §6.
var lgtmCmd = &cobra.Command{
	Use:   "lgtm <review_id>",
	Short: "Vote lgtm on a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return voteAndEmit(args[0], "lgtm", "")
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <review_id>",
	Short: "Vote block on a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return voteAndEmit(args[0], "block", blockReason)
	},
}

func voteAndEmit(reviewID, kind, reason string) error {
	if err := newService().Vote(context.Background(), reviewID, kind, reason); err != nil {
		return err
	}
	return emit(map[string]string{"review_id": reviewID, "vote": kind}, func() {
		fmt.Printf("voted %s on %s\n", kind, reviewID)
	})
}

func printAddCommentResult(res service.AddCommentResult) {
	suffix := ""
	if res.ThreadCreated {
		suffix = " (new thread)"
	}
	fmt.Printf("%s on %s%s\n", res.CommentID, res.ThreadID, suffix)
}

func init() {
	commentCmd.Flags().StringVar(&commentFile, "file", "", "file path (required)")
	commentCmd.Flags().StringVar(&commentLine, "line", "", "line \"N\" or range \"A-B\" (required)")
	commentCmd.Flags().StringVar(&commentExpectedHash, "expected-hash", "", "optimistic lock: fail if the resolved thread's commit_hash differs")
	_ = commentCmd.MarkFlagRequired("file")
	_ = commentCmd.MarkFlagRequired("line")

	commentsAddCmd.Flags().StringVar(&commentFile, "file", "", "file path (required)")
	commentsAddCmd.Flags().StringVar(&commentLine, "line", "", "line \"N\" or range \"A-B\" (required)")
	commentsAddCmd.Flags().StringVar(&commentExpectedHash, "expected-hash", "", "optimistic lock: fail if the resolved thread's commit_hash differs")
	_ = commentsAddCmd.MarkFlagRequired("file")
	_ = commentsAddCmd.MarkFlagRequired("line")

	replyCmd.Flags().StringVar(&replyExpectedHash, "expected-hash", "", "optimistic lock: fail if the thread's commit_hash differs")

	blockCmd.Flags().StringVar(&blockReason, "reason", "", "reason for blocking")

	commentsCmd.AddCommand(commentsAddCmd, commentsListCmd)
}
