package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/critlabs/crit/internal/store"
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Manage reviews: create, list, show, request, approve, abandon, merge",
}

// review show and the top-level `review <review_id>` alias share this.
var reviewCmd = &cobra.Command{
	Use:   "review <review_id>",
	Short: "Show a review's detail (alias for `reviews show`)",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewsShow,
}

var (
	createTitle       string
	createDescription string
	createReviewers   []string
)

var reviewsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a review against the SCM's current position",
	RunE: func(cmd *cobra.Command, args []string) error {
		review, err := newService().CreateReview(context.Background(), createTitle, createDescription, createReviewers)
		if err != nil {
			return err
		}
		return emit(review, func() { printReview(review) })
	},
}

var (
	listStatus        string
	listAuthor        string
	listReviewer       string
	listUnresolvedOnly bool
)

var reviewsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reviews matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := store.ReviewFilter{
			Author:            listAuthor,
			RequestedReviewer: listReviewer,
			HasUnresolvedOnly: listUnresolvedOnly,
		}
		if listStatus != "" {
			status := store.ReviewStatus(listStatus)
			filter.Status = &status
		}
		reviews, err := newService().ListReviews(context.Background(), filter)
		if err != nil {
			return err
		}
		return emit(reviews, func() {
			if len(reviews) == 0 {
				fmt.Println("no reviews")
				return
			}
			for _, r := range reviews {
				printReview(r)
			}
		})
	},
}

var reviewsShowCmd = &cobra.Command{
	Use:   "show <review_id>",
	Short: "Show a review's detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewsShow,
}

func runReviewsShow(cmd *cobra.Command, args []string) error {
	detail, err := newService().GetReview(context.Background(), args[0])
	if err != nil {
		return err
	}
	return emit(detail, func() { printReviewDetail(detail) })
}

var requestReviewers []string

var reviewsRequestCmd = &cobra.Command{
	Use:   "request <review_id>",
	Short: "Request additional reviewers on a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newService().RequestReviewers(context.Background(), args[0], requestReviewers); err != nil {
			return err
		}
		return emit(map[string]any{"review_id": args[0], "reviewers": requestReviewers}, func() {
			color.Green("requested review from %v on %s\n", requestReviewers, args[0])
		})
	},
}

var reviewsApproveCmd = &cobra.Command{
	Use:   "approve <review_id>",
	Short: "Approve a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newService().Approve(context.Background(), args[0]); err != nil {
			return err
		}
		return emit(map[string]string{"review_id": args[0], "status": string(store.ReviewApproved)}, func() {
			color.Green("%s approved\n", args[0])
		})
	},
}

var abandonReason string

var reviewsAbandonCmd = &cobra.Command{
	Use:   "abandon <review_id>",
	Short: "Abandon a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newService().Abandon(context.Background(), args[0], abandonReason); err != nil {
			return err
		}
		return emit(map[string]string{"review_id": args[0], "status": string(store.ReviewAbandoned)}, func() {
			color.Yellow("%s abandoned\n", args[0])
		})
	},
}

var mergeFinalCommit string

var reviewsMergeCmd = &cobra.Command{
	Use:   "merge <review_id>",
	Short: "Merge a review (blocked by any outstanding block vote)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newService().Merge(context.Background(), args[0], mergeFinalCommit); err != nil {
			return err
		}
		return emit(map[string]string{"review_id": args[0], "status": string(store.ReviewMerged)}, func() {
			color.Green("%s merged\n", args[0])
		})
	},
}

func printReview(r store.Review) {
	fmt.Printf("%s  [%s]  %s\n", r.ReviewID, r.Status, r.Title)
}

func printReviewDetail(d store.ReviewDetail) {
	printReview(d.Review)
	fmt.Printf("  author: %s\n", d.Author)
	fmt.Printf("  initial_commit: %s\n", d.InitialCommit)
	if d.FinalCommit != "" {
		fmt.Printf("  final_commit: %s\n", d.FinalCommit)
	}
	fmt.Printf("  threads: %d open / %d total\n", d.OpenThreadCount, d.ThreadCount)
	for _, v := range d.LatestVotes {
		fmt.Printf("  vote: %s -> %s\n", v.Voter, v.Vote)
	}
}

func init() {
	reviewsCreateCmd.Flags().StringVar(&createTitle, "title", "", "review title (required)")
	reviewsCreateCmd.Flags().StringVar(&createDescription, "description", "", "review description")
	reviewsCreateCmd.Flags().StringArrayVar(&createReviewers, "reviewer", nil, "requested reviewer (repeatable)")
	_ = reviewsCreateCmd.MarkFlagRequired("title")

	reviewsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status: open, approved, merged, abandoned")
	reviewsListCmd.Flags().StringVar(&listAuthor, "author", "", "filter by author")
	reviewsListCmd.Flags().StringVar(&listReviewer, "reviewer", "", "filter by requested reviewer")
	reviewsListCmd.Flags().BoolVar(&listUnresolvedOnly, "unresolved-only", false, "only reviews with unresolved threads")

	reviewsRequestCmd.Flags().StringArrayVar(&requestReviewers, "reviewer", nil, "reviewer to request (repeatable)")
	_ = reviewsRequestCmd.MarkFlagRequired("reviewer")

	reviewsAbandonCmd.Flags().StringVar(&abandonReason, "reason", "", "reason for abandoning")
	reviewsMergeCmd.Flags().StringVar(&mergeFinalCommit, "final-commit", "", "final commit (default: SCM's current commit)")

	reviewsCmd.AddCommand(reviewsCreateCmd, reviewsListCmd, reviewsShowCmd, reviewsRequestCmd, reviewsApproveCmd, reviewsAbandonCmd, reviewsMergeCmd)
}
