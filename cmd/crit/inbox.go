package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Show reviews awaiting your vote and unread comments on reviews you authored",
	RunE: func(cmd *cobra.Command, args []string) error {
		inbox, err := newService().GetInbox(context.Background())
		if err != nil {
			return err
		}
		return emit(inbox, func() {
			fmt.Println("awaiting your vote:")
			for _, r := range inbox.AwaitingVote {
				printReview(r)
			}
			fmt.Println("new comments on reviews you authored:")
			for _, t := range inbox.NewComments {
				printThread(t)
			}
			fmt.Println("open threads on reviews you authored:")
			for _, t := range inbox.OpenOnAuthored {
				printThread(t)
			}
		})
	},
}
