package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/critlabs/crit/internal/store"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage threads: create, list, show, resolve, reopen",
}

var (
	threadsCreateFile         string
	threadsCreateLine         string
	threadsCreateExpectedHash string
)

var threadsCreateCmd = &cobra.Command{
	Use:   "create <review_id> <message>",
	Short: "Start a comment thread on a file/line (or add to an existing open one there)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newService().AddCommentToReview(context.Background(), args[0], threadsCreateFile, threadsCreateLine, args[1], threadsCreateExpectedHash)
		if err != nil {
			return err
		}
		return emit(res, func() { printAddCommentResult(res) })
	},
}

var (
	threadsListStatus string
	threadsListFile   string
)

var threadsListCmd = &cobra.Command{
	Use:   "list <review_id>",
	Short: "List a review's threads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var status *store.ThreadStatus
		if threadsListStatus != "" {
			s := store.ThreadStatus(threadsListStatus)
			status = &s
		}
		threads, err := newService().ListThreads(context.Background(), args[0], status, threadsListFile)
		if err != nil {
			return err
		}
		return emit(threads, func() {
			if len(threads) == 0 {
				fmt.Println("no threads")
				return
			}
			for _, t := range threads {
				printThread(t)
			}
		})
	},
}

var threadsShowCmd = &cobra.Command{
	Use:   "show <thread_id>",
	Short: "Show a thread and its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		thread, comments, err := newService().GetThread(context.Background(), args[0])
		if err != nil {
			return err
		}
		type threadWithComments struct {
			store.Thread
			Comments []store.Comment `json:"comments"`
		}
		out := threadWithComments{Thread: thread, Comments: comments}
		return emit(out, func() {
			printThread(thread)
			for _, c := range comments {
				fmt.Printf("    %s  %s: %s\n", c.CommentID, c.Author, c.Body)
			}
		})
	},
}

var resolveReason string

var threadsResolveCmd = &cobra.Command{
	Use:   "resolve <thread_id>",
	Short: "Resolve a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newService().ResolveThread(context.Background(), args[0], resolveReason); err != nil {
			return err
		}
		return emit(map[string]string{"thread_id": args[0], "status": string(store.ThreadResolved)}, func() {
			color.Green("%s resolved\n", args[0])
		})
	},
}

var threadsReopenCmd = &cobra.Command{
	Use:   "reopen <thread_id>",
	Short: "Reopen a resolved thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newService().ReopenThread(context.Background(), args[0]); err != nil {
			return err
		}
		return emit(map[string]string{"thread_id": args[0], "status": string(store.ThreadOpen)}, func() {
			color.Yellow("%s reopened\n", args[0])
		})
	},
}

func printThread(t store.Thread) {
	selection := fmt.Sprintf("%d", t.SelectionStart)
	if t.SelectionEnd != nil && *t.SelectionEnd != t.SelectionStart {
		selection = fmt.Sprintf("%d-%d", t.SelectionStart, *t.SelectionEnd)
	}
	fmt.Printf("%s  [%s]  %s:%s\n", t.ThreadID, t.Status, t.FilePath, selection)
}

func init() {
	threadsCreateCmd.Flags().StringVar(&threadsCreateFile, "file", "", "file path (required)")
	threadsCreateCmd.Flags().StringVar(&threadsCreateLine, "line", "", "line \"N\" or range \"A-B\" (required)")
	threadsCreateCmd.Flags().StringVar(&threadsCreateExpectedHash, "expected-hash", "", "optimistic lock: fail if the resolved thread's commit_hash differs")
	_ = threadsCreateCmd.MarkFlagRequired("file")
	_ = threadsCreateCmd.MarkFlagRequired("line")

	threadsListCmd.Flags().StringVar(&threadsListStatus, "status", "", "filter by status: open, resolved")
	threadsListCmd.Flags().StringVar(&threadsListFile, "file", "", "filter by file path")

	threadsResolveCmd.Flags().StringVar(&resolveReason, "reason", "", "resolution reason")

	threadsCmd.AddCommand(threadsCreateCmd, threadsListCmd, threadsShowCmd, threadsResolveCmd, threadsReopenCmd)
}
