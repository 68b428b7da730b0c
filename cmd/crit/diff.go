package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// diffOutput is `crit diff`'s result: the review's changed files after
// component K's .critignore filtering (matching
// original_source/src/cli/commands/status.rs's run_diff, which builds
// changed_files alongside the raw diff text) plus the unified diff
// itself.
type diffOutput struct {
	ReviewID     string   `json:"review_id"`
	ChangedFiles []string `json:"changed_files"`
	IgnoredCount int      `json:"ignored_count,omitempty"`
	Diff         string   `json:"diff"`
}

var diffCmd = &cobra.Command{
	Use:   "diff <review_id>",
	Short: "Show the unified diff between a review's initial and current (or final) commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		svc := newService()

		changed, err := svc.ChangedFiles(ctx, args[0])
		if err != nil {
			return err
		}
		text, err := svc.Diff(ctx, args[0])
		if err != nil {
			return err
		}

		out := diffOutput{ReviewID: args[0], ChangedFiles: changed.Files, IgnoredCount: changed.IgnoredCount, Diff: text}
		return emit(out, func() {
			if changed.IgnoredCount > 0 {
				fmt.Printf("%d file(s) excluded by .critignore\n", changed.IgnoredCount)
			}
			for _, f := range changed.Files {
				fmt.Printf("changed: %s\n", f)
			}
			fmt.Print(text)
		})
	},
}
