package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/critlabs/crit/internal/sync"
)

var (
	syncRebuild          bool
	syncAcceptRegression string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the projection with the on-disk event logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := sync.Incremental
		switch {
		case syncRebuild && syncAcceptRegression != "":
			return fmt.Errorf("--rebuild and --accept-regression are mutually exclusive")
		case syncRebuild:
			mode = sync.Rebuild
		case syncAcceptRegression != "":
			mode = sync.AcceptRegression
		}

		report, err := newService().Sync(context.Background(), mode, syncAcceptRegression)
		if err != nil {
			return err
		}
		return emit(report, func() { printSyncReport(report) })
	},
}

func printSyncReport(r sync.Report) {
	fmt.Printf("applied %d events, synced %d files (%d skipped)\n", r.Applied, r.FilesSynced, r.FilesSkipped)
	for _, a := range r.Anomalies {
		fmt.Printf("  anomaly: %s on %s\n", a.Kind, a.ReviewID)
	}
	for _, reg := range r.Regressions {
		fmt.Printf("  regression: %s on %s (%s)\n", reg.Kind, reg.ReviewID, reg.Detail)
	}
}

func init() {
	syncCmd.Flags().BoolVar(&syncRebuild, "rebuild", false, "discard every review's projection and cursor, then replay from scratch")
	syncCmd.Flags().StringVar(&syncAcceptRegression, "accept-regression", "", "re-trust one review's current log as the new baseline")
}
