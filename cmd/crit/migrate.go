package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/critlabs/crit/internal/migrate"
)

var (
	migrateDryRun bool
	migrateBackup bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move a legacy v1 .crit/events.jsonl to the per-review v2 layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := migrate.Run(repoRootFlag, migrate.Options{
			DryRun: migrateDryRun,
			Backup: migrateBackup,
		})
		if err != nil {
			return err
		}
		return emit(report, func() {
			if report.Skipped {
				color.Green("already on the v2 layout, nothing to migrate\n")
				return
			}
			verb := "migrated"
			if report.DryRun {
				verb = "would migrate"
			}
			color.Green("%s %d events across %d reviews\n", verb, report.EventCount, report.ReviewCount)
			if report.BackupPath != "" {
				color.Green("legacy log backed up to %s\n", report.BackupPath)
			} else if report.LegacyRemoved {
				color.Yellow("legacy log deleted (no backup requested)\n")
			}
		})
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "report what would change without writing anything")
	migrateCmd.Flags().BoolVar(&migrateBackup, "backup", true, "back up the legacy log instead of deleting it")
}
