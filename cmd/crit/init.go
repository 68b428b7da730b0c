package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/critlabs/crit/internal/service"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .crit/ layout in the current repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.Init(repoRootFlag); err != nil {
			return err
		}
		return emit(map[string]string{"repo_root": repoRootFlag}, func() {
			color.Green("initialized crit in %s\n", repoRootFlag)
		})
	},
}
