package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/critlabs/crit/internal/config"
	"github.com/critlabs/crit/internal/scm"
	"github.com/critlabs/crit/internal/service"
)

var (
	repoRootFlag string
	scmFlag      string
	agentFlag    string
	jsonFlag     bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "crit",
	Short: "Agent-facing distributed code review",
	Long: `crit is a distributed code-review store for agents: reviews, threads,
and comments are append-only events replayed into a local projection, so
any number of agents can work against the same repository without a
shared server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRepoRoot()
		if err != nil {
			return err
		}
		repoRootFlag = root

		cfg, err = config.Load(repoRootFlag)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

func resolveRepoRoot() (string, error) {
	if repoRootFlag == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return wd, nil
	}
	return filepath.Abs(repoRootFlag)
}

func init() {
	// Piped/redirected output isn't a terminal: drop ANSI color codes,
	// matching bd's term.IsTerminal guard in cmd/bd/import.go.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	rootCmd.PersistentFlags().StringVar(&repoRootFlag, "repo", "", "repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&scmFlag, "scm", "", "scm backend preference: auto, git, jj (default: config/env)")
	rootCmd.PersistentFlags().StringVar(&agentFlag, "agent", "", "identity override for this invocation")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "emit strict JSON instead of text")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reviewsCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(threadsCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(replyCmd)
	rootCmd.AddCommand(lgtmCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(inboxCmd)
}

// Execute runs the root command and maps any returned error to the CLI
// exit-code contract of spec.md §6: 0 success, 1 user/state/setup error,
// >= 2 internal.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var internal *service.Internal
	if errors.As(err, &internal) {
		return 2
	}
	return 1
}

// newService builds a Service from the resolved repo root, the --scm
// flag (falling back to cfg.SCMPreference), and the --agent override.
func newService() *service.Service {
	pref := scm.Preference(cfg.SCMPreference)
	if scmFlag != "" {
		pref = scm.Preference(scmFlag)
	}
	return service.New(repoRootFlag, pref, agentFlag)
}

// useJSON reports whether output for this invocation should be strict
// JSON: an explicit --json flag wins, otherwise cfg.DefaultFormat (set
// from .crit/config.yaml or the FORMAT env var) decides.
func useJSON() bool {
	if jsonFlag {
		return true
	}
	return cfg.DefaultFormat == "json"
}

// emit renders v as JSON when useJSON() is true, otherwise calls text.
func emit(v any, text func()) error {
	if useJSON() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}
