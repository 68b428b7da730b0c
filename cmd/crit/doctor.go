package main

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/critlabs/crit/internal/ignore"
	"github.com/critlabs/crit/internal/scm"
	"github.com/critlabs/crit/internal/version"
)

// doctorCheck is one diagnostic result, rendered as text (colored
// ✓/⚠/✗ lines, matching bd's cmd/bd/doctor.go) or as a JSON array entry.
type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "error"
	Detail string `json:"detail,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the repository's crit setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		checks := runDoctorChecks(ctx)
		return emit(checks, func() {
			for _, c := range checks {
				switch c.Status {
				case "ok":
					color.Green("  ✓ %s\n", c.Name)
				case "warn":
					color.Yellow("  ⚠ %s: %s\n", c.Name, c.Detail)
				default:
					color.Red("  ✗ %s: %s\n", c.Name, c.Detail)
				}
			}
		})
	},
}

func runDoctorChecks(ctx context.Context) []doctorCheck {
	var checks []doctorCheck

	gen, err := version.Detect(repoRootFlag)
	switch {
	case err != nil:
		checks = append(checks, doctorCheck{Name: "layout version", Status: "error", Detail: err.Error()})
	case gen == version.V1:
		checks = append(checks, doctorCheck{Name: "layout version", Status: "warn", Detail: "v1 layout detected, run `crit migrate`"})
	case gen == version.Uninitialized:
		checks = append(checks, doctorCheck{Name: "layout version", Status: "warn", Detail: "not initialized, run `crit init`"})
	default:
		checks = append(checks, doctorCheck{Name: "layout version", Status: "ok", Detail: gen.String()})
	}

	if backend, err := scm.Detect(ctx, repoRootFlag, scm.Auto); err != nil {
		checks = append(checks, doctorCheck{Name: "scm backend", Status: "error", Detail: err.Error()})
	} else {
		checks = append(checks, doctorCheck{Name: "scm backend", Status: "ok", Detail: string(backend.Kind())})
	}

	if filter, err := ignore.Load(repoRootFlag); err != nil {
		checks = append(checks, doctorCheck{Name: "file-ignore filter", Status: "error", Detail: err.Error()})
	} else if filter.HasCritignore() {
		checks = append(checks, doctorCheck{Name: "file-ignore filter", Status: "ok", Detail: ".critignore present"})
	} else {
		checks = append(checks, doctorCheck{Name: "file-ignore filter", Status: "ok", Detail: "no .critignore (always-ignored prefixes only)"})
	}

	return checks
}
