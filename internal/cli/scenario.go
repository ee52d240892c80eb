package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/veritas/internal/harness"
)

// ScenarioResult is the JSON payload for one executed scenario.
type ScenarioResult struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Decision string `json:"decision"`
	Expected string `json:"expected"`
	SpecID   string `json:"spec_id,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario <dir>",
		Short: "Run pipeline scenarios from a directory",
		Long: `Run every *.yaml scenario in a directory against a fully wired engine and
report expected-versus-actual decisions. Exit code 1 if any scenario fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, args[0], cmd)
		},
	}
}

func runScenarios(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		_ = formatter.Error("LOAD_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "load scenarios", err)
	}
	if len(scenarios) == 0 {
		_ = formatter.Error("NO_SCENARIOS", fmt.Sprintf("no *.yaml scenarios in %s", dir), nil)
		return NewExitError(ExitCommandError, "no scenarios found")
	}

	h, err := harness.New()
	if err != nil {
		return WrapExitError(ExitCommandError, "build harness", err)
	}

	var results []ScenarioResult
	failed := 0
	for _, sc := range scenarios {
		formatter.VerboseLog("running scenario: %s", sc.Name)
		report, err := h.Run(cmd.Context(), sc)
		if err != nil {
			_ = formatter.Error("SCENARIO_ERROR", err.Error(), nil)
			return WrapExitError(ExitCommandError, "run scenario", err)
		}

		first := report.Outcomes[0]
		passed := first.Decision == sc.Expect.Decision
		if !passed {
			failed++
		}
		results = append(results, ScenarioResult{
			Name:     sc.Name,
			Passed:   passed,
			Decision: string(first.Decision),
			Expected: string(sc.Expect.Decision),
			SpecID:   first.SpecID,
		})
	}

	if formatter.Format == "json" {
		if err := formatter.SuccessJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			mark := "ok"
			if !r.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(formatter.Writer, "%-4s %-24s %s (expected %s)\n", mark, r.Name, r.Decision, r.Expected)
		}
		fmt.Fprintf(formatter.Writer, "%d scenario(s), %d failed\n", len(results), failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}
