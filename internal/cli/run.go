package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/veritas/internal/engine"
	"github.com/roach88/veritas/internal/ir"
)

// RunResult is the JSON payload for full pipeline runs.
type RunResult struct {
	Decision DecisionResult `json:"decision"`
	SpecID   string         `json:"spec_id,omitempty"`

	Value         *float64 `json:"value,omitempty"`
	Unit          string   `json:"unit,omitempty"`
	KernelID      string   `json:"kernel_id,omitempty"`
	KernelVersion string   `json:"kernel_version,omitempty"`
	RunID         string   `json:"run_id,omitempty"`

	CacheHit     bool `json:"cache_hit"`
	UsedFallback bool `json:"used_fallback"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <spec.json>",
		Short: "Run a problem spec through the full pipeline",
		Long: `Validate, canonicalize, select a kernel, execute, and validate the
solution. With --db, the canonical spec, result, and audit trail are
persisted. Exit code 0 for ACCEPT or FALLBACK; 1 for any other decision.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, args[0], cmd)
		},
	}
}

func runRun(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	raw, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error("READ_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "read spec", err)
	}

	eng, closer, err := buildEngine(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "build engine", err)
	}
	defer closer.Close()

	outcome, err := eng.Evaluate(cmd.Context(), raw)
	if err != nil {
		return WrapExitError(ExitCommandError, "evaluate", err)
	}

	return outputOutcome(formatter, outcome)
}

func outputOutcome(formatter *OutputFormatter, outcome *engine.Outcome) error {
	d := outcome.Decision
	result := RunResult{
		Decision: DecisionResult{
			GateID:         d.GateID,
			Decision:       d.Decision,
			Reasons:        d.Reasons,
			RequiredFields: d.RequiredFields,
		},
		CacheHit:     outcome.CacheHit,
		UsedFallback: outcome.UsedFallback,
	}
	if outcome.Spec != nil {
		result.SpecID = outcome.Spec.SpecID
	}
	if outcome.Result != nil {
		v := outcome.Result.Bundle.Value
		result.Value = &v
		result.Unit = outcome.Result.Bundle.Unit
		result.KernelID = outcome.Result.Bundle.KernelID
		result.KernelVersion = outcome.Result.Bundle.KernelVersion
		result.RunID = outcome.Result.Provenance.RunID
	}

	if formatter.Format == "json" {
		if err := formatter.SuccessJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "decision: %s (%s)\n", d.Decision, d.GateID)
		for _, r := range d.Reasons {
			fmt.Fprintf(formatter.Writer, "  reason: %s\n", r)
		}
		for _, f := range d.RequiredFields {
			fmt.Fprintf(formatter.Writer, "  requires: %s\n", f)
		}
		if result.SpecID != "" {
			fmt.Fprintf(formatter.Writer, "spec_id: %s\n", result.SpecID)
		}
		if result.Value != nil {
			fmt.Fprintf(formatter.Writer, "result: %g %s (%s@%s)\n",
				*result.Value, result.Unit, result.KernelID, result.KernelVersion)
			if outcome.CacheHit {
				fmt.Fprintln(formatter.Writer, "cache: hit")
			}
		}
	}

	if d.Decision == ir.DecisionAccept || d.Decision == ir.DecisionFallback {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("decision %s", d.Decision))
}
