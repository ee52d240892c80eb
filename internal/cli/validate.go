package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/veritas/internal/gate"
	"github.com/roach88/veritas/internal/ir"
)

// DecisionResult is the JSON payload for gate decisions.
type DecisionResult struct {
	GateID         string          `json:"gate_id"`
	Decision       ir.Decision     `json:"decision"`
	Reasons        []ir.ReasonCode `json:"reasons,omitempty"`
	RequiredFields []string        `json:"required_fields,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec.json>",
		Short: "Run the gate pipeline over a problem spec",
		Long: `Run the staged gate pipeline over a raw problem spec and print the decision.

The spec is evaluated against the embedded ontology snapshot and policy.
Exit code 0 means ACCEPT; any blocking decision exits 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	raw, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error("READ_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "read spec", err)
	}

	ont, _, pol, err := snapshots()
	if err != nil {
		return WrapExitError(ExitCommandError, "load snapshots", err)
	}
	validator, err := gate.New(ont)
	if err != nil {
		return WrapExitError(ExitCommandError, "build validator", err)
	}

	decision, _ := validator.Evaluate(raw, pol)
	return outputDecision(formatter, decision)
}

func outputDecision(formatter *OutputFormatter, d ir.GateDecision) error {
	result := DecisionResult{
		GateID:         d.GateID,
		Decision:       d.Decision,
		Reasons:        d.Reasons,
		RequiredFields: d.RequiredFields,
	}

	if formatter.Format == "json" {
		if err := formatter.SuccessJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "%s: %s\n", d.GateID, d.Decision)
		for _, r := range d.Reasons {
			fmt.Fprintf(formatter.Writer, "  reason: %s (%s)\n", r, r.Class())
		}
		for _, f := range d.RequiredFields {
			fmt.Fprintf(formatter.Writer, "  requires: %s\n", f)
		}
	}

	if d.Blocking() {
		return NewExitError(ExitFailure, fmt.Sprintf("decision %s", d.Decision))
	}
	return nil
}
