package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/veritas/internal/canon"
	"github.com/roach88/veritas/internal/gate"
)

// NewCanonCommand creates the canon command.
func NewCanonCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "canon <spec.json>",
		Short: "Canonicalize a problem spec and print its spec id",
		Long: `Validate and canonicalize a problem spec, printing the canonical form and
its content-addressed spec id. The spec must pass the gate pipeline first;
a blocking decision is printed instead and exits 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanon(rootOpts, args[0], cmd)
		},
	}
}

func runCanon(opts *RootOptions, path string, cmd *cobra.Command) error {
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

	decision, pspec := validator.Evaluate(raw, pol)
	if decision.Blocking() {
		return outputDecision(formatter, decision)
	}

	// A gate-accepted spec that fails canonicalization is the fatal
	// condition, not a pipeline decision.
	cspec, err := canon.New(ont).Canonicalize(pspec)
	if err != nil {
		_ = formatter.Error("CANON_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "canonicalize", err)
	}

	if formatter.Format == "json" {
		return formatter.SuccessJSON(cspec)
	}
	fmt.Fprintf(formatter.Writer, "spec_id: %s\n", cspec.SpecID)
	fmt.Fprintf(formatter.Writer, "ontology_version: %s\n", cspec.OntologyVersion)
	for _, q := range cspec.Quantities {
		fmt.Fprintf(formatter.Writer, "  %s = %g %s %s\n", q.ID, q.Value, q.Unit, q.Dim)
	}
	for _, u := range cspec.Unknowns {
		fmt.Fprintf(formatter.Writer, "  unknown: %s\n", u)
	}
	return nil
}
