package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/veritas/internal/ir"
)

// CatalogEntrySummary is the JSON payload for catalog listing.
type CatalogEntrySummary struct {
	Key         string `json:"key"`
	Domain      string `json:"domain"`
	ProblemType string `json:"problem_type"`
	Determinism string `json:"determinism"`
	Golden      string `json:"golden"`
	Deprecated  bool   `json:"deprecated,omitempty"`
	Successor   string `json:"successor,omitempty"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the kernel catalog",
		Long: `List every entry in the embedded kernel catalog with its golden-test
standing and deprecation status.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, cmd)
		},
	}
}

func runCatalog(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	_, cat, _, err := snapshots()
	if err != nil {
		return WrapExitError(ExitCommandError, "load snapshots", err)
	}

	var summaries []CatalogEntrySummary
	for _, key := range cat.Keys() {
		kernelID, version, err := ir.ParseKernelKey(key)
		if err != nil {
			return WrapExitError(ExitCommandError, "catalog key", err)
		}
		e, _ := cat.Get(kernelID, version)
		summaries = append(summaries, CatalogEntrySummary{
			Key:         e.Key(),
			Domain:      e.Domain,
			ProblemType: e.ProblemType,
			Determinism: string(e.Determinism),
			Golden:      string(e.Golden),
			Deprecated:  e.Deprecated,
			Successor:   e.Successor,
		})
	}

	if formatter.Format == "json" {
		return formatter.SuccessJSON(summaries)
	}
	fmt.Fprintf(formatter.Writer, "catalog version %s\n", cat.Version())
	for _, s := range summaries {
		line := fmt.Sprintf("%-28s %s/%s golden=%s", s.Key, s.Domain, s.ProblemType, s.Golden)
		if s.Deprecated {
			line += " DEPRECATED"
			if s.Successor != "" {
				line += " -> " + s.Successor
			}
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}
