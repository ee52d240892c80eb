package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// DBPath, when set, persists specs, results, and audit records to a
	// SQLite database.
	DBPath string

	// PipelineConfigID identifies the active pipeline configuration; it is
	// part of every cache key.
	PipelineConfigID string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the veritas CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "veritas",
		Short: "Deterministic validation and execution core",
		Long: "Validates untrusted problem specs against a pinned ontology, normalizes\n" +
			"them to content-addressed canonical form, and executes certified compute\n" +
			"kernels with memoized, reproducible results.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path for persistence (optional)")
	cmd.PersistentFlags().StringVar(&opts.PipelineConfigID, "pipeline-config", "default", "pipeline configuration id")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCanonCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
