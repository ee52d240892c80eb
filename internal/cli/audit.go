package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/veritas/internal/store"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <spec-id>",
		Short: "Show the audit trail for a spec",
		Long: `Print every recorded gate decision for a spec id, oldest first.
Requires --db.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, args[0], cmd)
		},
	}
}

func runAudit(opts *RootOptions, specID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if opts.DBPath == "" {
		_ = formatter.Error("NO_DB", "audit requires --db", nil)
		return NewExitError(ExitCommandError, "audit requires --db")
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error("DB_OPEN_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	records, err := st.ListAudit(cmd.Context(), specID)
	if err != nil {
		return WrapExitError(ExitCommandError, "list audit", err)
	}

	if formatter.Format == "json" {
		return formatter.SuccessJSON(records)
	}
	if len(records) == 0 {
		fmt.Fprintf(formatter.Writer, "no audit records for %s\n", specID)
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(formatter.Writer, "%s %-20s %-8s", rec.CreatedAt, rec.GateID, rec.Decision)
		for _, r := range rec.Reasons {
			fmt.Fprintf(formatter.Writer, " %s", r)
		}
		if rec.CacheEvent != "" {
			fmt.Fprintf(formatter.Writer, " cache=%s", rec.CacheEvent)
		}
		if rec.Confidence != "" {
			fmt.Fprintf(formatter.Writer, " confidence=%s", rec.Confidence)
		}
		if rec.RunID != "" {
			fmt.Fprintf(formatter.Writer, " run=%s", rec.RunID)
		}
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}
