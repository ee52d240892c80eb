package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/veritas/internal/catalog"
	"github.com/roach88/veritas/internal/compute"
	"github.com/roach88/veritas/internal/engine"
	"github.com/roach88/veritas/internal/gate"
	"github.com/roach88/veritas/internal/ontology"
	"github.com/roach88/veritas/internal/store"
)

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// snapshots loads the embedded ontology, catalog, and policy.
func snapshots() (*ontology.Snapshot, *catalog.Snapshot, gate.Policy, error) {
	ont, err := ontology.Default()
	if err != nil {
		return nil, nil, gate.Policy{}, err
	}
	cat, err := catalog.Default(ont)
	if err != nil {
		return nil, nil, gate.Policy{}, err
	}
	pol, err := gate.DefaultPolicy()
	if err != nil {
		return nil, nil, gate.Policy{}, err
	}
	return ont, cat, pol, nil
}

// buildEngine wires a full engine from the root options. The returned
// closer releases the store, if one was opened; it is never nil.
func buildEngine(opts *RootOptions) (*engine.Engine, io.Closer, error) {
	ont, cat, pol, err := snapshots()
	if err != nil {
		return nil, nil, err
	}

	var st *store.Store
	closer := io.Closer(nopCloser{})
	if opts.DBPath != "" {
		st, err = store.Open(opts.DBPath)
		if err != nil {
			return nil, nil, err
		}
		closer = st
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	eng, err := engine.New(engine.Options{
		Ontology:         ont,
		Catalog:          cat,
		Policy:           pol,
		Registry:         compute.NewRegistry(),
		Store:            st,
		PipelineConfigID: opts.PipelineConfigID,
		Logger:           logger,
	})
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return eng, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
