package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/veritas/internal/ir"
)

// RunWithGolden runs a scenario and compares the outcome snapshots against a
// golden file at testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, h *Harness, sc *Scenario) error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	report, err := h.Run(ctx, sc)
	if err != nil {
		return err
	}
	return AssertGolden(t, sc.Name, report)
}

// AssertGolden compares an already collected report against a golden file.
func AssertGolden(t *testing.T, name string, report *Report) error {
	t.Helper()

	outcomes := make([]any, len(report.Outcomes))
	for i, o := range report.Outcomes {
		outcomes[i] = o.toCanonicalMap()
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"scenario": name,
		"outcomes": outcomes,
	})
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
