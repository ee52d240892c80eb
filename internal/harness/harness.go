package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/veritas/internal/canon"
	"github.com/roach88/veritas/internal/catalog"
	"github.com/roach88/veritas/internal/compute"
	"github.com/roach88/veritas/internal/engine"
	"github.com/roach88/veritas/internal/gate"
	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/ontology"
	"github.com/roach88/veritas/internal/solution"
)

// Harness owns a fully wired engine over the embedded ontology, catalog, and
// policy. One harness serves many scenarios; its cache persists across them,
// which is what makes repeat assertions meaningful.
type Harness struct {
	ont    *ontology.Snapshot
	engine *engine.Engine
}

// New builds a harness over the embedded defaults. Logs are discarded:
// scenario output is the report, not the log.
func New() (*Harness, error) {
	ont, err := ontology.Default()
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	cat, err := catalog.Default(ont)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	pol, err := gate.DefaultPolicy()
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}

	eng, err := engine.New(engine.Options{
		Ontology:         ont,
		Catalog:          cat,
		Policy:           pol,
		Registry:         compute.NewRegistry(),
		PipelineConfigID: "harness",
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	return &Harness{ont: ont, engine: eng}, nil
}

// Engine exposes the wired engine for tests that need direct access
// (invalidation, cache stats).
func (h *Harness) Engine() *engine.Engine {
	return h.engine
}

// Run evaluates a scenario the configured number of times and returns one
// snapshot per repetition.
func (h *Harness) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	raw, err := sc.SpecJSON()
	if err != nil {
		return nil, err
	}

	if sc.GoldenValue != nil {
		if err := h.registerGolden(raw, *sc.GoldenValue); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}

	report := &Report{Scenario: sc}
	for i := 0; i < sc.repetitions(); i++ {
		outcome, err := h.engine.Evaluate(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: evaluate: %w", sc.Name, err)
		}
		report.Outcomes = append(report.Outcomes, snapshot(outcome))
	}
	return report, nil
}

// registerGolden pins a certified answer for the spec before evaluation.
// The spec id is derived the same way the pipeline derives it.
func (h *Harness) registerGolden(raw []byte, value float64) error {
	pspec, err := ir.ParseProblemSpec(raw)
	if err != nil {
		return err
	}
	cspec, err := canon.New(h.ont).Canonicalize(pspec)
	if err != nil {
		return err
	}
	h.engine.RegisterGolden(cspec.SpecID, solution.GoldenReference{Value: value})
	return nil
}

func snapshot(outcome *engine.Outcome) OutcomeSnapshot {
	s := OutcomeSnapshot{
		Decision:       outcome.Decision.Decision,
		GateID:         outcome.Decision.GateID,
		Reasons:        outcome.Decision.Reasons,
		RequiredFields: outcome.Decision.RequiredFields,
		CacheHit:       outcome.CacheHit,
		UsedFallback:   outcome.UsedFallback,
	}
	if outcome.Spec != nil {
		s.SpecID = outcome.Spec.SpecID
	}
	if outcome.Result != nil {
		s.Value = outcome.Result.Bundle.Value
		s.Unit = outcome.Result.Bundle.Unit
		s.KernelID = outcome.Result.Bundle.KernelID
		s.KernelVersion = outcome.Result.Bundle.KernelVersion
	}
	return s
}
