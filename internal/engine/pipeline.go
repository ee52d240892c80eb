package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/veritas/internal/cache"
	"github.com/roach88/veritas/internal/catalog"
	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/solution"
)

// Gate ids for decisions the engine itself issues. GateCache marks the
// cache hit/miss records in the audit trail.
const (
	GateSelector = "kernel_selector"
	GateCache    = "result_cache"
	GatePipeline = "pipeline"
)

// Outcome is the full result of one pipeline evaluation.
type Outcome struct {
	// Decision is always set. Result is non-nil only for ACCEPT and
	// FALLBACK.
	Decision ir.GateDecision
	Spec     *ir.CanonicalSpec
	Result   *ir.ValidatedResult

	CacheHit     bool
	UsedFallback bool
}

// Evaluate runs raw producer JSON through the full pipeline. Content
// problems never surface as errors; those become decisions. The error
// return is reserved for broken engine wiring, the one condition that
// aborts the request: a gate-accepted spec the canonicalizer cannot
// normalize.
//
// Every decision the pipeline issues, the kernel selection, and the cache
// hit or miss are written to the audit trail under a run id minted for
// this request.
func (e *Engine) Evaluate(ctx context.Context, raw []byte) (*Outcome, error) {
	runID := uuid.NewString()

	decision, pspec := e.gate.Evaluate(raw, e.policy)
	if decision.Blocking() {
		e.audit(ctx, runID, "", decision, pspec)
		return &Outcome{Decision: decision}, nil
	}

	cspec, err := e.canon.Canonicalize(pspec)
	if err != nil {
		// The gate accepted something the canonicalizer cannot normalize.
		// Internal inconsistency, not producer error: abort the request.
		e.log.ErrorContext(ctx, "canonicalization failed", "run_id", runID, "error", err)
		return nil, fmt.Errorf("canonicalize spec: %w", err)
	}
	e.persistSpec(ctx, cspec)

	entry, selDecision, ok := e.selectKernel(cspec)
	if !ok {
		e.audit(ctx, runID, cspec.SpecID, selDecision, pspec)
		return &Outcome{Decision: selDecision, Spec: cspec}, nil
	}
	usedFallback := selDecision.Decision == ir.DecisionFallback
	e.audit(ctx, runID, cspec.SpecID, selDecision, pspec)

	result, hit, err := e.executeEntry(ctx, cspec, entry)
	if err != nil {
		var blocked *blockedError
		if errors.As(err, &blocked) {
			e.audit(ctx, runID, cspec.SpecID, blocked.decision, pspec)
			return &Outcome{Decision: blocked.decision, Spec: cspec}, nil
		}

		// Infrastructure failure: route to the registered classical
		// alternative once, then give up honestly.
		e.log.WarnContext(ctx, "kernel execution failed",
			"kernel", entry.Key(), "run_id", runID, "error", err)
		if !usedFallback {
			if fb, fbOK := e.fallbackEntry(cspec); fbOK && fb.KernelID != entry.KernelID {
				result, hit, err = e.executeEntry(ctx, cspec, fb)
				if err == nil {
					e.log.InfoContext(ctx, "kernel executed",
						"kernel", fb.Key(), "spec_id", cspec.SpecID, "cache_hit", hit)
					e.auditCacheEvent(ctx, runID, cspec.SpecID, hit, pspec)
					d := fallbackDecision(ir.ReasonExecutionFailed)
					e.audit(ctx, runID, cspec.SpecID, d, pspec)
					return &Outcome{
						Decision:     d,
						Spec:         cspec,
						Result:       &result,
						CacheHit:     hit,
						UsedFallback: true,
					}, nil
				}
				var fbBlocked *blockedError
				if errors.As(err, &fbBlocked) {
					e.audit(ctx, runID, cspec.SpecID, fbBlocked.decision, pspec)
					return &Outcome{Decision: fbBlocked.decision, Spec: cspec}, nil
				}
				e.log.WarnContext(ctx, "fallback kernel execution failed",
					"kernel", fb.Key(), "run_id", runID, "error", err)
			}
		}
		d := ir.GateDecision{
			GateID:   GatePipeline,
			Decision: ir.DecisionAbstain,
			Reasons:  []ir.ReasonCode{ir.ReasonExecutionFailed},
		}
		d.Normalize()
		e.audit(ctx, runID, cspec.SpecID, d, pspec)
		return &Outcome{Decision: d, Spec: cspec}, nil
	}

	e.log.InfoContext(ctx, "kernel executed",
		"kernel", entry.Key(), "spec_id", cspec.SpecID, "cache_hit", hit)
	e.auditCacheEvent(ctx, runID, cspec.SpecID, hit, pspec)

	final := selDecision
	if !usedFallback {
		final = ir.Accept(GatePipeline)
	}
	e.audit(ctx, runID, cspec.SpecID, final, pspec)
	return &Outcome{
		Decision:     final,
		Spec:         cspec,
		Result:       &result,
		CacheHit:     hit,
		UsedFallback: usedFallback,
	}, nil
}

// selectKernel picks the kernel for a canonical spec. The returned decision
// is meaningful in two cases: FALLBACK (a registered alternative was
// substituted) and the blocking ABSTAIN when nothing is compatible.
func (e *Engine) selectKernel(cspec *ir.CanonicalSpec) (ir.KernelCatalogEntry, ir.GateDecision, bool) {
	crit := e.criteria(cspec)
	entry, err := catalog.Select(e.ont.catalog, cspec, crit)
	if err == nil {
		return entry, ir.Accept(GateSelector), true
	}

	if fb, ok := e.fallbackEntry(cspec); ok {
		return fb, fallbackDecision(ir.ReasonNoCompatibleKernel), true
	}

	d := ir.GateDecision{
		GateID:   GateSelector,
		Decision: ir.DecisionAbstain,
		Reasons:  []ir.ReasonCode{ir.ReasonNoCompatibleKernel},
	}
	d.Normalize()
	return ir.KernelCatalogEntry{}, d, false
}

func (e *Engine) criteria(cspec *ir.CanonicalSpec) catalog.Criteria {
	expected, _ := e.ont.catalog.ExpectedInterface(cspec.Domain, cspec.ProblemType)
	threshold := ir.GoldenStatus(e.policy.GoldenThreshold[cspec.Domain])
	if threshold != ir.GoldenPass && threshold != ir.GoldenUntested {
		threshold = ir.GoldenPass
	}
	return catalog.Criteria{
		SchemaVersion:   cspec.SchemaVersion,
		OntologyVersion: cspec.OntologyVersion,
		InterfaceHash:   expected,
		GoldenThreshold: threshold,
	}
}

func (e *Engine) fallbackEntry(cspec *ir.CanonicalSpec) (ir.KernelCatalogEntry, bool) {
	fbID, ok := e.policy.FallbackKernel(cspec.Domain, cspec.ProblemType)
	if !ok {
		return ir.KernelCatalogEntry{}, false
	}
	entry, err := catalog.SelectKernel(e.ont.catalog, cspec, fbID, e.criteria(cspec))
	if err != nil {
		return ir.KernelCatalogEntry{}, false
	}
	return entry, true
}

func fallbackDecision(reason ir.ReasonCode) ir.GateDecision {
	d := ir.GateDecision{
		GateID:   GateSelector,
		Decision: ir.DecisionFallback,
		Reasons:  []ir.ReasonCode{reason},
	}
	d.Normalize()
	return d
}

// executeEntry runs the kernel through the memoizing cache. The compute
// closure executes at most once per key across all concurrent callers, and
// only validated results are cached.
func (e *Engine) executeEntry(ctx context.Context, cspec *ir.CanonicalSpec, entry ir.KernelCatalogEntry) (ir.ValidatedResult, bool, error) {
	key, err := cache.KeyComponents{
		SpecID:           cspec.SpecID,
		KernelID:         entry.KernelID,
		KernelVersion:    entry.Version,
		PipelineConfigID: e.pipelineConfigID,
		Determinism:      entry.Determinism,
	}.Hash()
	if err != nil {
		return ir.ValidatedResult{}, false, err
	}

	iface, err := e.ont.catalog.Interface(entry.KernelID, entry.Version)
	if err != nil {
		return ir.ValidatedResult{}, false, err
	}

	meta := cache.Meta{
		KernelEpoch:     entry.Key(),
		OntologyVersion: cspec.OntologyVersion,
		Determinism:     entry.Determinism,
	}
	return e.cache.GetOrCompute(ctx, key, meta, func(ctx context.Context) (ir.ValidatedResult, error) {
		bundle, err := e.registry.Run(ctx, entry, cspec)
		if err != nil {
			return ir.ValidatedResult{}, &execError{kernel: entry.Key(), err: err}
		}

		d := e.solution.Validate(bundle, iface.Output, e.golden(cspec.SpecID), e.policy)
		if d.Blocking() {
			return ir.ValidatedResult{}, &blockedError{decision: d}
		}

		result := solution.Stamp(bundle, entry, cspec.SpecID, e.clock.Now())
		e.persistResult(ctx, result)
		return result, nil
	})
}

func (e *Engine) persistSpec(ctx context.Context, cspec *ir.CanonicalSpec) {
	if e.store == nil {
		return
	}
	if err := e.store.WriteCanonicalSpec(ctx, cspec); err != nil {
		e.log.WarnContext(ctx, "spec persist failed", "spec_id", cspec.SpecID, "error", err)
	}
}

func (e *Engine) persistResult(ctx context.Context, result ir.ValidatedResult) {
	if e.store == nil {
		return
	}
	if err := e.store.WriteResult(ctx, result); err != nil {
		e.log.WarnContext(ctx, "result persist failed",
			"spec_id", result.Provenance.SpecID, "error", err)
	}
}
