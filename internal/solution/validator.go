package solution

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/veritas/internal/gate"
	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/ontology"
)

// GateSolution is the gate id stamped on solution-validator decisions.
const GateSolution = "solution_validator"

// GoldenReference is a certified expected answer for a golden-tagged spec,
// in SI base units.
type GoldenReference struct {
	Value float64
}

// Validator checks kernel output bundles against physical invariants,
// uncertainty policy, and golden references.
type Validator struct {
	ont *ontology.Snapshot
}

// New builds a solution validator over a pinned ontology snapshot.
func New(ont *ontology.Snapshot) *Validator {
	return &Validator{ont: ont}
}

// Validate runs the three stages in order and returns the first blocking
// decision. outputID is the canonical quantity id the kernel computes;
// golden is nil unless the spec carries a certified reference answer.
//
// Stage order matters: a bundle violating a hard invariant blocks even if
// its uncertainty also exceeds policy, and golden comparison only runs on a
// bundle that is at least physically admissible.
func (v *Validator) Validate(bundle ir.SolutionBundle, outputID string, golden *GoldenReference, pol gate.Policy) ir.GateDecision {
	if d, blocked := v.invariantStage(bundle, outputID); blocked {
		return d
	}
	if d, blocked := uncertaintyStage(bundle, pol); blocked {
		return d
	}
	if d, blocked := goldenStage(bundle, golden, pol); blocked {
		return d
	}
	return ir.Accept(GateSolution)
}

// invariantStage enforces hard physical invariants. Any violation is an
// ABSTAIN: the kernel produced a number the pipeline cannot certify, so the
// pipeline refuses to deliver it.
func (v *Validator) invariantStage(bundle ir.SolutionBundle, outputID string) (ir.GateDecision, bool) {
	violated := func() (ir.GateDecision, bool) {
		d := ir.GateDecision{
			GateID:   GateSolution,
			Decision: ir.DecisionAbstain,
			Reasons:  []ir.ReasonCode{ir.ReasonInvariantViolation},
		}
		d.Normalize()
		return d, true
	}

	if math.IsNaN(bundle.Value) || math.IsInf(bundle.Value, 0) {
		return violated()
	}

	def, ok := v.ont.Quantity(outputID)
	if !ok {
		return violated()
	}
	uv, err := v.ont.ParseUnit(bundle.Unit)
	if err != nil || uv.Dim != def.Dim {
		return violated()
	}
	if def.Absolute && uv.ToSI(bundle.Value) < 0 {
		return violated()
	}
	if r, bounded := v.ont.AdmissibleRange(outputID); bounded && !r.Contains(uv.ToSI(bundle.Value)) {
		return violated()
	}

	if bundle.Uncertainty != nil {
		u := bundle.Uncertainty
		if math.IsNaN(u.StdDev) || math.IsInf(u.StdDev, 0) || u.StdDev < 0 {
			return violated()
		}
		if math.IsNaN(u.EnsembleSpread) || u.EnsembleSpread < 0 {
			return violated()
		}
	}
	return ir.GateDecision{}, false
}

// uncertaintyStage abstains when the bundle's own uncertainty descriptor
// exceeds policy thresholds. An honest "too uncertain" beats a confident
// wrong answer.
func uncertaintyStage(bundle ir.SolutionBundle, pol gate.Policy) (ir.GateDecision, bool) {
	if bundle.Uncertainty == nil {
		return ir.GateDecision{}, false
	}
	u := bundle.Uncertainty

	exceeded := false
	if pol.MaxRelativeUncertainty > 0 && bundle.Value != 0 {
		if u.StdDev/math.Abs(bundle.Value) > pol.MaxRelativeUncertainty {
			exceeded = true
		}
	}
	if pol.MaxEnsembleSpread > 0 && u.EnsembleSpread > pol.MaxEnsembleSpread {
		exceeded = true
	}
	if u.Extrapolated && !pol.AllowExtrapolated {
		exceeded = true
	}
	if !exceeded {
		return ir.GateDecision{}, false
	}
	d := ir.GateDecision{
		GateID:   GateSolution,
		Decision: ir.DecisionAbstain,
		Reasons:  []ir.ReasonCode{ir.ReasonUncertaintyExceeded},
	}
	d.Normalize()
	return d, true
}

// goldenStage compares the bundle against a certified reference answer.
// Mismatch escalates: drift on a golden case means the kernel's certification
// no longer holds, and only an operator can resolve that.
func goldenStage(bundle ir.SolutionBundle, golden *GoldenReference, pol gate.Policy) (ir.GateDecision, bool) {
	if golden == nil {
		return ir.GateDecision{}, false
	}
	tol := pol.GoldenTolerance
	if tol <= 0 {
		tol = 1e-9
	}
	// Relative tolerance with an absolute floor near zero.
	if math.Abs(bundle.Value-golden.Value) <= tol*math.Max(1, math.Abs(golden.Value)) {
		return ir.GateDecision{}, false
	}
	d := ir.GateDecision{
		GateID:   GateSolution,
		Decision: ir.DecisionEscalate,
		Reasons:  []ir.ReasonCode{ir.ReasonGoldenMismatch},
	}
	d.Normalize()
	return d, true
}

// Stamp attaches provenance to an accepted bundle. The run id is fresh per
// execution; cache hits reuse the stored result, provenance included.
func Stamp(bundle ir.SolutionBundle, entry ir.KernelCatalogEntry, specID string, now time.Time) ir.ValidatedResult {
	return ir.ValidatedResult{
		Bundle: bundle,
		Provenance: ir.Provenance{
			KernelID:      entry.KernelID,
			KernelVersion: entry.Version,
			InterfaceHash: entry.InterfaceHash,
			SpecID:        specID,
			RunID:         uuid.NewString(),
			Determinism:   entry.Determinism,
			Timestamp:     now.UTC(),
		},
	}
}
