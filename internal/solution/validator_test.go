package solution

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veritas/internal/gate"
	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/ontology"
)

func newValidator(t *testing.T) (*Validator, gate.Policy) {
	t.Helper()
	pol, err := gate.DefaultPolicy()
	require.NoError(t, err)
	return New(ontology.MustDefault()), pol
}

func pressureBundle(v float64) ir.SolutionBundle {
	return ir.SolutionBundle{
		Value: v, Unit: "Pa",
		KernelID: "thermo_ideal_gas", KernelVersion: "1.0.0",
	}
}

func TestValidateAccept(t *testing.T) {
	v, pol := newValidator(t)

	d := v.Validate(pressureBundle(101325), "thermo.pressure", nil, pol)
	assert.Equal(t, ir.DecisionAccept, d.Decision)
	assert.Equal(t, GateSolution, d.GateID)
}

func TestInvariantNonFinite(t *testing.T) {
	v, pol := newValidator(t)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		d := v.Validate(pressureBundle(bad), "thermo.pressure", nil, pol)
		assert.Equal(t, ir.DecisionAbstain, d.Decision)
		assert.True(t, d.HasReason(ir.ReasonInvariantViolation))
	}
}

func TestInvariantUnknownOutput(t *testing.T) {
	v, pol := newValidator(t)

	d := v.Validate(pressureBundle(101325), "thermo.entropy", nil, pol)
	assert.Equal(t, ir.DecisionAbstain, d.Decision)
}

func TestInvariantUnitDimension(t *testing.T) {
	v, pol := newValidator(t)

	b := pressureBundle(101325)
	b.Unit = "m"
	d := v.Validate(b, "thermo.pressure", nil, pol)
	assert.Equal(t, ir.DecisionAbstain, d.Decision)

	b.Unit = "not-a-unit"
	d = v.Validate(b, "thermo.pressure", nil, pol)
	assert.Equal(t, ir.DecisionAbstain, d.Decision)
}

func TestInvariantAbsoluteNegative(t *testing.T) {
	v, pol := newValidator(t)

	// Pressure is absolute: a negative value is physically wrong regardless
	// of provenance.
	d := v.Validate(pressureBundle(-5), "thermo.pressure", nil, pol)
	assert.Equal(t, ir.DecisionAbstain, d.Decision)
	assert.True(t, d.HasReason(ir.ReasonInvariantViolation))

	// Length is signed; negative is admissible.
	b := ir.SolutionBundle{Value: -3, Unit: "m", KernelID: "mech_kinematics", KernelVersion: "1.0.0"}
	d = v.Validate(b, "mech.length", nil, pol)
	assert.Equal(t, ir.DecisionAccept, d.Decision)
}

func TestInvariantAdmissibleRange(t *testing.T) {
	v, pol := newValidator(t)

	b := ir.SolutionBundle{Value: 50000, Unit: "K", KernelID: "k", KernelVersion: "1.0.0"}
	d := v.Validate(b, "thermo.temperature", nil, pol)
	assert.Equal(t, ir.DecisionAbstain, d.Decision)
}

func TestInvariantBadUncertaintyDescriptor(t *testing.T) {
	v, pol := newValidator(t)

	for _, u := range []*ir.UncertaintyDescriptor{
		{StdDev: math.NaN()},
		{StdDev: -1},
		{StdDev: 1, EnsembleSpread: -0.1},
	} {
		b := pressureBundle(101325)
		b.Uncertainty = u
		d := v.Validate(b, "thermo.pressure", nil, pol)
		assert.Equal(t, ir.DecisionAbstain, d.Decision)
	}
}

func TestUncertaintyExceeded(t *testing.T) {
	v, pol := newValidator(t)

	// 10% relative against a 5% cap.
	b := pressureBundle(100000)
	b.Uncertainty = &ir.UncertaintyDescriptor{StdDev: 10000}
	d := v.Validate(b, "thermo.pressure", nil, pol)
	assert.Equal(t, ir.DecisionAbstain, d.Decision)
	assert.True(t, d.HasReason(ir.ReasonUncertaintyExceeded))

	// 1% passes.
	b.Uncertainty = &ir.UncertaintyDescriptor{StdDev: 1000}
	d = v.Validate(b, "thermo.pressure", nil, pol)
	assert.Equal(t, ir.DecisionAccept, d.Decision)
}

func TestEnsembleSpreadExceeded(t *testing.T) {
	v, pol := newValidator(t)

	b := pressureBundle(100000)
	b.Uncertainty = &ir.UncertaintyDescriptor{StdDev: 100, EnsembleSpread: 0.03}
	d := v.Validate(b, "thermo.pressure", nil, pol)
	assert.Equal(t, ir.DecisionAbstain, d.Decision)
	assert.True(t, d.HasReason(ir.ReasonUncertaintyExceeded))
}

func TestExtrapolatedAbstains(t *testing.T) {
	v, pol := newValidator(t)

	b := pressureBundle(100000)
	b.Uncertainty = &ir.UncertaintyDescriptor{StdDev: 100, Extrapolated: true}

	d := v.Validate(b, "thermo.pressure", nil, pol)
	assert.Equal(t, ir.DecisionAbstain, d.Decision)
	assert.True(t, d.HasReason(ir.ReasonUncertaintyExceeded))

	// Policy can admit extrapolated values explicitly.
	pol.AllowExtrapolated = true
	d = v.Validate(b, "thermo.pressure", nil, pol)
	assert.Equal(t, ir.DecisionAccept, d.Decision)
}

func TestGoldenComparison(t *testing.T) {
	v, pol := newValidator(t)

	golden := &GoldenReference{Value: 101325}

	d := v.Validate(pressureBundle(101325), "thermo.pressure", golden, pol)
	assert.Equal(t, ir.DecisionAccept, d.Decision)

	// Inside relative tolerance.
	d = v.Validate(pressureBundle(101325+1e-6), "thermo.pressure", golden, pol)
	assert.Equal(t, ir.DecisionAccept, d.Decision)

	// Clearly off.
	d = v.Validate(pressureBundle(101330), "thermo.pressure", golden, pol)
	assert.Equal(t, ir.DecisionEscalate, d.Decision)
	assert.True(t, d.HasReason(ir.ReasonGoldenMismatch))
}

func TestInvariantBeatsGolden(t *testing.T) {
	v, pol := newValidator(t)

	// Negative pressure with a golden reference: the invariant ABSTAIN wins.
	d := v.Validate(pressureBundle(-5), "thermo.pressure", &GoldenReference{Value: -5}, pol)
	assert.Equal(t, ir.DecisionAbstain, d.Decision)
	assert.True(t, d.HasReason(ir.ReasonInvariantViolation))
}

func TestStamp(t *testing.T) {
	entry := ir.KernelCatalogEntry{
		KernelID: "thermo_ideal_gas", Version: "1.0.0",
		InterfaceHash: "8c2f41d7a90b3e16",
		Determinism:   ir.DeterminismNumeric,
	}
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	r := Stamp(pressureBundle(101325), entry, "spec-1", now)
	assert.Equal(t, "thermo_ideal_gas", r.Provenance.KernelID)
	assert.Equal(t, "1.0.0", r.Provenance.KernelVersion)
	assert.Equal(t, "spec-1", r.Provenance.SpecID)
	assert.Equal(t, ir.DeterminismNumeric, r.Provenance.Determinism)
	assert.NotEmpty(t, r.Provenance.RunID)
	assert.Equal(t, time.UTC, r.Provenance.Timestamp.Location())
	assert.Equal(t, now.UTC(), r.Provenance.Timestamp)

	r2 := Stamp(pressureBundle(101325), entry, "spec-1", now)
	assert.NotEqual(t, r.Provenance.RunID, r2.Provenance.RunID, "run ids are per execution")
}
