package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/ontology"
)

func defaultSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	ont := ontology.MustDefault()
	snap, err := Default(ont)
	require.NoError(t, err)
	return snap
}

func statePointSpec(temp, vol, amount float64) *ir.CanonicalSpec {
	return &ir.CanonicalSpec{
		SchemaVersion: "1.2.0",
		Domain:        "thermo",
		ProblemType:   "state_point",
		Quantities: []ir.CanonicalQuantity{
			{ID: "thermo.amount", Value: amount, Unit: "mol"},
			{ID: "thermo.temperature", Value: temp, Unit: "K"},
			{ID: "thermo.volume", Value: vol, Unit: "m3"},
		},
		Unknowns:        []string{"thermo.pressure"},
		OntologyVersion: "2.3.0",
	}
}

func defaultCriteria() Criteria {
	return Criteria{
		SchemaVersion:   "1.2.0",
		OntologyVersion: "2.3.0",
		InterfaceHash:   "8c2f41d7a90b3e16",
		GoldenThreshold: ir.GoldenPass,
	}
}

func TestSelectOldestStable(t *testing.T) {
	snap := defaultSnapshot(t)

	// 0.9.0 is deprecated, 1.0.0 and 1.2.0 are stable; oldest stable wins.
	// thermo_lookup_table@1.0.0 also qualifies, and the lexicographic
	// tie-break at equal versions prefers thermo_ideal_gas.
	e, err := Select(snap, statePointSpec(300, 0.024, 1), defaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, "thermo_ideal_gas", e.KernelID)
	assert.Equal(t, "1.0.0", e.Version)
}

func TestSelectEnvelopeNarrowsCandidates(t *testing.T) {
	snap := defaultSnapshot(t)

	// 5500 K exceeds the 1.0.0 envelope (max 5000) and the lookup table
	// (max 1500) but fits 1.2.0 (max 6000).
	e, err := Select(snap, statePointSpec(5500, 0.024, 1), defaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, "thermo_ideal_gas@1.2.0", e.Key())
}

func TestSelectNoCandidate(t *testing.T) {
	snap := defaultSnapshot(t)

	// 7000 K exceeds every envelope.
	_, err := Select(snap, statePointSpec(7000, 0.024, 1), defaultCriteria())
	assert.ErrorIs(t, err, ErrNoCompatibleKernel)

	// Unknown problem type.
	spec := statePointSpec(300, 0.024, 1)
	spec.ProblemType = "phase_change"
	_, err = Select(snap, spec, defaultCriteria())
	assert.ErrorIs(t, err, ErrNoCompatibleKernel)
}

func TestSelectSchemaCompatibility(t *testing.T) {
	snap := defaultSnapshot(t)

	crit := defaultCriteria()
	crit.SchemaVersion = "3.0.0"
	_, err := Select(snap, statePointSpec(300, 0.024, 1), crit)
	assert.ErrorIs(t, err, ErrNoCompatibleKernel)
}

func TestSelectInterfaceHashPinning(t *testing.T) {
	snap := defaultSnapshot(t)

	crit := defaultCriteria()
	crit.InterfaceHash = "0000000000000000"
	_, err := Select(snap, statePointSpec(300, 0.024, 1), crit)
	assert.ErrorIs(t, err, ErrNoCompatibleKernel)
}

func TestSelectGoldenThreshold(t *testing.T) {
	ont := ontology.MustDefault()
	snap := defaultSnapshot(t)

	spec := &ir.CanonicalSpec{
		SchemaVersion: "1.2.0",
		Domain:        "mechanics",
		ProblemType:   "uniform_acceleration",
		Quantities: []ir.CanonicalQuantity{
			{ID: "mech.time", Value: 10, Unit: "s"},
			{ID: "mech.velocity", Value: 5, Unit: "m/s"},
		},
		Unknowns:        []string{"mech.length"},
		OntologyVersion: ont.Version(),
	}
	crit := Criteria{
		SchemaVersion:   "1.2.0",
		OntologyVersion: ont.Version(),
		InterfaceHash:   "72b8e0f3419cd6a5",
		GoldenThreshold: ir.GoldenPass,
	}

	// mech_kinematics is golden-untested; a pass threshold excludes it.
	_, err := Select(snap, spec, crit)
	assert.ErrorIs(t, err, ErrNoCompatibleKernel)

	crit.GoldenThreshold = ir.GoldenUntested
	e, err := Select(snap, spec, crit)
	require.NoError(t, err)
	assert.Equal(t, "mech_kinematics@1.0.0", e.Key())
}

func TestSelectDeprecatedOnlyWhenNoStable(t *testing.T) {
	ont := ontology.MustDefault()
	yaml := `
version: "1.0.0"
kernels:
  - kernel_id: thermo_ideal_gas
    version: "0.9.0"
    domain: thermo
    problem_type: state_point
    envelope:
      thermo.temperature: {min: 200.0, max: 2000.0}
    schema_compat: {min: "1.0.0", max: "1.9.9"}
    ontology_compat: {min: "2.0.0", max: "2.9.9"}
    interface_hash: "aa"
    determinism: numeric
    golden: pass
    deprecated: true
    successor: thermo_ideal_gas@1.0.0
    interface: {inputs: [thermo.temperature], output: thermo.pressure, hash: "aa"}
  - kernel_id: thermo_ideal_gas
    version: "1.0.0"
    domain: thermo
    problem_type: state_point
    envelope:
      thermo.temperature: {min: 200.0, max: 2000.0}
    schema_compat: {min: "1.0.0", max: "1.9.9"}
    ontology_compat: {min: "2.0.0", max: "2.9.9"}
    interface_hash: "aa"
    determinism: numeric
    golden: fail
    interface: {inputs: [thermo.temperature], output: thermo.pressure, hash: "aa"}
`
	snap, err := Load([]byte(yaml), ont)
	require.NoError(t, err)

	spec := statePointSpec(300, 0.024, 1)
	crit := Criteria{
		SchemaVersion:   "1.2.0",
		OntologyVersion: "2.3.0",
		InterfaceHash:   "aa",
		GoldenThreshold: ir.GoldenUntested,
	}

	// 1.0.0 failed golden and 0.9.0 is deprecated: with golden-fail entries
	// never admitted, the deprecated pass entry is the only candidate left.
	e, err := Select(snap, spec, crit)
	require.NoError(t, err)
	assert.Equal(t, "thermo_ideal_gas@0.9.0", e.Key())
	assert.True(t, e.Deprecated)
}

func TestSelectKernelRestrictsToNamedID(t *testing.T) {
	snap := defaultSnapshot(t)

	e, err := SelectKernel(snap, statePointSpec(300, 0.024, 1), "thermo_lookup_table", defaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, "thermo_lookup_table@1.0.0", e.Key())

	_, err = SelectKernel(snap, statePointSpec(300, 0.024, 1), "no_such_kernel", defaultCriteria())
	assert.ErrorIs(t, err, ErrNoCompatibleKernel)
}

func TestSuccessorResolution(t *testing.T) {
	snap := defaultSnapshot(t)

	old, ok := snap.Get("thermo_ideal_gas", "0.9.0")
	require.True(t, ok)
	succ, ok := snap.Successor(old)
	require.True(t, ok)
	assert.Equal(t, "thermo_ideal_gas@1.0.0", succ.Key())

	current, ok := snap.Get("thermo_ideal_gas", "1.0.0")
	require.True(t, ok)
	_, ok = snap.Successor(current)
	assert.False(t, ok, "non-deprecated entries have no successor")
}

func TestExpectedInterface(t *testing.T) {
	snap := defaultSnapshot(t)

	hash, ok := snap.ExpectedInterface("thermo", "state_point")
	require.True(t, ok)
	assert.Equal(t, "8c2f41d7a90b3e16", hash)

	_, ok = snap.ExpectedInterface("thermo", "phase_change")
	assert.False(t, ok)
}
