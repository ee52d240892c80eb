package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veritas/internal/ir"
)

func TestDefaultLoads(t *testing.T) {
	snap, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "2.3.0", snap.Version())
	assert.NotEmpty(t, snap.QuantityIDs())
	assert.True(t, snap.HasDomain("thermo"))
	assert.True(t, snap.HasAssumption("ideal_gas"))
	assert.False(t, snap.HasAssumption("frictionless_vacuum"))
}

func TestLookupByAliasNormalization(t *testing.T) {
	snap := MustDefault()

	for _, term := range []string{"temperature", "Temperature", "  TEMPERATURE  "} {
		defs := snap.LookupByAlias(term)
		require.Len(t, defs, 1, term)
		assert.Equal(t, "thermo.temperature", defs[0].ID)
	}

	// "specific weight" is deliberately ambiguous reference data.
	defs := snap.LookupByAlias("specific weight")
	require.Len(t, defs, 2)
}

func TestResolve(t *testing.T) {
	snap := MustDefault()

	def, ok := snap.Resolve("pressure")
	require.True(t, ok)
	assert.Equal(t, "thermo.pressure", def.ID)

	// Collision across differing dimensions does not resolve.
	_, ok = snap.Resolve("specific weight")
	assert.False(t, ok)

	_, ok = snap.Resolve("no such term")
	assert.False(t, ok)
}

func TestAdmissibleRange(t *testing.T) {
	snap := MustDefault()

	r, ok := snap.AdmissibleRange("thermo.temperature")
	require.True(t, ok)
	assert.Equal(t, ir.Range{Min: 0, Max: 10000}, r)

	_, ok = snap.AdmissibleRange("nonexistent")
	assert.False(t, ok)
}

func TestAllowedOperators(t *testing.T) {
	snap := MustDefault()

	ops, err := snap.AllowedOperators("thermo")
	require.NoError(t, err)
	assert.True(t, ops[ir.OpMultiply])
	assert.False(t, ops[ir.OpPower], "thermo excludes power")

	ops, err = snap.AllowedOperators("fluids")
	require.NoError(t, err)
	assert.True(t, ops[ir.OpPower])

	_, err = snap.AllowedOperators("astrology")
	assert.Error(t, err)
}

func TestLoadRejectsBadDescriptors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing version", `
quantities: []
`},
		{"duplicate quantity", `
version: "1.0.0"
quantities:
  - {id: q.a, canonical_unit: "1"}
  - {id: q.a, canonical_unit: "1"}
`},
		{"unknown dim key", `
version: "1.0.0"
quantities:
  - {id: q.a, dim: {spin: 1}, canonical_unit: "1"}
`},
		{"unit contradicts dim", `
version: "1.0.0"
quantities:
  - {id: q.a, dim: {mass: 1}, canonical_unit: "m"}
`},
		{"unparseable canonical unit", `
version: "1.0.0"
quantities:
  - {id: q.a, canonical_unit: "furlong"}
`},
		{"unknown sign convention", `
version: "1.0.0"
quantities:
  - {id: q.a, canonical_unit: "1", sign_convention: "always_up"}
`},
		{"duplicate domain", `
version: "1.0.0"
domains:
  - {id: d, allowed_operators: [reference]}
  - {id: d, allowed_operators: [reference]}
`},
		{"unknown operator in allowlist", `
version: "1.0.0"
domains:
  - {id: d, allowed_operators: [modulo]}
`},
		{"duplicate assumption", `
version: "1.0.0"
assumptions: [ideal_gas, ideal_gas]
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestCanonicalUnitDimensionIntegrity(t *testing.T) {
	// Every quantity's canonical unit must parse to its declared dimension
	// with factor 1 and no offset, so canonical magnitudes are SI magnitudes.
	snap := MustDefault()
	for _, id := range snap.QuantityIDs() {
		def, ok := snap.Quantity(id)
		require.True(t, ok)
		uv, err := snap.ParseUnit(def.CanonicalUnit)
		require.NoError(t, err, id)
		assert.Equal(t, def.Dim, uv.Dim, id)
		assert.InDelta(t, 1.0, uv.Factor, 1e-12, id)
		assert.Zero(t, uv.Offset, id)
	}
}
