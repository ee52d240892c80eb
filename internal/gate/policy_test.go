package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	pol, err := DefaultPolicy()
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", pol.Version)
	assert.Equal(t, "pressure_reference_clarification", pol.AmbiguousUnits["psi"])
	assert.InDelta(t, 0.05, pol.MaxRelativeUncertainty, 1e-12)
	assert.InDelta(t, 1e-9, pol.GoldenTolerance, 1e-21)
	assert.False(t, pol.AllowExtrapolated)
}

func TestPolicyFallbackKernel(t *testing.T) {
	pol, err := DefaultPolicy()
	require.NoError(t, err)

	id, ok := pol.FallbackKernel("thermo", "state_point")
	require.True(t, ok)
	assert.Equal(t, "thermo_lookup_table", id)

	_, ok = pol.FallbackKernel("fluids", "hydrostatic_pressure")
	assert.False(t, ok)
}

func TestPolicyDomainFlags(t *testing.T) {
	pol, err := DefaultPolicy()
	require.NoError(t, err)

	assert.True(t, pol.IsSafetyCritical("pressure_vessels"))
	assert.False(t, pol.IsSafetyCritical("thermo"))
	assert.True(t, pol.RequiresManualAssumptionApproval("fluids"))
	assert.False(t, pol.RequiresManualAssumptionApproval("thermo"))
}

func TestLoadPolicyRejectsMissingVersion(t *testing.T) {
	_, err := LoadPolicy([]byte(`ambiguous_units: {}`))
	assert.Error(t, err)
}

func TestSchemaCheckerMessages(t *testing.T) {
	checker, err := newSchemaChecker()
	require.NoError(t, err)

	assert.Empty(t, checker.Check([]byte(`{
		"schema_version": "1.2.0",
		"domain": "thermo",
		"problem_type": "state_point",
		"quantities": [{"id": "thermo.temperature", "magnitude": 300, "unit": "K"}],
		"unknowns": ["thermo.pressure"]
	}`)))

	assert.NotEmpty(t, checker.Check([]byte(`{"domain": "thermo"}`)), "missing required fields")
	assert.NotEmpty(t, checker.Check([]byte(`{
		"schema_version": "oops",
		"domain": "thermo",
		"problem_type": "state_point",
		"quantities": [],
		"unknowns": []
	}`)), "schema_version must be semver")
	assert.NotEmpty(t, checker.Check([]byte(`not json`)))
}
