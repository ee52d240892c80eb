package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKernelKey(t *testing.T) {
	id, ver, err := ParseKernelKey("thermo_ideal_gas@1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "thermo_ideal_gas", id)
	assert.Equal(t, "1.0.0", ver)

	for _, bad := range []string{"", "nokey", "@1.0.0", "kernel@"} {
		_, _, err := ParseKernelKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestCatalogEntryKey(t *testing.T) {
	e := KernelCatalogEntry{KernelID: "fluids_hydrostatic", Version: "1.0.0"}
	assert.Equal(t, "fluids_hydrostatic@1.0.0", e.Key())
}

func TestCatalogEntryStable(t *testing.T) {
	assert.True(t, KernelCatalogEntry{Golden: GoldenPass}.Stable())
	assert.False(t, KernelCatalogEntry{Golden: GoldenPass, Deprecated: true}.Stable())
	assert.False(t, KernelCatalogEntry{Golden: GoldenFail}.Stable())
	assert.False(t, KernelCatalogEntry{Golden: GoldenUntested}.Stable())
}

func TestRangeContains(t *testing.T) {
	r := Range{Min: 0, Max: 10000}
	assert.True(t, r.Contains(0))
	assert.True(t, r.Contains(10000))
	assert.False(t, r.Contains(-0.001))
	assert.False(t, r.Contains(10000.001))
}

func TestBundleToIRIncludesUncertainty(t *testing.T) {
	b := SolutionBundle{
		Value: 101325, Unit: "Pa",
		Uncertainty:   &UncertaintyDescriptor{StdDev: 12.5},
		ValidityFlags: []string{"tabulated"},
		KernelID:      "thermo_lookup_table", KernelVersion: "1.0.0",
	}
	data, err := MarshalCanonical(b.ToIR())
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"std_dev":12.5`)
	assert.Contains(t, s, `"validity_flags":["tabulated"]`)
}
