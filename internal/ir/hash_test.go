package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSpecDeterministic(t *testing.T) {
	a := HashSpec([]byte(`{"domain":"thermo"}`))
	b := HashSpec([]byte(`{"domain":"thermo"}`))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "hex-encoded SHA-256")
}

func TestHashDomainSeparation(t *testing.T) {
	// The same payload must hash differently under different domains;
	// a spec id can never collide with a cache key.
	payload := []byte(`{"x":1}`)
	spec := HashSpec(payload)
	key := hashWithDomain(DomainCacheKey, payload)
	bundle := hashWithDomain(DomainBundle, payload)
	assert.NotEqual(t, spec, key)
	assert.NotEqual(t, spec, bundle)
	assert.NotEqual(t, key, bundle)
}

func TestHashNullSeparatorBoundary(t *testing.T) {
	// Without the 0x00 separator, ("ab", "c") and ("a", "bc") would collide.
	a := hashWithDomain("ab", []byte("c"))
	b := hashWithDomain("a", []byte("bc"))
	assert.NotEqual(t, a, b)
}

func TestHashCacheKeyStableAcrossFieldOrder(t *testing.T) {
	a, err := HashCacheKey(IRObject{
		"spec_id":   IRString("s1"),
		"kernel_id": IRString("k1"),
	})
	require.NoError(t, err)
	b, err := HashCacheKey(IRObject{
		"kernel_id": IRString("k1"),
		"spec_id":   IRString("s1"),
	})
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order must not affect the cache key")
}

func TestHashCacheKeyRejectsNonFinite(t *testing.T) {
	_, err := HashCacheKey(IRObject{"v": IRFloat(inf())})
	assert.Error(t, err)
}

func TestHashBundleSensitiveToValue(t *testing.T) {
	base := SolutionBundle{Value: 1.0, Unit: "Pa", KernelID: "k", KernelVersion: "1.0.0"}
	other := base
	other.Value = 1.0000000000000002

	a, err := HashBundle(base)
	require.NoError(t, err)
	b, err := HashBundle(other)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMustHashCacheKeyPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustHashCacheKey(IRObject{"v": IRFloat(nan())})
	})
}
