package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veritas/internal/ir"
)

func testResult(v float64) ir.ValidatedResult {
	return ir.ValidatedResult{
		Bundle: ir.SolutionBundle{
			Value: v, Unit: "Pa",
			KernelID: "thermo_ideal_gas", KernelVersion: "1.0.0",
		},
		Provenance: ir.Provenance{
			KernelID: "thermo_ideal_gas", KernelVersion: "1.0.0",
			SpecID: "spec-1", RunID: "run-1",
			Determinism: ir.DeterminismNumeric,
		},
	}
}

func testMeta() Meta {
	return Meta{
		KernelEpoch:     "thermo_ideal_gas@1.0.0",
		OntologyVersion: "2.3.0",
		Determinism:     ir.DeterminismNumeric,
	}
}

func TestKeyComponentsHash(t *testing.T) {
	base := KeyComponents{
		SpecID:           "s1",
		KernelID:         "k1",
		KernelVersion:    "1.0.0",
		PipelineConfigID: "p1",
		Determinism:      ir.DeterminismNumeric,
	}

	a, err := base.Hash()
	require.NoError(t, err)
	b, err := base.Hash()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := base
	other.KernelVersion = "1.2.0"
	c, err := other.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestKeyComponentsMissingIdentity(t *testing.T) {
	_, err := KeyComponents{KernelID: "k", KernelVersion: "1.0.0"}.Hash()
	assert.Error(t, err)
}

func TestNumericKeyIgnoresFormatter(t *testing.T) {
	base := KeyComponents{
		SpecID: "s1", KernelID: "k1", KernelVersion: "1.0.0",
		PipelineConfigID: "p1", Determinism: ir.DeterminismNumeric,
	}
	withFormatter := base
	withFormatter.FormatterID = "f1"
	withFormatter.DecodeConfig = "greedy"

	a, err := base.Hash()
	require.NoError(t, err)
	b, err := withFormatter.Hash()
	require.NoError(t, err)
	assert.Equal(t, a, b, "numeric determinism shares results across formatters")
}

func TestFullOutputKeyIncludesFormatter(t *testing.T) {
	base := KeyComponents{
		SpecID: "s1", KernelID: "k1", KernelVersion: "1.0.0",
		PipelineConfigID: "p1", Determinism: ir.DeterminismFullOutput,
		FormatterID: "f1", DecodeConfig: "greedy",
	}
	other := base
	other.DecodeConfig = "beam4"

	a, err := base.Hash()
	require.NoError(t, err)
	b, err := other.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	calls := 0
	compute := func(context.Context) (ir.ValidatedResult, error) {
		calls++
		return testResult(101325), nil
	}

	r, cached, err := c.GetOrCompute(context.Background(), "key-1", testMeta(), compute)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 101325.0, r.Bundle.Value)

	r, cached, err = c.GetOrCompute(context.Background(), "key-1", testMeta(), compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "run-1", r.Provenance.RunID, "cache hits reuse stored provenance")
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Executions)
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	boom := errors.New("kernel crashed")
	_, _, err = c.GetOrCompute(context.Background(), "key-1", testMeta(), func(context.Context) (ir.ValidatedResult, error) {
		return ir.ValidatedResult{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	// The next call recomputes.
	_, cached, err := c.GetOrCompute(context.Background(), "key-1", testMeta(), func(context.Context) (ir.ValidatedResult, error) {
		return testResult(1), nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	var executions atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (ir.ValidatedResult, error) {
		executions.Add(1)
		<-release
		return testResult(101325), nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]float64, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _, err := c.GetOrCompute(context.Background(), "key-1", testMeta(), compute)
			assert.NoError(t, err)
			results[i] = r.Bundle.Value
		}(i)
	}

	// Let the callers pile onto the flight, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), executions.Load(), "concurrent misses collapse to one execution")
	for _, v := range results {
		assert.Equal(t, 101325.0, v)
	}
}

func TestComputeRunsToCompletionDespiteCancellation(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, cached, err := c.GetOrCompute(ctx, "key-1", testMeta(), func(inner context.Context) (ir.ValidatedResult, error) {
		require.NoError(t, inner.Err(), "compute context must be detached from caller cancellation")
		return testResult(101325), nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 101325.0, r.Bundle.Value)
}

func TestInvalidateKernelEpoch(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	old := testMeta()
	newer := Meta{KernelEpoch: "thermo_ideal_gas@1.2.0", OntologyVersion: "2.3.0", Determinism: ir.DeterminismNumeric}
	seed := func(key string, meta Meta) {
		_, _, err := c.GetOrCompute(context.Background(), key, meta, func(context.Context) (ir.ValidatedResult, error) {
			return testResult(1), nil
		})
		require.NoError(t, err)
	}
	seed("a", old)
	seed("b", old)
	seed("c", newer)

	n := c.InvalidateKernelEpoch("thermo_ideal_gas@1.0.0")
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, uint64(2), c.Stats().Invalidate)
}

func TestInvalidateOntology(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	oldOnt := Meta{KernelEpoch: "k@1.0.0", OntologyVersion: "2.3.0", Determinism: ir.DeterminismNumeric}
	newOnt := Meta{KernelEpoch: "k@1.0.0", OntologyVersion: "2.4.0", Determinism: ir.DeterminismNumeric}
	seed := func(key string, meta Meta) {
		_, _, err := c.GetOrCompute(context.Background(), key, meta, func(context.Context) (ir.ValidatedResult, error) {
			return testResult(1), nil
		})
		require.NoError(t, err)
	}
	seed("a", oldOnt)
	seed("b", newOnt)

	assert.Equal(t, 1, c.InvalidateOntology("2.3.0"))
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestBoundedEviction(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	for _, key := range []string{"a", "b", "c"} {
		_, _, err := c.GetOrCompute(context.Background(), key, testMeta(), func(context.Context) (ir.ValidatedResult, error) {
			return testResult(1), nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "least recently used entry evicted")
}
