package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertReport checks a report against its scenario's expectation: every
// repetition reaches the expected decision, repetitions agree on spec id and
// numbers, and every repetition after the first is a cache hit when the run
// produced a result.
func AssertReport(t *testing.T, report *Report) {
	t.Helper()

	sc := report.Scenario
	require.NotEmpty(t, report.Outcomes, "scenario %s produced no outcomes", sc.Name)

	first := report.Outcomes[0]
	assert.Equal(t, sc.Expect.Decision, first.Decision, "scenario %s decision", sc.Name)
	for _, reason := range sc.Expect.Reasons {
		assert.Contains(t, first.Reasons, reason, "scenario %s reasons", sc.Name)
	}
	for _, field := range sc.Expect.RequiredFields {
		assert.Contains(t, first.RequiredFields, field, "scenario %s required fields", sc.Name)
	}
	if sc.Expect.Kernel != "" {
		assert.Equal(t, sc.Expect.Kernel, first.KernelID+"@"+first.KernelVersion,
			"scenario %s kernel", sc.Name)
	}

	for i, o := range report.Outcomes[1:] {
		assert.Equal(t, first.Decision, o.Decision, "scenario %s repeat %d decision", sc.Name, i+1)
		assert.Equal(t, first.SpecID, o.SpecID, "scenario %s repeat %d spec id", sc.Name, i+1)
		assert.Equal(t, first.Value, o.Value, "scenario %s repeat %d value", sc.Name, i+1)
		assert.Equal(t, first.Unit, o.Unit, "scenario %s repeat %d unit", sc.Name, i+1)
		if o.KernelID != "" {
			assert.True(t, o.CacheHit, "scenario %s repeat %d expected cache hit", sc.Name, i+1)
		}
	}
}
