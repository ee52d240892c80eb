package harness

import (
	"github.com/roach88/veritas/internal/ir"
)

// Scenario is one end-to-end pipeline case.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Spec is the raw problem spec, expressed in YAML and converted to JSON
	// before it enters the pipeline.
	Spec map[string]any `yaml:"spec"`

	// Expect is the decision the pipeline must reach.
	Expect Expectation `yaml:"expect"`

	// GoldenValue, when set, registers a certified reference answer (SI
	// units) for the spec before evaluation.
	GoldenValue *float64 `yaml:"golden_value,omitempty"`

	// Repeat is the number of evaluations; zero means one. Repeats assert
	// byte-identical outcomes and cache reuse.
	Repeat int `yaml:"repeat,omitempty"`
}

// Expectation pins the decision a scenario must produce.
type Expectation struct {
	Decision       ir.Decision     `yaml:"decision"`
	Reasons        []ir.ReasonCode `yaml:"reasons,omitempty"`
	RequiredFields []string        `yaml:"required_fields,omitempty"`

	// Kernel, when set, is the "kernel_id@version" the result must carry.
	Kernel string `yaml:"kernel,omitempty"`
}

// Report is the collected outcome of one scenario run.
type Report struct {
	Scenario *Scenario

	// Outcomes holds one snapshot per repetition, in order.
	Outcomes []OutcomeSnapshot
}

// OutcomeSnapshot is the deterministic projection of a pipeline outcome used
// for assertions and golden files. Run ids and timestamps are deliberately
// absent: they vary per execution and carry no scenario semantics.
type OutcomeSnapshot struct {
	Decision       ir.Decision     `json:"decision"`
	GateID         string          `json:"gate_id"`
	Reasons        []ir.ReasonCode `json:"reasons,omitempty"`
	RequiredFields []string        `json:"required_fields,omitempty"`

	SpecID        string  `json:"spec_id,omitempty"`
	Value         float64 `json:"value,omitempty"`
	Unit          string  `json:"unit,omitempty"`
	KernelID      string  `json:"kernel_id,omitempty"`
	KernelVersion string  `json:"kernel_version,omitempty"`

	CacheHit     bool `json:"cache_hit"`
	UsedFallback bool `json:"used_fallback"`
}

// toCanonicalMap converts a snapshot for canonical JSON serialization.
func (s OutcomeSnapshot) toCanonicalMap() map[string]any {
	m := map[string]any{
		"decision":  string(s.Decision),
		"gate_id":   s.GateID,
		"cache_hit": s.CacheHit,
	}
	if len(s.Reasons) > 0 {
		reasons := make([]any, len(s.Reasons))
		for i, r := range s.Reasons {
			reasons[i] = string(r)
		}
		m["reasons"] = reasons
	}
	if len(s.RequiredFields) > 0 {
		fields := make([]any, len(s.RequiredFields))
		for i, f := range s.RequiredFields {
			fields[i] = f
		}
		m["required_fields"] = fields
	}
	if s.SpecID != "" {
		m["spec_id"] = s.SpecID
	}
	if s.KernelID != "" {
		m["kernel_id"] = s.KernelID
		m["kernel_version"] = s.KernelVersion
		m["value"] = s.Value
		m["unit"] = s.Unit
	}
	if s.UsedFallback {
		m["used_fallback"] = true
	}
	return m
}
