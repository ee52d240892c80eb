package gate

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Policy is the explicit, versioned domain policy passed into every gate
// call. It is a value, not ambient state: concurrent requests evaluated
// under different policy versions cannot interfere.
type Policy struct {
	Version string `yaml:"version"`

	// AmbiguousUnits maps a unit string to the clarification field required
	// to disambiguate it ("psi" -> "pressure_reference_clarification").
	AmbiguousUnits map[string]string `yaml:"ambiguous_units"`

	// DisallowedTerms lists terms that may not appear without an explicit
	// disambiguator.
	DisallowedTerms []string `yaml:"disallowed_terms"`

	// SafetyCriticalDomains always escalate, even when every stage passes.
	SafetyCriticalDomains []string `yaml:"safety_critical_domains"`

	// ManualAssumptionDomains escalate when any assumption carries model
	// provenance: a stochastic producer's modeling choice needs a human
	// signature in these domains.
	ManualAssumptionDomains []string `yaml:"manual_assumption_domains"`

	// GoldenThreshold is the per-domain required golden-test standing for
	// kernel selection: "pass" or "untested". Missing domains default to
	// "pass".
	GoldenThreshold map[string]string `yaml:"golden_threshold"`

	// Fallbacks maps "domain/problem_type" to the kernel id of the
	// registered classical alternative used on infrastructure failure.
	Fallbacks map[string]string `yaml:"fallbacks"`

	// Solution validation thresholds.
	MaxRelativeUncertainty float64 `yaml:"max_relative_uncertainty"`
	MaxEnsembleSpread      float64 `yaml:"max_ensemble_spread"`
	GoldenTolerance        float64 `yaml:"golden_tolerance"`

	// AllowExtrapolated admits bundles whose kernel evaluated outside its
	// fitted region. Off by default: an extrapolated number abstains.
	AllowExtrapolated bool `yaml:"allow_extrapolated"`
}

// LoadPolicy parses a versioned policy from YAML bytes.
func LoadPolicy(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("policy: parse: %w", err)
	}
	if p.Version == "" {
		return Policy{}, fmt.Errorf("policy: missing version")
	}
	return p, nil
}

// DefaultPolicy loads the embedded policy.
func DefaultPolicy() (Policy, error) {
	return LoadPolicy(defaultPolicyYAML)
}

// IsSafetyCritical reports whether a domain is flagged safety-critical.
func (p Policy) IsSafetyCritical(domainID string) bool {
	for _, d := range p.SafetyCriticalDomains {
		if d == domainID {
			return true
		}
	}
	return false
}

// RequiresManualAssumptionApproval reports whether model-provenance
// assumptions in this domain need human sign-off.
func (p Policy) RequiresManualAssumptionApproval(domainID string) bool {
	for _, d := range p.ManualAssumptionDomains {
		if d == domainID {
			return true
		}
	}
	return false
}

// FallbackKernel returns the registered classical alternative for a
// (domain, problem type), if any.
func (p Policy) FallbackKernel(domainID, problemTypeID string) (string, bool) {
	id, ok := p.Fallbacks[domainID+"/"+problemTypeID]
	return id, ok
}
