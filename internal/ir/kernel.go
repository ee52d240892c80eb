package ir

import (
	"fmt"
	"time"
)

// DeterminismLevel declares what a kernel commits to reproducing.
type DeterminismLevel string

const (
	// DeterminismNumeric: same validated spec + kernel -> same numbers.
	DeterminismNumeric DeterminismLevel = "numeric"
	// DeterminismFullOutput: additionally, same downstream prose. Cache keys
	// at this level include the identity and decode configuration of every
	// stochastic formatting step.
	DeterminismFullOutput DeterminismLevel = "full_output"
)

// GoldenStatus is the golden-test standing of a catalog entry.
type GoldenStatus string

const (
	GoldenPass     GoldenStatus = "pass"
	GoldenFail     GoldenStatus = "fail"
	GoldenUntested GoldenStatus = "untested"
)

// Range is a closed numeric interval in SI base units.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies inside the closed interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// VersionRange is a closed semver interval. Versions are plain semver
// strings without the "v" prefix ("1.2.0"); comparison code adds the prefix
// that golang.org/x/mod/semver requires.
type VersionRange struct {
	Min string `json:"min" yaml:"min"`
	Max string `json:"max" yaml:"max"`
}

// KernelCatalogEntry is an immutable, admin-published descriptor of one
// versioned compute routine. Entries are append-only: deprecation annotates,
// it never deletes.
type KernelCatalogEntry struct {
	KernelID    string `json:"kernel_id" yaml:"kernel_id"`
	Version     string `json:"version" yaml:"version"`
	Domain      string `json:"domain" yaml:"domain"`
	ProblemType string `json:"problem_type" yaml:"problem_type"`

	// Envelope bounds per quantity id, in SI base units. A spec is covered
	// only if every declared quantity the envelope names falls inside.
	Envelope map[string]Range `json:"envelope" yaml:"envelope"`

	SchemaCompat   VersionRange `json:"schema_compat" yaml:"schema_compat"`
	OntologyCompat VersionRange `json:"ontology_compat" yaml:"ontology_compat"`

	// InterfaceHash pins the kernel's I/O contract. Selection requires an
	// exact match against the expected contract hash.
	InterfaceHash string `json:"interface_hash" yaml:"interface_hash"`

	Determinism DeterminismLevel `json:"determinism" yaml:"determinism"`
	Golden      GoldenStatus     `json:"golden" yaml:"golden"`

	Deprecated bool `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	// Successor points at the replacing entry ("kernel_id@version") when
	// Deprecated is set. Empty means deprecated without replacement.
	Successor string `json:"successor,omitempty" yaml:"successor,omitempty"`
}

// Key returns the unique catalog key, "kernel_id@version".
func (e KernelCatalogEntry) Key() string {
	return e.KernelID + "@" + e.Version
}

// Stable reports whether the entry is a proven candidate: golden tests pass
// and the entry is not deprecated.
func (e KernelCatalogEntry) Stable() bool {
	return e.Golden == GoldenPass && !e.Deprecated
}

// UncertaintyDescriptor characterizes the trustworthiness of a primary value.
type UncertaintyDescriptor struct {
	// StdDev is the absolute one-sigma uncertainty of the primary value.
	StdDev float64 `json:"std_dev"`
	// EnsembleSpread is the relative disagreement across ensemble members,
	// zero for single-evaluation kernels.
	EnsembleSpread float64 `json:"ensemble_spread,omitempty"`
	// Extrapolated is set when the kernel evaluated outside its fitted
	// region but inside its declared envelope.
	Extrapolated bool `json:"extrapolated,omitempty"`
}

// SolutionBundle is the immutable result of one kernel execution.
type SolutionBundle struct {
	Value       float64                `json:"value"`
	Unit        string                 `json:"unit"`
	Uncertainty *UncertaintyDescriptor `json:"uncertainty,omitempty"`

	// ValidityFlags carries kernel-declared caveats ("boundary_regime",
	// "reduced_precision"). Advisory only; gate decisions come from the
	// solution validator, not from these.
	ValidityFlags []string `json:"validity_flags,omitempty"`

	KernelID      string `json:"kernel_id"`
	KernelVersion string `json:"kernel_version"`
}

// ToIR converts the bundle to IR values for canonical hashing.
func (b SolutionBundle) ToIR() IRObject {
	obj := IRObject{
		"value":          IRFloat(b.Value),
		"unit":           IRString(b.Unit),
		"kernel_id":      IRString(b.KernelID),
		"kernel_version": IRString(b.KernelVersion),
	}
	if b.Uncertainty != nil {
		u := IRObject{
			"std_dev":         IRFloat(b.Uncertainty.StdDev),
			"ensemble_spread": IRFloat(b.Uncertainty.EnsembleSpread),
			"extrapolated":    IRBool(b.Uncertainty.Extrapolated),
		}
		obj["uncertainty"] = u
	}
	if len(b.ValidityFlags) > 0 {
		obj["validity_flags"] = StringList(b.ValidityFlags)
	}
	return obj
}

// Provenance proves how a validated result was produced.
type Provenance struct {
	KernelID      string           `json:"kernel_id"`
	KernelVersion string           `json:"kernel_version"`
	InterfaceHash string           `json:"interface_hash"`
	SpecID        string           `json:"spec_id"`
	RunID         string           `json:"run_id"`
	Determinism   DeterminismLevel `json:"determinism"`
	Timestamp     time.Time        `json:"timestamp"`
}

// ValidatedResult is the final deliverable: a bundle that passed the
// solution validator, stamped with provenance. Delivery to the formatter is
// read-only; no numeric field is ever accepted back modified.
type ValidatedResult struct {
	Bundle     SolutionBundle `json:"bundle"`
	Provenance Provenance     `json:"provenance"`
}

// CacheEntry is a memoized validated result plus the validity epoch it was
// computed under. Entries are invalidated by explicit epoch supersession
// only, never by heuristic staleness.
type CacheEntry struct {
	Key             string           `json:"key"`
	Result          ValidatedResult  `json:"result"`
	KernelEpoch     string           `json:"kernel_epoch"`     // kernel_id@version
	OntologyVersion string           `json:"ontology_version"` // ontology snapshot version
	Determinism     DeterminismLevel `json:"determinism"`
}

// ParseKernelKey splits a "kernel_id@version" key.
func ParseKernelKey(key string) (kernelID, version string, err error) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '@' {
			if i == 0 || i == len(key)-1 {
				break
			}
			return key[:i], key[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("malformed kernel key %q", key)
}
