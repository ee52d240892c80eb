package catalog

import (
	"errors"
	"sort"

	"golang.org/x/mod/semver"

	"github.com/roach88/veritas/internal/ir"
)

// ErrNoCompatibleKernel is returned when filtering leaves no candidate.
// Policy maps it to FALLBACK when a registered alternative exists, else
// ABSTAIN; the selector itself only reports the empty set.
var ErrNoCompatibleKernel = errors.New("no compatible kernel")

// Criteria pins everything selection depends on. All fields come from the
// request's pinned configuration, never from ambient state.
type Criteria struct {
	// SchemaVersion and OntologyVersion are the active versions the
	// candidate's compatibility ranges must include.
	SchemaVersion   string
	OntologyVersion string

	// InterfaceHash is the expected contract hash for this problem type.
	// Empty disables the check (used by diagnostic tooling only).
	InterfaceHash string

	// GoldenThreshold is the domain's required golden-test standing.
	// GoldenPass admits only passing entries; GoldenUntested additionally
	// admits untested ones. Failing entries are never admitted.
	GoldenThreshold ir.GoldenStatus
}

// goldenRank orders golden standings for threshold comparison.
func goldenRank(s ir.GoldenStatus) int {
	switch s {
	case ir.GoldenPass:
		return 2
	case ir.GoldenUntested:
		return 1
	default:
		return 0
	}
}

// Select returns the single kernel entry that solves the canonical spec, or
// ErrNoCompatibleKernel.
//
// Filter: domain/problem-type match, envelope covers every declared quantity
// the envelope names, schema and ontology compatibility ranges include the
// active versions, interface hash matches the expected contract, golden
// standing at or above the threshold.
//
// Tie-break, total order: prefer the oldest version among stable candidates
// (proven reliability over freshness); among equal versions, the
// lexicographically smallest kernel id. Deprecated or non-passing entries
// are considered only when no stable candidate survives the filter.
func Select(snap *Snapshot, spec *ir.CanonicalSpec, crit Criteria) (ir.KernelCatalogEntry, error) {
	candidates := filter(snap, spec, crit)
	if len(candidates) == 0 {
		return ir.KernelCatalogEntry{}, ErrNoCompatibleKernel
	}

	stable := candidates[:0:0]
	for _, e := range candidates {
		if e.Stable() {
			stable = append(stable, e)
		}
	}
	pool := candidates
	if len(stable) > 0 {
		pool = stable
	}

	sort.Slice(pool, func(i, j int) bool {
		if c := semver.Compare(canonVer(pool[i].Version), canonVer(pool[j].Version)); c != 0 {
			return c < 0 // oldest first
		}
		return pool[i].KernelID < pool[j].KernelID
	})
	return pool[0], nil
}

// SelectKernel is Select restricted to a single kernel id: the fallback
// path, where policy has already named the alternative and only version
// choice and compatibility filtering remain.
func SelectKernel(snap *Snapshot, spec *ir.CanonicalSpec, kernelID string, crit Criteria) (ir.KernelCatalogEntry, error) {
	candidates := filter(snap, spec, crit)
	named := candidates[:0:0]
	for _, e := range candidates {
		if e.KernelID == kernelID {
			named = append(named, e)
		}
	}
	if len(named) == 0 {
		return ir.KernelCatalogEntry{}, ErrNoCompatibleKernel
	}
	sort.Slice(named, func(i, j int) bool {
		return semver.Compare(canonVer(named[i].Version), canonVer(named[j].Version)) < 0
	})
	for _, e := range named {
		if e.Stable() {
			return e, nil
		}
	}
	return named[0], nil
}

func filter(snap *Snapshot, spec *ir.CanonicalSpec, crit Criteria) []ir.KernelCatalogEntry {
	var out []ir.KernelCatalogEntry
	for _, e := range snap.Query(spec.Domain, spec.ProblemType) {
		if !envelopeCovers(e, spec) {
			continue
		}
		if !versionInRange(crit.SchemaVersion, e.SchemaCompat) {
			continue
		}
		if !versionInRange(crit.OntologyVersion, e.OntologyCompat) {
			continue
		}
		if crit.InterfaceHash != "" && e.InterfaceHash != crit.InterfaceHash {
			continue
		}
		if goldenRank(e.Golden) < goldenRank(crit.GoldenThreshold) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// envelopeCovers reports whether every declared quantity named by the
// entry's envelope falls inside its certified range. Quantities the
// envelope does not name are unconstrained by this entry.
func envelopeCovers(e ir.KernelCatalogEntry, spec *ir.CanonicalSpec) bool {
	for _, q := range spec.Quantities {
		r, ok := e.Envelope[q.ID]
		if !ok {
			continue
		}
		if !r.Contains(q.Value) {
			return false
		}
	}
	return true
}
