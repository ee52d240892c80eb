package catalog

import (
	"fmt"
	"sort"

	"golang.org/x/mod/semver"

	"github.com/roach88/veritas/internal/ir"
)

// InterfaceContract is a kernel's published I/O contract: the quantity ids
// it consumes and produces, plus the pinned contract hash the selector
// matches against.
type InterfaceContract struct {
	Inputs []string `yaml:"inputs"`
	Output string   `yaml:"output"`
	Hash   string   `yaml:"hash"`
}

// Snapshot is an immutable view of the kernel catalog. Safe for unbounded
// concurrent use; all lookups are pure reads.
type Snapshot struct {
	version    string
	entries    map[string]ir.KernelCatalogEntry // keyed kernel_id@version
	interfaces map[string]InterfaceContract     // same key
	byProblem  map[string][]string              // domain/problem_type -> sorted keys
}

// Version returns the catalog snapshot version.
func (s *Snapshot) Version() string {
	return s.version
}

// Get returns the entry for (kernel id, version).
func (s *Snapshot) Get(kernelID, version string) (ir.KernelCatalogEntry, bool) {
	e, ok := s.entries[kernelID+"@"+version]
	return e, ok
}

// Interface returns the published I/O contract for (kernel id, version).
func (s *Snapshot) Interface(kernelID, version string) (InterfaceContract, error) {
	c, ok := s.interfaces[kernelID+"@"+version]
	if !ok {
		return InterfaceContract{}, fmt.Errorf("catalog: no interface for %s@%s", kernelID, version)
	}
	return c, nil
}

// Query returns all entries for (domain, problem type), sorted by catalog
// key. The slice is freshly allocated; callers may not mutate entries, and
// the entry values themselves are copies.
func (s *Snapshot) Query(domainID, problemTypeID string) []ir.KernelCatalogEntry {
	keys := s.byProblem[problemKey(domainID, problemTypeID)]
	out := make([]ir.KernelCatalogEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.entries[k])
	}
	return out
}

// ExpectedInterface returns the contract hash required for a problem type:
// the hash published by the lexicographically first entry registered for it.
// Catalog loading rejects snapshots where entries for one problem type
// disagree on the hash, so any entry is representative.
func (s *Snapshot) ExpectedInterface(domainID, problemTypeID string) (string, bool) {
	keys := s.byProblem[problemKey(domainID, problemTypeID)]
	if len(keys) == 0 {
		return "", false
	}
	return s.entries[keys[0]].InterfaceHash, true
}

// Successor resolves the replacement entry for a deprecated one.
// Returns false when the entry is not deprecated or names no successor.
func (s *Snapshot) Successor(e ir.KernelCatalogEntry) (ir.KernelCatalogEntry, bool) {
	if !e.Deprecated || e.Successor == "" {
		return ir.KernelCatalogEntry{}, false
	}
	succ, ok := s.entries[e.Successor]
	return succ, ok
}

// Keys returns all catalog keys, sorted. For CLI listing and tests.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func problemKey(domainID, problemTypeID string) string {
	return domainID + "/" + problemTypeID
}

// canonVer adds the "v" prefix golang.org/x/mod/semver requires.
func canonVer(v string) string {
	return "v" + v
}

// versionInRange reports whether an active version lies inside a closed
// semver compatibility range.
func versionInRange(active string, r ir.VersionRange) bool {
	av := canonVer(active)
	if !semver.IsValid(av) {
		return false
	}
	if r.Min != "" && semver.Compare(av, canonVer(r.Min)) < 0 {
		return false
	}
	if r.Max != "" && semver.Compare(av, canonVer(r.Max)) > 0 {
		return false
	}
	return true
}
