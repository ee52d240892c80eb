package ontology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/veritas/internal/ir"
)

// QuantityDef defines one quantity in the ontology: its canonical id, the
// natural-language aliases that resolve to it, its dimension signature, the
// canonical SI unit, and the admissible magnitude range in that unit.
type QuantityDef struct {
	ID            string   `yaml:"id"`
	Aliases       []string `yaml:"aliases,omitempty"`
	Dim           ir.Dim   `yaml:"-"`
	CanonicalUnit string   `yaml:"canonical_unit"`

	// Absolute marks quantities that cannot be negative (absolute
	// temperature, mass, density). Drives the non-negativity invariant in
	// the solution validator.
	Absolute bool `yaml:"absolute,omitempty"`

	// AdmissibleRange bounds the magnitude, in canonical units. Nil means
	// unbounded.
	AdmissibleRange *ir.Range `yaml:"admissible_range,omitempty"`

	// SignConvention optionally flips declared negative magnitudes during
	// canonicalization ("into_system_positive" style conventions). The only
	// supported value is "flip_negative".
	SignConvention string `yaml:"sign_convention,omitempty"`
}

// DomainDef defines per-domain validation policy data that belongs to the
// ontology (as opposed to the versioned gate policy): the constraint
// operator allowlist.
type DomainDef struct {
	ID               string        `yaml:"id"`
	AllowedOperators []ir.Operator `yaml:"allowed_operators"`
}

// Snapshot is an immutable, versioned view of the ontology. All lookups are
// pure reads; a Snapshot holds no mutable state and is safe for unbounded
// concurrent use.
type Snapshot struct {
	version     string
	quantities  map[string]QuantityDef
	aliases     map[string][]string // normalized alias -> quantity ids
	domains     map[string]DomainDef
	assumptions map[string]bool
	units       *unitTable
}

// Version returns the ontology snapshot version (semver string).
func (s *Snapshot) Version() string {
	return s.version
}

// Quantity returns the definition for a quantity id.
func (s *Snapshot) Quantity(id string) (QuantityDef, bool) {
	q, ok := s.quantities[id]
	return q, ok
}

// LookupByAlias resolves a term to the quantity ids it may refer to.
// More than one id with differing dimensions is a term collision; that
// judgment belongs to the ambiguity gate, not here.
func (s *Snapshot) LookupByAlias(term string) []QuantityDef {
	ids := s.aliases[normalizeTerm(term)]
	defs := make([]QuantityDef, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, s.quantities[id])
	}
	return defs
}

// Resolve resolves a term to exactly one quantity definition. Synonym
// aliases sharing a dimension resolve to the lexicographically smallest id;
// aliases spanning differing dimensions are ambiguous and resolve to false.
func (s *Snapshot) Resolve(term string) (QuantityDef, bool) {
	defs := s.LookupByAlias(term)
	if len(defs) == 0 {
		return QuantityDef{}, false
	}
	best := defs[0]
	for _, d := range defs[1:] {
		if d.Dim != best.Dim {
			return QuantityDef{}, false
		}
		if d.ID < best.ID {
			best = d
		}
	}
	return best, true
}

// Dimensions returns the 7-component dimension vector for a quantity id.
func (s *Snapshot) Dimensions(quantityID string) (ir.Dim, error) {
	q, ok := s.quantities[quantityID]
	if !ok {
		return ir.Dim{}, fmt.Errorf("unknown quantity id %q", quantityID)
	}
	return q.Dim, nil
}

// AllowedOperators returns the constraint operator allowlist for a domain.
func (s *Snapshot) AllowedOperators(domainID string) (map[ir.Operator]bool, error) {
	d, ok := s.domains[domainID]
	if !ok {
		return nil, fmt.Errorf("unknown domain id %q", domainID)
	}
	allowed := make(map[ir.Operator]bool, len(d.AllowedOperators))
	for _, op := range d.AllowedOperators {
		allowed[op] = true
	}
	return allowed, nil
}

// HasAssumption reports whether an assumption id is in the vocabulary.
func (s *Snapshot) HasAssumption(id string) bool {
	return s.assumptions[id]
}

// HasDomain reports whether a domain id is defined.
func (s *Snapshot) HasDomain(domainID string) bool {
	_, ok := s.domains[domainID]
	return ok
}

// AdmissibleRange returns the admissible magnitude range for a quantity, in
// canonical units. The second return is false when the quantity is unbounded.
func (s *Snapshot) AdmissibleRange(quantityID string) (ir.Range, bool) {
	q, ok := s.quantities[quantityID]
	if !ok || q.AdmissibleRange == nil {
		return ir.Range{}, false
	}
	return *q.AdmissibleRange, true
}

// ParseUnit parses a unit expression against the snapshot's unit table.
// See unitTable.Parse for the accepted grammar.
func (s *Snapshot) ParseUnit(expr string) (UnitVal, error) {
	return s.units.Parse(expr)
}

// QuantityIDs returns all quantity ids, sorted. Used by integrity checks
// and the CLI; hot paths use direct map lookups.
func (s *Snapshot) QuantityIDs() []string {
	ids := make([]string, 0, len(s.quantities))
	for id := range s.quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// normalizeTerm lowercases and collapses interior whitespace so alias
// resolution is insensitive to casing and spacing.
func normalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}
