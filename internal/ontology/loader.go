package ontology

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/veritas/internal/ir"
)

//go:embed ontology.yaml
var defaultOntologyYAML []byte

// descriptor is the on-disk YAML shape of an ontology snapshot.
type descriptor struct {
	Version     string         `yaml:"version"`
	Quantities  []quantityYAML `yaml:"quantities"`
	Domains     []DomainDef    `yaml:"domains"`
	Assumptions []string       `yaml:"assumptions"`
}

type quantityYAML struct {
	ID              string         `yaml:"id"`
	Aliases         []string       `yaml:"aliases"`
	Dim             map[string]int `yaml:"dim"`
	CanonicalUnit   string         `yaml:"canonical_unit"`
	Absolute        bool           `yaml:"absolute"`
	AdmissibleRange *ir.Range      `yaml:"admissible_range"`
	SignConvention  string         `yaml:"sign_convention"`
}

var dimKeys = map[string]int{
	"mass":        ir.DimMass,
	"length":      ir.DimLength,
	"time":        ir.DimTime,
	"temperature": ir.DimTemperature,
	"amount":      ir.DimAmount,
	"current":     ir.DimCurrent,
	"luminosity":  ir.DimLuminosity,
}

// Load builds an immutable Snapshot from YAML descriptor bytes.
//
// Load is the explicit, statically validated registration point: duplicate
// quantity or domain ids, unknown dimension keys, unparseable canonical
// units, and canonical units whose dimension contradicts the declared
// signature are all rejected here, at startup, never discovered at request
// time.
func Load(data []byte) (*Snapshot, error) {
	var desc descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("ontology: parse descriptor: %w", err)
	}
	if desc.Version == "" {
		return nil, fmt.Errorf("ontology: descriptor missing version")
	}

	units := defaultUnitTable()
	snap := &Snapshot{
		version:     desc.Version,
		quantities:  make(map[string]QuantityDef, len(desc.Quantities)),
		aliases:     make(map[string][]string),
		domains:     make(map[string]DomainDef, len(desc.Domains)),
		assumptions: make(map[string]bool, len(desc.Assumptions)),
		units:       units,
	}

	for _, a := range desc.Assumptions {
		if a == "" {
			return nil, fmt.Errorf("ontology: assumption with empty id")
		}
		if snap.assumptions[a] {
			return nil, fmt.Errorf("ontology: duplicate assumption id %q", a)
		}
		snap.assumptions[a] = true
	}

	for _, qy := range desc.Quantities {
		if qy.ID == "" {
			return nil, fmt.Errorf("ontology: quantity with empty id")
		}
		if _, dup := snap.quantities[qy.ID]; dup {
			return nil, fmt.Errorf("ontology: duplicate quantity id %q", qy.ID)
		}

		var d ir.Dim
		for key, exp := range qy.Dim {
			idx, ok := dimKeys[key]
			if !ok {
				return nil, fmt.Errorf("ontology: quantity %q: unknown dimension key %q", qy.ID, key)
			}
			d[idx] = exp
		}

		unitVal, err := units.Parse(qy.CanonicalUnit)
		if err != nil {
			return nil, fmt.Errorf("ontology: quantity %q: canonical unit: %w", qy.ID, err)
		}
		if unitVal.Dim != d {
			return nil, fmt.Errorf("ontology: quantity %q: canonical unit %q has dimension %s, declared %s",
				qy.ID, qy.CanonicalUnit, unitVal.Dim, d)
		}
		if qy.SignConvention != "" && qy.SignConvention != "flip_negative" {
			return nil, fmt.Errorf("ontology: quantity %q: unknown sign convention %q", qy.ID, qy.SignConvention)
		}

		def := QuantityDef{
			ID:              qy.ID,
			Aliases:         qy.Aliases,
			Dim:             d,
			CanonicalUnit:   qy.CanonicalUnit,
			Absolute:        qy.Absolute,
			AdmissibleRange: qy.AdmissibleRange,
			SignConvention:  qy.SignConvention,
		}
		snap.quantities[qy.ID] = def

		// Alias collisions across quantities are legal data: they are what
		// the ambiguity gate detects as TERM_COLLISION. The id itself also
		// resolves as an alias.
		for _, alias := range append([]string{qy.ID}, qy.Aliases...) {
			key := normalizeTerm(alias)
			snap.aliases[key] = append(snap.aliases[key], qy.ID)
		}
	}

	for _, d := range desc.Domains {
		if d.ID == "" {
			return nil, fmt.Errorf("ontology: domain with empty id")
		}
		if _, dup := snap.domains[d.ID]; dup {
			return nil, fmt.Errorf("ontology: duplicate domain id %q", d.ID)
		}
		for _, op := range d.AllowedOperators {
			if !ir.KnownOperators[op] {
				return nil, fmt.Errorf("ontology: domain %q: unknown operator %q in allowlist", d.ID, op)
			}
		}
		snap.domains[d.ID] = d
	}

	return snap, nil
}

// Default loads the embedded ontology descriptor.
func Default() (*Snapshot, error) {
	return Load(defaultOntologyYAML)
}

// MustDefault is like Default but panics on error.
// The embedded descriptor is covered by tests; a failure here is a build
// defect, not a runtime condition.
func MustDefault() *Snapshot {
	snap, err := Default()
	if err != nil {
		panic(err)
	}
	return snap
}
