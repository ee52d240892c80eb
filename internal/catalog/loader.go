package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/ontology"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// descriptor is the on-disk YAML shape of a catalog snapshot.
type descriptor struct {
	Version string      `yaml:"version"`
	Kernels []entryYAML `yaml:"kernels"`
}

type entryYAML struct {
	ir.KernelCatalogEntry `yaml:",inline"`
	Interface             InterfaceContract `yaml:"interface"`
}

// Load builds an immutable Snapshot from YAML descriptor bytes, validating
// referential integrity against the given ontology snapshot.
//
// Rejected at load time: duplicate (kernel id, version) keys, invalid
// semver, envelope bounds naming unknown quantities, interface contracts
// referencing unknown quantities, dangling successor pointers, deprecated
// entries whose successor is itself deprecated, and entries for one problem
// type publishing conflicting interface hashes.
func Load(data []byte, ont *ontology.Snapshot) (*Snapshot, error) {
	var desc descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("catalog: parse descriptor: %w", err)
	}
	if desc.Version == "" {
		return nil, fmt.Errorf("catalog: descriptor missing version")
	}

	snap := &Snapshot{
		version:    desc.Version,
		entries:    make(map[string]ir.KernelCatalogEntry, len(desc.Kernels)),
		interfaces: make(map[string]InterfaceContract, len(desc.Kernels)),
		byProblem:  make(map[string][]string),
	}

	for _, ky := range desc.Kernels {
		e := ky.KernelCatalogEntry
		if e.KernelID == "" {
			return nil, fmt.Errorf("catalog: kernel with empty id")
		}
		if !semver.IsValid(canonVer(e.Version)) {
			return nil, fmt.Errorf("catalog: kernel %q: invalid version %q", e.KernelID, e.Version)
		}
		key := e.Key()
		if _, dup := snap.entries[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate entry %s", key)
		}
		if !ont.HasDomain(e.Domain) {
			return nil, fmt.Errorf("catalog: entry %s: unknown domain %q", key, e.Domain)
		}
		for qid := range e.Envelope {
			if _, ok := ont.Quantity(qid); !ok {
				return nil, fmt.Errorf("catalog: entry %s: envelope names unknown quantity %q", key, qid)
			}
		}
		for _, qid := range ky.Interface.Inputs {
			if _, ok := ont.Quantity(qid); !ok {
				return nil, fmt.Errorf("catalog: entry %s: interface input names unknown quantity %q", key, qid)
			}
		}
		if ky.Interface.Output != "" {
			if _, ok := ont.Quantity(ky.Interface.Output); !ok {
				return nil, fmt.Errorf("catalog: entry %s: interface output names unknown quantity %q", key, ky.Interface.Output)
			}
		}
		if ky.Interface.Hash != e.InterfaceHash {
			return nil, fmt.Errorf("catalog: entry %s: interface hash mismatch between entry and contract", key)
		}

		snap.entries[key] = e
		snap.interfaces[key] = ky.Interface
		pk := problemKey(e.Domain, e.ProblemType)
		snap.byProblem[pk] = append(snap.byProblem[pk], key)
	}

	// Deterministic query order regardless of descriptor order.
	for _, keys := range snap.byProblem {
		sort.Strings(keys)
	}

	// All entries for one problem type must publish the same contract hash;
	// the selector treats the hash as the problem type's expected contract.
	for pk, keys := range snap.byProblem {
		want := snap.entries[keys[0]].InterfaceHash
		for _, key := range keys[1:] {
			if snap.entries[key].InterfaceHash != want {
				return nil, fmt.Errorf("catalog: problem type %s: conflicting interface hashes", pk)
			}
		}
	}

	// Successor pointers resolve after all entries are registered.
	for key, e := range snap.entries {
		if e.Successor == "" {
			continue
		}
		succ, ok := snap.entries[e.Successor]
		if !ok {
			return nil, fmt.Errorf("catalog: entry %s: dangling successor %q", key, e.Successor)
		}
		if succ.Deprecated {
			return nil, fmt.Errorf("catalog: entry %s: successor %q is itself deprecated", key, e.Successor)
		}
	}

	return snap, nil
}

// Default loads the embedded catalog descriptor against an ontology snapshot.
func Default(ont *ontology.Snapshot) (*Snapshot, error) {
	return Load(defaultCatalogYAML, ont)
}
