// Package compute hosts the certified kernel implementations.
//
// A kernel is a pure numeric routine: same canonical spec in, same bundle
// out, bit for bit. Kernels never see raw producer input and never make gate
// decisions; anything questionable about their output is the solution
// validator's job.
package compute

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/veritas/internal/ir"
)

// Executor runs one kernel version over a canonical spec.
type Executor interface {
	Execute(ctx context.Context, spec *ir.CanonicalSpec) (ir.SolutionBundle, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, spec *ir.CanonicalSpec) (ir.SolutionBundle, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, spec *ir.CanonicalSpec) (ir.SolutionBundle, error) {
	return f(ctx, spec)
}

// Registry maps catalog keys ("kernel_id@version") to executors.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry returns a registry with every built-in kernel registered.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register("thermo_ideal_gas@0.9.0", ExecutorFunc(idealGasLegacy))
	r.Register("thermo_ideal_gas@1.0.0", ExecutorFunc(idealGas))
	r.Register("thermo_ideal_gas@1.2.0", ExecutorFunc(idealGasEnsemble))
	r.Register("thermo_lookup_table@1.0.0", ExecutorFunc(lookupTable))
	r.Register("fluids_hydrostatic@1.0.0", ExecutorFunc(hydrostatic))
	r.Register("mech_kinematics@1.0.0", ExecutorFunc(kinematics))
	return r
}

// Register binds an executor to a catalog key, replacing any previous
// binding.
func (r *Registry) Register(key string, exec Executor) {
	r.executors[key] = exec
}

// Lookup resolves the executor for a catalog entry.
func (r *Registry) Lookup(entry ir.KernelCatalogEntry) (Executor, bool) {
	exec, ok := r.executors[entry.Key()]
	return exec, ok
}

// Keys returns the registered catalog keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.executors))
	for k := range r.executors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run looks up and executes the entry's kernel, stamping kernel identity on
// the bundle.
func (r *Registry) Run(ctx context.Context, entry ir.KernelCatalogEntry, spec *ir.CanonicalSpec) (ir.SolutionBundle, error) {
	exec, ok := r.Lookup(entry)
	if !ok {
		return ir.SolutionBundle{}, fmt.Errorf("compute: no executor registered for %s", entry.Key())
	}
	bundle, err := exec.Execute(ctx, spec)
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	bundle.KernelID = entry.KernelID
	bundle.KernelVersion = entry.Version
	return bundle, nil
}

// input returns a required input quantity's SI value.
func input(spec *ir.CanonicalSpec, id string) (float64, error) {
	for _, q := range spec.Quantities {
		if q.ID == id {
			return q.Value, nil
		}
	}
	return 0, fmt.Errorf("compute: missing input quantity %q", id)
}
