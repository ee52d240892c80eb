package compute

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/veritas/internal/ir"
)

// CODATA 2018 molar gas constant, J/(mol K). Exact since the 2019 SI
// redefinition.
const gasConstant = 8.314462618

// Truncated constant kept for the deprecated 0.9.0 entry; the precision loss
// is why it was deprecated.
const gasConstantLegacy = 8.314

// Standard gravity, m/s^2.
const standardGravity = 9.80665

func idealGasAt(spec *ir.CanonicalSpec, r float64) (float64, error) {
	t, err := input(spec, "thermo.temperature")
	if err != nil {
		return 0, err
	}
	v, err := input(spec, "thermo.volume")
	if err != nil {
		return 0, err
	}
	n, err := input(spec, "thermo.amount")
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("compute: non-positive volume %v", v)
	}
	return n * r * t / v, nil
}

// idealGas computes P = nRT/V in Pa.
func idealGas(_ context.Context, spec *ir.CanonicalSpec) (ir.SolutionBundle, error) {
	p, err := idealGasAt(spec, gasConstant)
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	return ir.SolutionBundle{Value: p, Unit: "Pa"}, nil
}

func idealGasLegacy(_ context.Context, spec *ir.CanonicalSpec) (ir.SolutionBundle, error) {
	p, err := idealGasAt(spec, gasConstantLegacy)
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	return ir.SolutionBundle{
		Value:         p,
		Unit:          "Pa",
		ValidityFlags: []string{"reduced_precision"},
	}, nil
}

// idealGasEnsemble is the 1.2.0 entry: same state equation, plus an
// uncertainty descriptor derived from the input uncertainties by first-order
// propagation. Zero inputs uncertainties yield a zero descriptor.
func idealGasEnsemble(_ context.Context, spec *ir.CanonicalSpec) (ir.SolutionBundle, error) {
	p, err := idealGasAt(spec, gasConstant)
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	// Sum of squared relative uncertainties; P is a product of the inputs.
	var rel2 float64
	for _, q := range spec.Quantities {
		if q.Uncertainty == nil || q.Value == 0 {
			continue
		}
		switch q.ID {
		case "thermo.temperature", "thermo.volume", "thermo.amount":
			r := *q.Uncertainty / q.Value
			rel2 += r * r
		}
	}
	return ir.SolutionBundle{
		Value:       p,
		Unit:        "Pa",
		Uncertainty: &ir.UncertaintyDescriptor{StdDev: math.Abs(p) * math.Sqrt(rel2)},
	}, nil
}

// lookupTableZ is the compressibility grid for the tabulated fallback:
// coarse, monotone in temperature, unity in the ideal region.
var lookupTableZ = []struct {
	tempK float64
	z     float64
}{
	{250, 0.9992},
	{400, 0.9998},
	{700, 1.0000},
	{1000, 1.0003},
	{1500, 1.0006},
}

// lookupTable is the classical tabulated alternative: ideal-gas state
// equation scaled by a linearly interpolated compressibility factor. Coarser
// than the primary kernel, which it declares via flag and descriptor.
func lookupTable(_ context.Context, spec *ir.CanonicalSpec) (ir.SolutionBundle, error) {
	t, err := input(spec, "thermo.temperature")
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	p, err := idealGasAt(spec, gasConstant)
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	z, extrapolated := interpolateZ(t)
	p *= z
	return ir.SolutionBundle{
		Value: p,
		Unit:  "Pa",
		Uncertainty: &ir.UncertaintyDescriptor{
			StdDev:       math.Abs(p) * 0.01,
			Extrapolated: extrapolated,
		},
		ValidityFlags: []string{"tabulated"},
	}, nil
}

// interpolateZ returns the compressibility factor at t. Outside the grid it
// clamps to the nearest endpoint and reports the clamp as extrapolation.
func interpolateZ(t float64) (float64, bool) {
	grid := lookupTableZ
	if t < grid[0].tempK {
		return grid[0].z, true
	}
	for i := 1; i < len(grid); i++ {
		if t <= grid[i].tempK {
			lo, hi := grid[i-1], grid[i]
			f := (t - lo.tempK) / (hi.tempK - lo.tempK)
			return lo.z + f*(hi.z-lo.z), false
		}
	}
	return grid[len(grid)-1].z, true
}

// hydrostatic computes P = rho g h in Pa.
func hydrostatic(_ context.Context, spec *ir.CanonicalSpec) (ir.SolutionBundle, error) {
	rho, err := input(spec, "fluids.density")
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	h, err := input(spec, "mech.length")
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	return ir.SolutionBundle{Value: rho * standardGravity * h, Unit: "Pa"}, nil
}

// kinematics computes distance under uniform velocity, d = v t, in m.
func kinematics(_ context.Context, spec *ir.CanonicalSpec) (ir.SolutionBundle, error) {
	v, err := input(spec, "mech.velocity")
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	t, err := input(spec, "mech.time")
	if err != nil {
		return ir.SolutionBundle{}, err
	}
	if t < 0 {
		return ir.SolutionBundle{}, fmt.Errorf("compute: negative time %v", t)
	}
	return ir.SolutionBundle{Value: v * t, Unit: "m"}, nil
}
