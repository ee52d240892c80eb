package ir

import (
	"fmt"
	"strings"
)

// Dim is a 7-component physical-dimension signature. The components are the
// exponents of the SI base dimensions, in fixed order:
//
//	mass, length, time, temperature, amount, current, luminosity
//
// Dim values are always derived by the validator from (quantity id, declared
// unit, ontology definition). They are NEVER accepted from an upstream
// structure: ProblemSpec has no field of this type.
type Dim [7]int

// Component indices into a Dim.
const (
	DimMass = iota
	DimLength
	DimTime
	DimTemperature
	DimAmount
	DimCurrent
	DimLuminosity
)

var dimSymbols = [7]string{"M", "L", "T", "Th", "N", "I", "J"}

// Dimensionless is the zero dimension vector.
var Dimensionless = Dim{}

// Mul returns the dimension of a product: exponents add.
func (d Dim) Mul(other Dim) Dim {
	var out Dim
	for i := range d {
		out[i] = d[i] + other[i]
	}
	return out
}

// Div returns the dimension of a quotient: exponents subtract.
func (d Dim) Div(other Dim) Dim {
	var out Dim
	for i := range d {
		out[i] = d[i] - other[i]
	}
	return out
}

// Pow returns the dimension raised to an integer power.
func (d Dim) Pow(n int) Dim {
	var out Dim
	for i := range d {
		out[i] = d[i] * n
	}
	return out
}

// IsZero reports whether the dimension is dimensionless.
func (d Dim) IsZero() bool {
	return d == Dim{}
}

// String renders the signature in compact form, e.g. "M1 L-1 T-2".
// Dimensionless renders as "1".
func (d Dim) String() string {
	var parts []string
	for i, exp := range d {
		if exp != 0 {
			parts = append(parts, fmt.Sprintf("%s%d", dimSymbols[i], exp))
		}
	}
	if len(parts) == 0 {
		return "1"
	}
	return strings.Join(parts, " ")
}

// ToIR converts the dimension vector to an IRArray for canonical hashing.
func (d Dim) ToIR() IRArray {
	arr := make(IRArray, len(d))
	for i, exp := range d {
		arr[i] = IRInt(int64(exp))
	}
	return arr
}
