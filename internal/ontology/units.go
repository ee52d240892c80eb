package ontology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/veritas/internal/ir"
)

// UnitVal is the parsed meaning of a unit expression: the multiplicative
// factor (and additive offset, for the affine temperature scales) taking a
// magnitude to SI base units, plus the dimension signature.
type UnitVal struct {
	Symbol string
	Factor float64
	Offset float64
	Dim    ir.Dim
}

// ToSI converts a magnitude expressed in this unit to SI base units.
func (u UnitVal) ToSI(v float64) float64 {
	return v*u.Factor + u.Offset
}

// unitAtom is a single named unit with its conversion to SI.
type unitAtom struct {
	factor float64
	offset float64 // non-zero only for affine temperature scales
	dim    ir.Dim
}

// unitTable resolves unit expressions. The accepted grammar is a restricted
// UCUM product form:
//
//	expr   := term (("." | "/") term)*
//	term   := atom [exponent]
//	atom   := bare symbol or bracketed UCUM symbol ("[psi]")
//	exponent := optional sign plus digits ("m2", "s-2")
//
// Affine atoms (Cel, [degF]) are only valid as a whole expression; a
// compound containing them has no well-defined factor.
type unitTable struct {
	atoms map[string]unitAtom
}

func dim(m, l, t, th int) ir.Dim {
	return ir.Dim{m, l, t, th, 0, 0, 0}
}

// Conversion factors to SI base units. Bracketed symbols are the UCUM
// spellings; the bare forms are accepted as common aliases.
func defaultUnitTable() *unitTable {
	atoms := map[string]unitAtom{
		// Mass (to kg)
		"kg":      {factor: 1.0, dim: dim(1, 0, 0, 0)},
		"g":       {factor: 1e-3, dim: dim(1, 0, 0, 0)},
		"mg":      {factor: 1e-6, dim: dim(1, 0, 0, 0)},
		"[lb_av]": {factor: 0.45359237, dim: dim(1, 0, 0, 0)},
		"lbm":     {factor: 0.45359237, dim: dim(1, 0, 0, 0)},
		"[oz_av]": {factor: 0.028349523125, dim: dim(1, 0, 0, 0)},

		// Length (to m)
		"m":      {factor: 1.0, dim: dim(0, 1, 0, 0)},
		"cm":     {factor: 1e-2, dim: dim(0, 1, 0, 0)},
		"mm":     {factor: 1e-3, dim: dim(0, 1, 0, 0)},
		"km":     {factor: 1e3, dim: dim(0, 1, 0, 0)},
		"[ft_i]": {factor: 0.3048, dim: dim(0, 1, 0, 0)},
		"ft":     {factor: 0.3048, dim: dim(0, 1, 0, 0)},
		"[in_i]": {factor: 0.0254, dim: dim(0, 1, 0, 0)},
		"in":     {factor: 0.0254, dim: dim(0, 1, 0, 0)},
		"[mi_i]": {factor: 1609.344, dim: dim(0, 1, 0, 0)},

		// Time (to s)
		"s":   {factor: 1.0, dim: dim(0, 0, 1, 0)},
		"min": {factor: 60.0, dim: dim(0, 0, 1, 0)},
		"h":   {factor: 3600.0, dim: dim(0, 0, 1, 0)},
		"d":   {factor: 86400.0, dim: dim(0, 0, 1, 0)},

		// Force (to N = kg.m/s2)
		"N":        {factor: 1.0, dim: dim(1, 1, -2, 0)},
		"kN":       {factor: 1e3, dim: dim(1, 1, -2, 0)},
		"[lbf_av]": {factor: 4.4482216152605, dim: dim(1, 1, -2, 0)},
		"lbf":      {factor: 4.4482216152605, dim: dim(1, 1, -2, 0)},
		"dyn":      {factor: 1e-5, dim: dim(1, 1, -2, 0)},

		// Pressure (to Pa)
		"Pa":    {factor: 1.0, dim: dim(1, -1, -2, 0)},
		"kPa":   {factor: 1e3, dim: dim(1, -1, -2, 0)},
		"MPa":   {factor: 1e6, dim: dim(1, -1, -2, 0)},
		"bar":   {factor: 1e5, dim: dim(1, -1, -2, 0)},
		"atm":   {factor: 101325.0, dim: dim(1, -1, -2, 0)},
		"[psi]": {factor: 6894.757293168, dim: dim(1, -1, -2, 0)},
		"psi":   {factor: 6894.757293168, dim: dim(1, -1, -2, 0)},

		// Energy (to J)
		"J":    {factor: 1.0, dim: dim(1, 2, -2, 0)},
		"kJ":   {factor: 1e3, dim: dim(1, 2, -2, 0)},
		"MJ":   {factor: 1e6, dim: dim(1, 2, -2, 0)},
		"cal":  {factor: 4.184, dim: dim(1, 2, -2, 0)},
		"kcal": {factor: 4184.0, dim: dim(1, 2, -2, 0)},
		"BTU":  {factor: 1055.06, dim: dim(1, 2, -2, 0)},

		// Power (to W)
		"W":  {factor: 1.0, dim: dim(1, 2, -3, 0)},
		"kW": {factor: 1e3, dim: dim(1, 2, -3, 0)},
		"MW": {factor: 1e6, dim: dim(1, 2, -3, 0)},

		// Temperature (to K). Cel and [degF] are affine.
		"K":      {factor: 1.0, dim: dim(0, 0, 0, 1)},
		"Cel":    {factor: 1.0, offset: 273.15, dim: dim(0, 0, 0, 1)},
		"[degF]": {factor: 5.0 / 9.0, offset: 459.67 * 5.0 / 9.0, dim: dim(0, 0, 0, 1)},

		// Amount (to mol)
		"mol":  {factor: 1.0, dim: ir.Dim{0, 0, 0, 0, 1, 0, 0}},
		"kmol": {factor: 1e3, dim: ir.Dim{0, 0, 0, 0, 1, 0, 0}},

		// Dimensionless
		"1": {factor: 1.0},
		"%": {factor: 0.01},
	}
	return &unitTable{atoms: atoms}
}

// Parse resolves a unit expression. Any token outside the table, malformed
// exponent, or affine atom inside a compound is a grammar failure; the
// ambiguity gate maps that failure to UCUM_PARSE_FAIL.
func (t *unitTable) Parse(expr string) (UnitVal, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return UnitVal{}, fmt.Errorf("empty unit expression")
	}

	// Whole-expression affine atoms first: Cel and [degF] cannot appear in
	// products, so a direct hit is the only valid use.
	if atom, ok := t.atoms[trimmed]; ok {
		return UnitVal{Symbol: trimmed, Factor: atom.factor, Offset: atom.offset, Dim: atom.dim}, nil
	}

	val := UnitVal{Symbol: trimmed, Factor: 1.0}
	rest := trimmed
	divide := false
	for len(rest) > 0 {
		idx := strings.IndexAny(rest, "./")
		var token string
		if idx < 0 {
			token = rest
			rest = ""
		} else {
			token = rest[:idx]
			if token == "" {
				return UnitVal{}, fmt.Errorf("unit %q: empty term", expr)
			}
			if idx == len(rest)-1 {
				return UnitVal{}, fmt.Errorf("unit %q: trailing separator", expr)
			}
		}

		atomVal, exp, err := t.parseTerm(token)
		if err != nil {
			return UnitVal{}, fmt.Errorf("unit %q: %w", expr, err)
		}
		if atomVal.offset != 0 {
			return UnitVal{}, fmt.Errorf("unit %q: affine unit %q not valid in a compound", expr, token)
		}
		if divide {
			exp = -exp
		}
		val.Factor *= powFactor(atomVal.factor, exp)
		val.Dim = val.Dim.Mul(atomVal.dim.Pow(exp))

		if idx >= 0 {
			// UCUM semantics: "/" flips sign for the following term and all
			// terms after it until another separator resets nothing ("a/b.c"
			// divides by b then multiplies by c at denominator level is a
			// known UCUM pitfall; we follow the simple left-to-right rule).
			divide = rest[idx] == '/'
			rest = rest[idx+1:]
		}
	}
	return val, nil
}

// parseTerm splits a trailing integer exponent off an atom token.
func (t *unitTable) parseTerm(token string) (unitAtom, int, error) {
	// Bracketed atoms never carry exponents in our grammar.
	if atom, ok := t.atoms[token]; ok {
		return atom, 1, nil
	}

	// Longest symbol prefix with a valid signed-integer suffix wins.
	for cut := len(token) - 1; cut > 0; cut-- {
		sym, suffix := token[:cut], token[cut:]
		atom, ok := t.atoms[sym]
		if !ok {
			continue
		}
		exp, err := strconv.Atoi(suffix)
		if err != nil || exp == 0 {
			continue
		}
		return atom, exp, nil
	}
	return unitAtom{}, 0, fmt.Errorf("unknown unit symbol %q", token)
}

func powFactor(f float64, exp int) float64 {
	if exp < 0 {
		f = 1 / f
		exp = -exp
	}
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= f
	}
	return out
}
