package gate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/ontology"
)

// Gate ids for audit records.
const (
	GateAmbiguity    = "ambiguity_gate"
	GateSchema       = "schema_gate"
	GateDimension    = "dimension_gate"
	GateOperator     = "operator_gate"
	GateEnvelope     = "envelope_gate"
	GateCompleteness = "completeness_gate"
	GateGovernance   = "governance_gate"
	GateValidator    = "spec_validator"
)

// Validator is the specification validator. It holds only the pinned
// ontology snapshot and the compiled schema; both are immutable, so a
// Validator is safe for unbounded concurrent use.
type Validator struct {
	ont    *ontology.Snapshot
	schema *schemaChecker
}

// New builds a validator over a pinned ontology snapshot.
func New(ont *ontology.Snapshot) (*Validator, error) {
	checker, err := newSchemaChecker()
	if err != nil {
		return nil, err
	}
	return &Validator{ont: ont, schema: checker}, nil
}

// Ontology returns the pinned snapshot the validator evaluates against.
func (v *Validator) Ontology() *ontology.Snapshot {
	return v.ont
}

// Evaluate runs the fixed stage order over raw problem-spec JSON and
// returns the decision plus the decoded spec (nil unless decoding
// succeeded). The input is never mutated; confidence fields are carried as
// opaque metadata and no stage reads them.
//
// Precedence: contract violations (schema, dimension, operator) always
// outrank content-level CLARIFY findings; once rejected, no later stage is
// evaluated. ESCALATE overrides ACCEPT only.
func (v *Validator) Evaluate(raw []byte, pol Policy) (ir.GateDecision, *ir.ProblemSpec) {
	spec, err := ir.ParseProblemSpec(raw)
	if err != nil {
		d := ir.GateDecision{
			GateID:   GateSchema,
			Decision: ir.DecisionReject,
			Reasons:  []ir.ReasonCode{ir.ReasonSchemaInvalid},
		}
		d.Normalize()
		return d, nil
	}

	// Stage 1 findings are held back until the contract stages have run:
	// a spec that is both ambiguous and schema-invalid is rejected, not
	// clarified.
	ambiguity := v.ambiguityStage(spec, pol)

	if d, rejected := v.schemaStage(raw, spec); rejected {
		return d, spec
	}
	if d, rejected := v.dimensionStage(spec); rejected {
		return d, spec
	}
	if d, rejected := v.operatorStage(spec); rejected {
		return d, spec
	}

	if ambiguity.Blocking() {
		return ambiguity, spec
	}

	if d, abstained := v.envelopeStage(spec); abstained {
		return d, spec
	}
	if d, blocked := v.completenessStage(spec); blocked {
		return d, spec
	}

	if d, escalated := v.governanceOverride(spec, pol); escalated {
		return d, spec
	}

	return ir.Accept(GateValidator), spec
}

// declaredTerms yields every term the spec declares: quantity ids and
// unknowns.
func declaredTerms(spec *ir.ProblemSpec) []string {
	terms := make([]string, 0, len(spec.Quantities)+len(spec.Unknowns))
	for _, q := range spec.Quantities {
		terms = append(terms, q.ID)
	}
	terms = append(terms, spec.Unknowns...)
	return terms
}

// ambiguityStage resolves aliases and unit strings. Every finding is a
// CLARIFY with one required field per flagged term.
func (v *Validator) ambiguityStage(spec *ir.ProblemSpec, pol Policy) ir.GateDecision {
	d := ir.GateDecision{GateID: GateAmbiguity, Decision: ir.DecisionAccept}

	for _, term := range declaredTerms(spec) {
		if defs := v.ont.LookupByAlias(term); dimsDiffer(defs) {
			d.Reasons = append(d.Reasons, ir.ReasonTermCollision)
			d.RequiredFields = append(d.RequiredFields, fieldName(term)+"_disambiguation")
		}
		for _, disallowed := range pol.DisallowedTerms {
			if termEqual(term, disallowed) {
				d.Reasons = append(d.Reasons, ir.ReasonDisallowedTerm)
				d.RequiredFields = append(d.RequiredFields, fieldName(term)+"_clarification")
			}
		}
	}

	for _, q := range spec.Quantities {
		if field, ok := pol.AmbiguousUnits[q.Unit]; ok {
			d.Reasons = append(d.Reasons, ir.ReasonUnitAmbiguous)
			d.RequiredFields = append(d.RequiredFields, field)
			continue
		}
		if _, err := v.ont.ParseUnit(q.Unit); err != nil {
			d.Reasons = append(d.Reasons, ir.ReasonUCUMParseFail)
			d.RequiredFields = append(d.RequiredFields, fieldName(q.ID)+"_unit")
		}
	}

	if len(d.Reasons) > 0 {
		d.Decision = ir.DecisionClarify
	}
	d.Normalize()
	return d
}

// schemaStage checks structural conformance (CUE) and referential
// resolvability against the pinned ontology. Failure is REJECT, never
// clarifiable.
func (v *Validator) schemaStage(raw []byte, spec *ir.ProblemSpec) (ir.GateDecision, bool) {
	reject := func() (ir.GateDecision, bool) {
		d := ir.GateDecision{
			GateID:   GateSchema,
			Decision: ir.DecisionReject,
			Reasons:  []ir.ReasonCode{ir.ReasonSchemaInvalid},
		}
		d.Normalize()
		return d, true
	}

	if msgs := v.schema.Check(raw); len(msgs) > 0 {
		return reject()
	}
	if !v.ont.HasDomain(spec.Domain) {
		return reject()
	}
	for _, term := range declaredTerms(spec) {
		if len(v.ont.LookupByAlias(term)) == 0 {
			return reject()
		}
	}
	for _, a := range spec.Assumptions {
		if !v.ont.HasAssumption(a.ID) {
			return reject()
		}
		if !ir.ValidAssumptionProvenances[a.Provenance] {
			return reject()
		}
	}
	for _, c := range spec.Constraints {
		if err := c.CheckShape(); err != nil {
			return reject()
		}
		for _, ref := range c.References() {
			if len(v.ont.LookupByAlias(ref)) == 0 {
				return reject()
			}
		}
	}
	return ir.GateDecision{}, false
}

// dimensionStage derives each quantity's dimension vector from (quantity
// id, declared unit, ontology definition) and checks constraint-operand
// consistency. Upstream dimensions are never consulted: the spec type has
// no field to carry them.
func (v *Validator) dimensionStage(spec *ir.ProblemSpec) (ir.GateDecision, bool) {
	var reasons []ir.ReasonCode

	for _, q := range spec.Quantities {
		def, ok := v.resolveUnique(q.ID)
		if !ok {
			// Ambiguous term: stage 1 already holds a CLARIFY for it.
			continue
		}
		unitVal, err := v.ont.ParseUnit(q.Unit)
		if err != nil {
			// Unparseable unit: stage 1 already holds a CLARIFY for it.
			continue
		}
		if unitVal.Dim != def.Dim {
			reasons = append(reasons, ir.ReasonDimensionMismatch)
		}
	}

	for _, c := range spec.Constraints {
		if _, err := v.deriveDim(c); err != nil {
			reasons = append(reasons, ir.ReasonDimensionalInconsistency)
		}
	}

	if len(reasons) == 0 {
		return ir.GateDecision{}, false
	}
	d := ir.GateDecision{GateID: GateDimension, Decision: ir.DecisionReject, Reasons: reasons}
	d.Normalize()
	return d, true
}

// deriveDim computes the dimension of a constraint subtree.
func (v *Validator) deriveDim(n *ir.ConstraintNode) (ir.Dim, error) {
	switch n.Op {
	case ir.OpReference:
		def, ok := v.resolveUnique(n.Ref)
		if !ok {
			return ir.Dim{}, fmt.Errorf("ambiguous reference %q", n.Ref)
		}
		return def.Dim, nil
	case ir.OpConstant:
		return ir.Dimensionless, nil
	case ir.OpAdd:
		first, err := v.deriveDim(n.Operands[0])
		if err != nil {
			return ir.Dim{}, err
		}
		for _, op := range n.Operands[1:] {
			d, err := v.deriveDim(op)
			if err != nil {
				return ir.Dim{}, err
			}
			if d != first {
				return ir.Dim{}, fmt.Errorf("add operands %s and %s", first, d)
			}
		}
		return first, nil
	case ir.OpMultiply:
		out := ir.Dimensionless
		for _, op := range n.Operands {
			d, err := v.deriveDim(op)
			if err != nil {
				return ir.Dim{}, err
			}
			out = out.Mul(d)
		}
		return out, nil
	case ir.OpDivide:
		num, err := v.deriveDim(n.Operands[0])
		if err != nil {
			return ir.Dim{}, err
		}
		den, err := v.deriveDim(n.Operands[1])
		if err != nil {
			return ir.Dim{}, err
		}
		return num.Div(den), nil
	case ir.OpPower:
		base, err := v.deriveDim(n.Operands[0])
		if err != nil {
			return ir.Dim{}, err
		}
		exp := n.Operands[1]
		if exp.Op != ir.OpConstant {
			return ir.Dim{}, fmt.Errorf("exponent must be a constant")
		}
		if base.IsZero() {
			return ir.Dimensionless, nil
		}
		k := int(exp.Value)
		if float64(k) != exp.Value {
			return ir.Dim{}, fmt.Errorf("non-integer exponent %v on dimensional base", exp.Value)
		}
		return base.Pow(k), nil
	case ir.OpEquals, ir.OpLessThan, ir.OpGreaterThan:
		left, err := v.deriveDim(n.Operands[0])
		if err != nil {
			return ir.Dim{}, err
		}
		right, err := v.deriveDim(n.Operands[1])
		if err != nil {
			return ir.Dim{}, err
		}
		if left != right {
			return ir.Dim{}, fmt.Errorf("comparison operands %s and %s", left, right)
		}
		return ir.Dimensionless, nil
	default:
		return ir.Dim{}, fmt.Errorf("unknown operator %q", n.Op)
	}
}

// operatorStage enforces the domain's operator allowlist. A single
// disallowed node rejects the whole spec.
func (v *Validator) operatorStage(spec *ir.ProblemSpec) (ir.GateDecision, bool) {
	allowed, err := v.ont.AllowedOperators(spec.Domain)
	if err != nil {
		// Unknown domain is a schema failure; schemaStage ran first.
		return ir.GateDecision{}, false
	}
	var disallowed bool
	var walk func(*ir.ConstraintNode)
	walk = func(n *ir.ConstraintNode) {
		if n == nil {
			return
		}
		if !allowed[n.Op] {
			disallowed = true
		}
		for _, op := range n.Operands {
			walk(op)
		}
	}
	for _, c := range spec.Constraints {
		walk(c)
	}
	if !disallowed {
		return ir.GateDecision{}, false
	}
	d := ir.GateDecision{
		GateID:   GateOperator,
		Decision: ir.DecisionReject,
		Reasons:  []ir.ReasonCode{ir.ReasonOperatorNotAllowed},
	}
	d.Normalize()
	return d, true
}

// envelopeStage checks declared magnitudes against admissible ranges, in
// canonical units. Out of range is ABSTAIN: the spec is well-formed but the
// numbers are outside what any certified routine should touch.
func (v *Validator) envelopeStage(spec *ir.ProblemSpec) (ir.GateDecision, bool) {
	var out bool
	for _, q := range spec.Quantities {
		def, ok := v.resolveUnique(q.ID)
		if !ok || def.AdmissibleRange == nil {
			continue
		}
		unitVal, err := v.ont.ParseUnit(q.Unit)
		if err != nil {
			continue
		}
		if !def.AdmissibleRange.Contains(unitVal.ToSI(q.Magnitude)) {
			out = true
		}
	}
	if !out {
		return ir.GateDecision{}, false
	}
	d := ir.GateDecision{
		GateID:   GateEnvelope,
		Decision: ir.DecisionAbstain,
		Reasons:  []ir.ReasonCode{ir.ReasonOutOfEnvelope},
	}
	d.Normalize()
	return d, true
}

// completenessStage checks degrees of freedom and simple deterministic
// contradictions. Contradictions are contract violations and take
// precedence over the clarifiable shortfall.
func (v *Validator) completenessStage(spec *ir.ProblemSpec) (ir.GateDecision, bool) {
	if v.contradictory(spec) {
		d := ir.GateDecision{
			GateID:   GateCompleteness,
			Decision: ir.DecisionReject,
			Reasons:  []ir.ReasonCode{ir.ReasonContradictoryConstraints},
		}
		d.Normalize()
		return d, true
	}

	var fields []string
	if len(spec.MissingRequired) > 0 {
		fields = append(fields, spec.MissingRequired...)
	}
	// Every unknown needs its own independent equality; unknowns in excess
	// of the equation count cannot be solved for.
	if len(spec.Unknowns) > v.independentEqualities(spec) {
		fields = append(fields, "additional_constraints")
	}
	if len(fields) == 0 {
		return ir.GateDecision{}, false
	}
	d := ir.GateDecision{
		GateID:         GateCompleteness,
		Decision:       ir.DecisionClarify,
		Reasons:        []ir.ReasonCode{ir.ReasonMissingRequired},
		RequiredFields: fields,
	}
	d.Normalize()
	return d, true
}

// independentEqualities counts equality constraints that are structurally
// distinct under canonical serialization. Structural distinctness is a
// deliberate approximation of linear independence: it never overcounts
// duplicates, which is the failure mode that matters for the DOF check.
func (v *Validator) independentEqualities(spec *ir.ProblemSpec) int {
	seen := make(map[string]bool)
	for _, c := range spec.Constraints {
		if c == nil || c.Op != ir.OpEquals {
			continue
		}
		b, err := c.CanonicalBytes()
		if err != nil {
			continue
		}
		seen[string(b)] = true
	}
	return len(seen)
}

// contradictory detects simple deterministic contradictions: the same
// reference equated to two different constants, or a constant equated to a
// different constant.
func (v *Validator) contradictory(spec *ir.ProblemSpec) bool {
	bound := make(map[string]float64)
	for _, c := range spec.Constraints {
		if c == nil || c.Op != ir.OpEquals || len(c.Operands) != 2 {
			continue
		}
		left, right := c.Operands[0], c.Operands[1]
		// Normalize to (reference, constant) order.
		if left.Op == ir.OpConstant && right.Op == ir.OpReference {
			left, right = right, left
		}
		switch {
		case left.Op == ir.OpReference && right.Op == ir.OpConstant:
			if prev, ok := bound[left.Ref]; ok && prev != right.Value {
				return true
			}
			bound[left.Ref] = right.Value
		case left.Op == ir.OpConstant && right.Op == ir.OpConstant:
			if left.Value != right.Value {
				return true
			}
		}
	}
	return false
}

// governanceOverride escalates an otherwise accepted spec when policy flags
// the domain safety-critical, or when model-provenance assumptions require
// manual approval in this domain.
func (v *Validator) governanceOverride(spec *ir.ProblemSpec, pol Policy) (ir.GateDecision, bool) {
	var reasons []ir.ReasonCode
	if pol.IsSafetyCritical(spec.Domain) {
		reasons = append(reasons, ir.ReasonSafetyCritical)
	}
	if pol.RequiresManualAssumptionApproval(spec.Domain) {
		for _, a := range spec.Assumptions {
			if a.Provenance == ir.ProvenanceModel {
				reasons = append(reasons, ir.ReasonManualApproval)
				break
			}
		}
	}
	if len(reasons) == 0 {
		return ir.GateDecision{}, false
	}
	d := ir.GateDecision{GateID: GateGovernance, Decision: ir.DecisionEscalate, Reasons: reasons}
	d.Normalize()
	return d, true
}

func (v *Validator) resolveUnique(term string) (ontology.QuantityDef, bool) {
	return v.ont.Resolve(term)
}

func dimsDiffer(defs []ontology.QuantityDef) bool {
	for i := 1; i < len(defs); i++ {
		if defs[i].Dim != defs[0].Dim {
			return true
		}
	}
	return false
}

func fieldName(term string) string {
	s := strings.ToLower(strings.TrimSpace(term))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}

func termEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Reencode serializes a decoded spec back to JSON for callers that build
// specs programmatically (tests and the harness).
func Reencode(spec *ir.ProblemSpec) ([]byte, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("reencode problem spec: %w", err)
	}
	return data, nil
}
