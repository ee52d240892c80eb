package ir

import "slices"

// Decision is the outcome of a gate evaluation. Every gate returns one of
// these; no gate ever aborts the caller's flow.
type Decision string

const (
	DecisionAccept   Decision = "ACCEPT"
	DecisionClarify  Decision = "CLARIFY"
	DecisionFallback Decision = "FALLBACK"
	DecisionReject   Decision = "REJECT"
	DecisionAbstain  Decision = "ABSTAIN"
	DecisionEscalate Decision = "ESCALATE"
)

// ReasonCode is a machine-readable reason attached to a GateDecision.
type ReasonCode string

const (
	// Content ambiguity (stage 1) - recoverable only via new caller input.
	ReasonTermCollision  ReasonCode = "TERM_COLLISION"
	ReasonUnitAmbiguous  ReasonCode = "UNIT_AMBIGUOUS"
	ReasonDisallowedTerm ReasonCode = "DISALLOWED_TERM"
	ReasonUCUMParseFail  ReasonCode = "UCUM_PARSE_FAIL"

	// Contract violations - REJECT, never locally recoverable.
	ReasonSchemaInvalid            ReasonCode = "SCHEMA_INVALID"
	ReasonDimensionMismatch        ReasonCode = "DIMENSION_MISMATCH"
	ReasonDimensionalInconsistency ReasonCode = "DIMENSIONAL_INCONSISTENCY"
	ReasonOperatorNotAllowed       ReasonCode = "OPERATOR_NOT_ALLOWED"
	ReasonContradictoryConstraints ReasonCode = "CONTRADICTORY_CONSTRAINTS"

	// Risk - well-formed but untrustworthy, ABSTAIN.
	ReasonOutOfEnvelope       ReasonCode = "OUT_OF_ENVELOPE"
	ReasonUncertaintyExceeded ReasonCode = "UNCERTAINTY_EXCEEDED"
	ReasonInvariantViolation  ReasonCode = "INVARIANT_VIOLATION"

	// Content completeness - CLARIFY.
	ReasonMissingRequired ReasonCode = "MISSING_REQUIRED"

	// Governance - ESCALATE to a human.
	ReasonGoldenMismatch ReasonCode = "GOLDEN_MISMATCH"
	ReasonSafetyCritical ReasonCode = "SAFETY_CRITICAL_DOMAIN"
	ReasonManualApproval ReasonCode = "MANUAL_ASSUMPTION_APPROVAL"

	// Infrastructure - FALLBACK if an alternative exists, else ABSTAIN.
	ReasonNoCompatibleKernel ReasonCode = "NO_COMPATIBLE_KERNEL"
	ReasonExecutionFailed    ReasonCode = "EXECUTION_FAILED"
)

// ErrorClass is the coarse recovery taxonomy a reason code belongs to.
type ErrorClass string

const (
	ClassContract         ErrorClass = "CONTRACT"
	ClassContentAmbiguity ErrorClass = "CONTENT_AMBIGUITY"
	ClassRisk             ErrorClass = "RISK"
	ClassGovernance       ErrorClass = "GOVERNANCE"
	ClassInfrastructure   ErrorClass = "INFRASTRUCTURE"
)

var reasonClasses = map[ReasonCode]ErrorClass{
	ReasonTermCollision:  ClassContentAmbiguity,
	ReasonUnitAmbiguous:  ClassContentAmbiguity,
	ReasonDisallowedTerm: ClassContentAmbiguity,
	ReasonUCUMParseFail:  ClassContentAmbiguity,

	ReasonSchemaInvalid:            ClassContract,
	ReasonDimensionMismatch:        ClassContract,
	ReasonDimensionalInconsistency: ClassContract,
	ReasonOperatorNotAllowed:       ClassContract,
	ReasonContradictoryConstraints: ClassContract,

	ReasonOutOfEnvelope:       ClassRisk,
	ReasonUncertaintyExceeded: ClassRisk,
	ReasonInvariantViolation:  ClassRisk,

	ReasonMissingRequired: ClassContentAmbiguity,

	ReasonGoldenMismatch: ClassGovernance,
	ReasonSafetyCritical: ClassGovernance,
	ReasonManualApproval: ClassGovernance,

	ReasonNoCompatibleKernel: ClassInfrastructure,
	ReasonExecutionFailed:    ClassInfrastructure,
}

// Class returns the recovery taxonomy for a reason code.
// Unknown codes classify as infrastructure, the most conservative mapping
// that still never turns into an ACCEPT.
func (r ReasonCode) Class() ErrorClass {
	if c, ok := reasonClasses[r]; ok {
		return c
	}
	return ClassInfrastructure
}

// GateDecision is the full outcome of one gate: the decision, machine-
// readable reasons, and - only for CLARIFY - the fields the caller must
// disambiguate. GateDecision is ephemeral; it is recorded to the audit sink
// but never persisted as pipeline state.
type GateDecision struct {
	GateID   string       `json:"gate_id"`
	Decision Decision     `json:"decision"`
	Reasons  []ReasonCode `json:"reasons,omitempty"`

	// RequiredFields is populated only when Decision is CLARIFY:
	// one entry per field requiring disambiguation, sorted.
	RequiredFields []string `json:"required_fields,omitempty"`
}

// Accept is the zero-reason passing decision for a gate.
func Accept(gateID string) GateDecision {
	return GateDecision{GateID: gateID, Decision: DecisionAccept}
}

// Blocking reports whether the decision halts forward progress.
func (d GateDecision) Blocking() bool {
	return d.Decision != DecisionAccept
}

// HasReason reports whether the decision carries the given reason code.
func (d GateDecision) HasReason(code ReasonCode) bool {
	return slices.Contains(d.Reasons, code)
}

// Normalize sorts and dedupes reasons and required fields so that a decision
// serializes identically regardless of evaluation order inside a stage.
func (d *GateDecision) Normalize() {
	slices.Sort(d.Reasons)
	d.Reasons = slices.Compact(d.Reasons)
	slices.Sort(d.RequiredFields)
	d.RequiredFields = slices.Compact(d.RequiredFields)
}

// ToIR converts the decision to IR values for audit serialization.
func (d GateDecision) ToIR() IRObject {
	obj := IRObject{
		"gate_id":  IRString(d.GateID),
		"decision": IRString(string(d.Decision)),
	}
	if len(d.Reasons) > 0 {
		reasons := make(IRArray, len(d.Reasons))
		for i, r := range d.Reasons {
			reasons[i] = IRString(string(r))
		}
		obj["reasons"] = reasons
	}
	if len(d.RequiredFields) > 0 {
		obj["required_fields"] = StringList(d.RequiredFields)
	}
	return obj
}
