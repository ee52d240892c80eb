package store

import (
	"fmt"

	"github.com/roach88/veritas/internal/ir"
)

// marshalSpec serializes a canonical spec, spec_id included, as canonical
// JSON. Stored bytes are directly comparable: same spec, same bytes.
func marshalSpec(spec *ir.CanonicalSpec) (string, error) {
	content, err := spec.ContentIR()
	if err != nil {
		return "", fmt.Errorf("marshal spec: %w", err)
	}
	content["spec_id"] = ir.IRString(spec.SpecID)
	data, err := ir.MarshalCanonical(content)
	if err != nil {
		return "", fmt.Errorf("marshal spec: %w", err)
	}
	return string(data), nil
}

// marshalBundle serializes a solution bundle as canonical JSON.
func marshalBundle(bundle ir.SolutionBundle) (string, error) {
	data, err := ir.MarshalCanonical(bundle.ToIR())
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}
	return string(data), nil
}

// marshalStrings serializes a string slice as a canonical JSON array.
func marshalStrings(ss []string) (string, error) {
	data, err := ir.MarshalCanonical(ir.StringList(ss))
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

func reasonStrings(reasons []ir.ReasonCode) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = string(r)
	}
	return out
}
