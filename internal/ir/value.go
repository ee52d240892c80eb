package ir

import (
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface representing constrained value types.
// Only IRString, IRInt, IRFloat, IRBool, IRArray, and IRObject implement it.
// Null is forbidden: absent fields are omitted, never serialized as null.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRString represents a string value in the IR.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value in the IR. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a float64 value in the IR.
//
// Floats are admitted because physical magnitudes are inherently real-valued.
// Determinism is preserved by the canonical encoding: every IRFloat is
// serialized with a fixed-width scientific format (see canonical.go), so the
// same float64 bit pattern always produces the same bytes. NaN and Inf are
// rejected at marshal time.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value in the IR.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// Must use unicode/utf16.Encode for correct surrogate handling.
func compareKeysRFC8785(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))

	n := len(ua)
	if len(ub) < n {
		n = len(ub)
	}
	for i := 0; i < n; i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	default:
		return 0
	}
}

// StringList converts a slice of strings to an IRArray.
// The input order is preserved; callers that need a canonical order must
// sort before conversion.
func StringList(ss []string) IRArray {
	arr := make(IRArray, len(ss))
	for i, s := range ss {
		arr[i] = IRString(s)
	}
	return arr
}
