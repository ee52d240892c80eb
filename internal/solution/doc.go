// Package solution validates kernel outputs before they become results.
//
// A bundle that fails a hard invariant (non-finite value, negative absolute
// quantity, wrong output dimension) is rejected regardless of how plausible
// the number looks. Uncertainty beyond policy thresholds abstains, and a
// golden-reference mismatch escalates: a kernel drifting from its certified
// answers is an operator problem, not a producer problem.
package solution
