package engine

import (
	"fmt"

	"github.com/roach88/veritas/internal/ir"
)

// blockedError carries a blocking solution-validator decision out of the
// cached execution path. It is internal plumbing: Evaluate unwraps it into
// the outcome, so callers only ever see GateDecisions.
type blockedError struct {
	decision ir.GateDecision
}

func (e *blockedError) Error() string {
	return fmt.Sprintf("blocked by %s: %s", e.decision.GateID, e.decision.Decision)
}

// execError marks an infrastructure-level kernel failure, as opposed to a
// validation decision about its output.
type execError struct {
	kernel string
	err    error
}

func (e *execError) Error() string {
	return fmt.Sprintf("kernel %s: %v", e.kernel, e.err)
}

func (e *execError) Unwrap() error {
	return e.err
}
