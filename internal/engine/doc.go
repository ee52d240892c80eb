// Package engine orchestrates the validation-and-execution pipeline.
//
// One request flows through a fixed sequence: gate validation, canonical
// normalization, kernel selection, cached execution, solution validation.
// Every stage is a pure function of (request, pinned snapshots, policy); the
// engine owns the wiring, the audit trail, and nothing else.
//
// Decision flow:
//  1. The gate pipeline evaluates raw producer JSON. Any blocking decision
//     (CLARIFY, REJECT, ABSTAIN, ESCALATE) ends the run there.
//  2. The canonicalizer derives the immutable canonical spec and its
//     content-addressed spec_id. A normalization failure here is the sole
//     fatal condition and aborts the request with an error.
//  3. The selector picks exactly one kernel, or the policy's registered
//     fallback takes over with a FALLBACK decision.
//  4. Execution is memoized: concurrent identical requests collapse to one
//     kernel run, and completed runs are reused until their epoch is
//     explicitly invalidated.
//  5. The solution validator inspects the bundle before anything is cached,
//     persisted, or returned.
//
// Every decision, blocking or not, is written to the audit log under a run
// id minted per request, along with the kernel selection and the cache hit
// or miss. No stage ever reads producer confidence; it travels to the audit
// record as a preformatted string and nowhere else.
package engine
