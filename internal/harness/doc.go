// Package harness runs end-to-end pipeline scenarios against a fully wired
// engine.
//
// A scenario is a YAML file: a name, a raw problem spec, an expected
// decision, and optionally a certified golden answer and a repeat count.
// Repeats exercise the determinism contract: every repetition must produce
// the identical decision, spec id, and numbers, and repetitions after the
// first must be served from cache.
//
// Golden-file comparison of full outcome snapshots uses goldie; regenerate
// with:
//
//	go test ./internal/harness -update
package harness
