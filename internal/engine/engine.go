package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/veritas/internal/cache"
	"github.com/roach88/veritas/internal/canon"
	"github.com/roach88/veritas/internal/catalog"
	"github.com/roach88/veritas/internal/compute"
	"github.com/roach88/veritas/internal/gate"
	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/ontology"
	"github.com/roach88/veritas/internal/solution"
	"github.com/roach88/veritas/internal/store"
)

const defaultCacheSize = 1024

// Options configures an Engine. Ontology, Catalog, Policy, and Registry are
// required; the rest default sensibly.
type Options struct {
	Ontology *ontology.Snapshot
	Catalog  *catalog.Snapshot
	Policy   gate.Policy
	Registry *compute.Registry

	// Store persists specs, results, and audit records. Nil disables
	// persistence; the pipeline itself never depends on it.
	Store *store.Store

	// PipelineConfigID identifies the active pipeline configuration and is
	// part of every cache key.
	PipelineConfigID string

	CacheSize int
	Logger    *slog.Logger
	Clock     Clock
}

// Engine wires the pipeline stages together. Safe for concurrent use: all
// snapshots are immutable, the cache is internally synchronized, and the
// golden registry has its own lock.
type Engine struct {
	ont      *catalogOntology
	policy   gate.Policy
	gate     *gate.Validator
	canon    *canon.Canonicalizer
	solution *solution.Validator
	registry *compute.Registry
	cache    *cache.Cache
	store    *store.Store
	log      *slog.Logger
	clock    Clock

	pipelineConfigID string

	mu      sync.RWMutex
	goldens map[string]solution.GoldenReference
}

// catalogOntology bundles the two pinned snapshots a request is evaluated
// under.
type catalogOntology struct {
	ontology *ontology.Snapshot
	catalog  *catalog.Snapshot
}

// New builds an engine from options.
func New(opts Options) (*Engine, error) {
	if opts.Ontology == nil || opts.Catalog == nil || opts.Registry == nil {
		return nil, fmt.Errorf("engine: ontology, catalog, and registry are required")
	}
	if opts.Policy.Version == "" {
		return nil, fmt.Errorf("engine: policy is required")
	}

	validator, err := gate.New(opts.Ontology)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	resultCache, err := cache.New(size)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = SystemClock{}
	}

	return &Engine{
		ont:              &catalogOntology{ontology: opts.Ontology, catalog: opts.Catalog},
		policy:           opts.Policy,
		gate:             validator,
		canon:            canon.New(opts.Ontology),
		solution:         solution.New(opts.Ontology),
		registry:         opts.Registry,
		cache:            resultCache,
		store:            opts.Store,
		log:              logger,
		clock:            clk,
		pipelineConfigID: opts.PipelineConfigID,
		goldens:          make(map[string]solution.GoldenReference),
	}, nil
}

// RegisterGolden pins a certified reference answer for a spec id. Results
// for that spec are compared against it by the solution validator.
func (e *Engine) RegisterGolden(specID string, ref solution.GoldenReference) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.goldens[specID] = ref
}

func (e *Engine) golden(specID string) *solution.GoldenReference {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if ref, ok := e.goldens[specID]; ok {
		return &ref
	}
	return nil
}

// InvalidateKernelEpoch drops every cached result computed under the given
// kernel epoch ("kernel_id@version"). Call when a catalog update supersedes
// that version.
func (e *Engine) InvalidateKernelEpoch(epoch string) int {
	n := e.cache.InvalidateKernelEpoch(epoch)
	e.log.Info("cache invalidated", "kernel_epoch", epoch, "entries", n)
	return n
}

// InvalidateOntology drops every cached result computed under the given
// ontology snapshot version.
func (e *Engine) InvalidateOntology(version string) int {
	n := e.cache.InvalidateOntology(version)
	e.log.Info("cache invalidated", "ontology_version", version, "entries", n)
	return n
}

// CacheStats returns a snapshot of cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// audit records a decision to the log and, when a store is configured, the
// audit table under the request's run id. Audit failures are logged and
// swallowed: the decision stands whether or not its record landed.
func (e *Engine) audit(ctx context.Context, runID, specID string, d ir.GateDecision, spec *ir.ProblemSpec) {
	attrs := []any{
		"gate_id", d.GateID,
		"decision", string(d.Decision),
		"run_id", runID,
	}
	if len(d.Reasons) > 0 {
		attrs = append(attrs, "reasons", d.Reasons)
	}
	if specID != "" {
		attrs = append(attrs, "spec_id", specID)
	}
	e.log.InfoContext(ctx, "gate decision", attrs...)

	rec := store.AuditRecord{
		RunID:          runID,
		SpecID:         specID,
		GateID:         d.GateID,
		Decision:       d.Decision,
		Reasons:        d.Reasons,
		RequiredFields: d.RequiredFields,
	}
	e.writeAudit(ctx, rec, spec)
}

// auditCacheEvent records whether the delivered result came out of the
// result cache or was freshly computed.
func (e *Engine) auditCacheEvent(ctx context.Context, runID, specID string, hit bool, spec *ir.ProblemSpec) {
	event := "miss"
	if hit {
		event = "hit"
	}
	rec := store.AuditRecord{
		RunID:      runID,
		SpecID:     specID,
		GateID:     GateCache,
		Decision:   ir.DecisionAccept,
		CacheEvent: event,
	}
	e.writeAudit(ctx, rec, spec)
}

func (e *Engine) writeAudit(ctx context.Context, rec store.AuditRecord, spec *ir.ProblemSpec) {
	if e.store == nil {
		return
	}
	if spec != nil {
		rec.Attempt = spec.Attempt
		rec.Confidence = spec.Confidence.AuditString()
	}
	if _, err := e.store.WriteAudit(ctx, rec); err != nil {
		e.log.WarnContext(ctx, "audit write failed", "error", err)
	}
}
