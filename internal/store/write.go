package store

import (
	"context"
	"fmt"

	"github.com/roach88/veritas/internal/ir"
)

// AuditRecord is one gate decision as persisted. RunID groups every record
// minted by the same request. CacheEvent is "hit" or "miss" on result-cache
// records and empty otherwise. Confidence is the preformatted audit string;
// the raw number never reaches storage.
type AuditRecord struct {
	ID             int64
	RunID          string
	SpecID         string
	GateID         string
	Decision       ir.Decision
	Reasons        []ir.ReasonCode
	RequiredFields []string
	Confidence     string
	Attempt        int
	CacheEvent     string
	CreatedAt      string
}

// WriteCanonicalSpec inserts a canonical spec.
// Uses ON CONFLICT(spec_id) DO NOTHING for idempotency: the spec is
// content-addressed, so a duplicate id is by construction the same spec.
func (s *Store) WriteCanonicalSpec(ctx context.Context, spec *ir.CanonicalSpec) error {
	canonicalJSON, err := marshalSpec(spec)
	if err != nil {
		return fmt.Errorf("write canonical spec: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO canonical_specs
		(spec_id, schema_version, domain, problem_type, ontology_version, canonical_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(spec_id) DO NOTHING
	`,
		spec.SpecID,
		spec.SchemaVersion,
		spec.Domain,
		spec.ProblemType,
		spec.OntologyVersion,
		canonicalJSON,
	)
	if err != nil {
		return fmt.Errorf("write canonical spec: %w", err)
	}

	return nil
}

// WriteResult inserts a validated result.
// Uses ON CONFLICT DO NOTHING for idempotency: a numeric-deterministic
// kernel produces exactly one result per (spec_id, kernel_id,
// kernel_version), so a second write for that epoch is silently ignored.
//
// Note: The spec referenced by the provenance must exist (foreign key
// constraint).
func (s *Store) WriteResult(ctx context.Context, result ir.ValidatedResult) error {
	bundleJSON, err := marshalBundle(result.Bundle)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	bundleHash, err := ir.HashBundle(result.Bundle)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	p := result.Provenance
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results
		(run_id, spec_id, kernel_id, kernel_version, interface_hash, determinism, value, unit, bundle_json, bundle_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		p.RunID,
		p.SpecID,
		p.KernelID,
		p.KernelVersion,
		p.InterfaceHash,
		string(p.Determinism),
		result.Bundle.Value,
		result.Bundle.Unit,
		bundleJSON,
		bundleHash,
	)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}

// WriteAudit appends a gate decision to the audit log and returns its id.
// The log is append-only; there is no update or delete path.
func (s *Store) WriteAudit(ctx context.Context, rec AuditRecord) (int64, error) {
	reasonsJSON, err := marshalStrings(reasonStrings(rec.Reasons))
	if err != nil {
		return 0, fmt.Errorf("write audit: %w", err)
	}
	fieldsJSON, err := marshalStrings(rec.RequiredFields)
	if err != nil {
		return 0, fmt.Errorf("write audit: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records
		(run_id, spec_id, gate_id, decision, reasons, required_fields, confidence, attempt, cache_event)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID,
		rec.SpecID,
		rec.GateID,
		string(rec.Decision),
		reasonsJSON,
		fieldsJSON,
		rec.Confidence,
		rec.Attempt,
		rec.CacheEvent,
	)
	if err != nil {
		return 0, fmt.Errorf("write audit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write audit: %w", err)
	}
	return id, nil
}
