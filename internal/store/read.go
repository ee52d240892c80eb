package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/veritas/internal/ir"
)

// StoredSpec is a canonical spec row.
type StoredSpec struct {
	SpecID          string
	SchemaVersion   string
	Domain          string
	ProblemType     string
	OntologyVersion string
	CanonicalJSON   string
	CreatedAt       string
}

// StoredResult is a validated result row.
type StoredResult struct {
	RunID         string
	SpecID        string
	KernelID      string
	KernelVersion string
	InterfaceHash string
	Determinism   ir.DeterminismLevel
	Value         float64
	Unit          string
	BundleJSON    string
	BundleHash    string
	CreatedAt     string
}

// GetCanonicalSpec fetches a canonical spec by id.
// The second return is false if no row exists.
func (s *Store) GetCanonicalSpec(ctx context.Context, specID string) (StoredSpec, bool, error) {
	var row StoredSpec
	err := s.db.QueryRowContext(ctx, `
		SELECT spec_id, schema_version, domain, problem_type, ontology_version, canonical_json, created_at
		FROM canonical_specs WHERE spec_id = ?
	`, specID).Scan(
		&row.SpecID,
		&row.SchemaVersion,
		&row.Domain,
		&row.ProblemType,
		&row.OntologyVersion,
		&row.CanonicalJSON,
		&row.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredSpec{}, false, nil
	}
	if err != nil {
		return StoredSpec{}, false, fmt.Errorf("get canonical spec: %w", err)
	}
	return row, true, nil
}

// GetResult fetches the result for one (spec, kernel epoch).
// The second return is false if no row exists.
func (s *Store) GetResult(ctx context.Context, specID, kernelID, kernelVersion string) (StoredResult, bool, error) {
	var row StoredResult
	var determinism string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, spec_id, kernel_id, kernel_version, interface_hash, determinism, value, unit, bundle_json, bundle_hash, created_at
		FROM results WHERE spec_id = ? AND kernel_id = ? AND kernel_version = ?
	`, specID, kernelID, kernelVersion).Scan(
		&row.RunID,
		&row.SpecID,
		&row.KernelID,
		&row.KernelVersion,
		&row.InterfaceHash,
		&determinism,
		&row.Value,
		&row.Unit,
		&row.BundleJSON,
		&row.BundleHash,
		&row.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredResult{}, false, nil
	}
	if err != nil {
		return StoredResult{}, false, fmt.Errorf("get result: %w", err)
	}
	row.Determinism = ir.DeterminismLevel(determinism)
	return row, true, nil
}

const auditColumns = "id, run_id, spec_id, gate_id, decision, reasons, required_fields, confidence, attempt, cache_event, created_at"

// ListAudit returns the audit records for a spec, oldest first.
func (s *Store) ListAudit(ctx context.Context, specID string) ([]AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_records WHERE spec_id = ? ORDER BY id", specID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return collectAudit(rows)
}

// ListAuditByRun returns every audit record minted under one request run id,
// oldest first.
func (s *Store) ListAuditByRun(ctx context.Context, runID string) ([]AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_records WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return collectAudit(rows)
}

func collectAudit(rows *sql.Rows) ([]AuditRecord, error) {
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var decision, reasonsJSON, fieldsJSON string
		var specIDCol sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&specIDCol,
			&rec.GateID,
			&decision,
			&reasonsJSON,
			&fieldsJSON,
			&rec.Confidence,
			&rec.Attempt,
			&rec.CacheEvent,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list audit: scan: %w", err)
		}
		rec.SpecID = specIDCol.String
		rec.Decision = ir.Decision(decision)

		var reasons []string
		if err := json.Unmarshal([]byte(reasonsJSON), &reasons); err != nil {
			return nil, fmt.Errorf("list audit: reasons: %w", err)
		}
		for _, r := range reasons {
			rec.Reasons = append(rec.Reasons, ir.ReasonCode(r))
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.RequiredFields); err != nil {
			return nil, fmt.Errorf("list audit: required fields: %w", err)
		}

		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return out, nil
}
