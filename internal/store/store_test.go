package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veritas/internal/ir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "veritas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testSpec(t *testing.T) *ir.CanonicalSpec {
	t.Helper()
	spec := &ir.CanonicalSpec{
		SchemaVersion: "1.2.0",
		Domain:        "thermo",
		ProblemType:   "state_point",
		Quantities: []ir.CanonicalQuantity{
			{ID: "thermo.temperature", Value: 300, Unit: "K", Dim: ir.Dim{ir.DimTemperature: 1}},
		},
		Unknowns:        []string{"thermo.pressure"},
		OntologyVersion: "2.3.0",
	}
	id, err := spec.ComputeSpecID()
	require.NoError(t, err)
	spec.SpecID = id
	return spec
}

func testValidatedResult(specID, runID string) ir.ValidatedResult {
	return ir.ValidatedResult{
		Bundle: ir.SolutionBundle{
			Value: 103930.782725, Unit: "Pa",
			KernelID: "thermo_ideal_gas", KernelVersion: "1.0.0",
		},
		Provenance: ir.Provenance{
			KernelID:      "thermo_ideal_gas",
			KernelVersion: "1.0.0",
			InterfaceHash: "8c2f41d7a90b3e16",
			SpecID:        specID,
			RunID:         runID,
			Determinism:   ir.DeterminismNumeric,
		},
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	st := openTestStore(t)

	assert.NoError(t, st.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, st.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, st.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, st.verifyPragma("user_version", "2"))
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veritas.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, st.Close())
}

func TestCanonicalSpecRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	spec := testSpec(t)

	require.NoError(t, st.WriteCanonicalSpec(ctx, spec))

	row, ok, err := st.GetCanonicalSpec(ctx, spec.SpecID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, spec.SpecID, row.SpecID)
	assert.Equal(t, "thermo", row.Domain)
	assert.Equal(t, "state_point", row.ProblemType)
	assert.Equal(t, "2.3.0", row.OntologyVersion)
	assert.Contains(t, row.CanonicalJSON, `"spec_id"`)
	assert.NotEmpty(t, row.CreatedAt)

	_, ok, err = st.GetCanonicalSpec(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteCanonicalSpecIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	spec := testSpec(t)

	require.NoError(t, st.WriteCanonicalSpec(ctx, spec))
	require.NoError(t, st.WriteCanonicalSpec(ctx, spec), "content-addressed duplicate is a no-op")

	var count int
	require.NoError(t, st.DB().QueryRow("SELECT COUNT(*) FROM canonical_specs").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestResultRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	spec := testSpec(t)
	require.NoError(t, st.WriteCanonicalSpec(ctx, spec))

	result := testValidatedResult(spec.SpecID, "run-1")
	require.NoError(t, st.WriteResult(ctx, result))

	row, ok, err := st.GetResult(ctx, spec.SpecID, "thermo_ideal_gas", "1.0.0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", row.RunID)
	assert.Equal(t, ir.DeterminismNumeric, row.Determinism)
	assert.Equal(t, 103930.782725, row.Value)
	assert.Equal(t, "Pa", row.Unit)

	wantHash, err := ir.HashBundle(result.Bundle)
	require.NoError(t, err)
	assert.Equal(t, wantHash, row.BundleHash)
}

func TestWriteResultEpochUnique(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	spec := testSpec(t)
	require.NoError(t, st.WriteCanonicalSpec(ctx, spec))

	require.NoError(t, st.WriteResult(ctx, testValidatedResult(spec.SpecID, "run-1")))
	// Same epoch, different run id: silently ignored.
	require.NoError(t, st.WriteResult(ctx, testValidatedResult(spec.SpecID, "run-2")))

	row, ok, err := st.GetResult(ctx, spec.SpecID, "thermo_ideal_gas", "1.0.0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", row.RunID, "first write wins per epoch")
}

func TestWriteResultRequiresSpec(t *testing.T) {
	st := openTestStore(t)

	err := st.WriteResult(context.Background(), testValidatedResult("no-such-spec", "run-1"))
	assert.Error(t, err, "foreign key to canonical_specs")
}

func TestAuditAppendAndList(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	spec := testSpec(t)
	require.NoError(t, st.WriteCanonicalSpec(ctx, spec))

	id1, err := st.WriteAudit(ctx, AuditRecord{
		RunID:          "run-a",
		SpecID:         spec.SpecID,
		GateID:         "completeness_gate",
		Decision:       ir.DecisionClarify,
		Reasons:        []ir.ReasonCode{ir.ReasonMissingRequired},
		RequiredFields: []string{"additional_constraints"},
		Attempt:        1,
	})
	require.NoError(t, err)
	id2, err := st.WriteAudit(ctx, AuditRecord{
		RunID:      "run-b",
		SpecID:     spec.SpecID,
		GateID:     "pipeline",
		Decision:   ir.DecisionAccept,
		Confidence: "0.9300",
		Attempt:    2,
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	records, err := st.ListAudit(ctx, spec.SpecID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "run-a", records[0].RunID)
	assert.Equal(t, ir.DecisionClarify, records[0].Decision)
	assert.Equal(t, []ir.ReasonCode{ir.ReasonMissingRequired}, records[0].Reasons)
	assert.Equal(t, []string{"additional_constraints"}, records[0].RequiredFields)
	assert.Equal(t, 1, records[0].Attempt)

	assert.Equal(t, "run-b", records[1].RunID)
	assert.Equal(t, ir.DecisionAccept, records[1].Decision)
	assert.Empty(t, records[1].Reasons)
	assert.Equal(t, "0.9300", records[1].Confidence)

	none, err := st.ListAudit(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAuditListByRun(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	spec := testSpec(t)
	require.NoError(t, st.WriteCanonicalSpec(ctx, spec))

	_, err := st.WriteAudit(ctx, AuditRecord{
		RunID: "run-a", SpecID: spec.SpecID,
		GateID: "kernel_selector", Decision: ir.DecisionAccept,
	})
	require.NoError(t, err)
	_, err = st.WriteAudit(ctx, AuditRecord{
		RunID: "run-a", SpecID: spec.SpecID,
		GateID: "result_cache", Decision: ir.DecisionAccept, CacheEvent: "miss",
	})
	require.NoError(t, err)
	_, err = st.WriteAudit(ctx, AuditRecord{
		RunID: "run-b", SpecID: spec.SpecID,
		GateID: "pipeline", Decision: ir.DecisionAccept,
	})
	require.NoError(t, err)

	records, err := st.ListAuditByRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "kernel_selector", records[0].GateID)
	assert.Equal(t, "result_cache", records[1].GateID)
	assert.Equal(t, "miss", records[1].CacheEvent)

	none, err := st.ListAuditByRun(ctx, "run-c")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMigrationBackfillsAuditColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veritas.db")

	// A database created before v2 has audit_records without run_id.
	st, err := Open(path)
	require.NoError(t, err)
	_, err = st.DB().Exec(`
		DROP INDEX idx_audit_run;
		ALTER TABLE audit_records DROP COLUMN run_id;
		ALTER TABLE audit_records DROP COLUMN cache_event;
		PRAGMA user_version = 1;
	`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	assert.NoError(t, st.verifyPragma("user_version", "2"))
	var n int
	require.NoError(t, st.DB().QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('audit_records') WHERE name IN ('run_id', 'cache_event')",
	).Scan(&n))
	assert.Equal(t, 2, n)
}
