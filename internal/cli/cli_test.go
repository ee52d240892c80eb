package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSpec(t *testing.T, raw []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func acceptSpec(t *testing.T) string {
	t.Helper()
	return writeSpec(t, testutil.NewSpec("thermo", "state_point").
		Quantity("thermo.temperature", 300, "K").
		Quantity("thermo.volume", 0.024, "m3").
		Quantity("thermo.amount", 1, "mol").
		Unknown("thermo.pressure").
		Constrain(testutil.Eq(
			testutil.Ref("mech.energy"),
			testutil.Mul(testutil.Ref("thermo.pressure"), testutil.Ref("thermo.volume")),
		)).
		Assume("ideal_gas", ir.ProvenanceUser).
		JSON(t))
}

func underdeterminedSpec(t *testing.T) string {
	t.Helper()
	return writeSpec(t, testutil.NewSpec("thermo", "state_point").
		Quantity("thermo.temperature", 300, "K").
		Unknown("thermo.pressure", "thermo.volume").
		JSON(t))
}

func TestValidateAccept(t *testing.T) {
	out, err := execute(t, "validate", acceptSpec(t))
	require.NoError(t, err)
	assert.Contains(t, out, "spec_validator: ACCEPT")
}

func TestValidateBlockingExitsOne(t *testing.T) {
	out, err := execute(t, "validate", underdeterminedSpec(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "CLARIFY")
	assert.Contains(t, out, "requires: additional_constraints")
}

func TestValidateMissingFile(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "READ_FAILED")
}

func TestValidateJSONFormat(t *testing.T) {
	out, err := execute(t, "validate", "--format", "json", acceptSpec(t))
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   DecisionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ir.DecisionAccept, resp.Data.Decision)
	assert.Equal(t, "spec_validator", resp.Data.GateID)
}

func TestInvalidFormatFlag(t *testing.T) {
	_, err := execute(t, "validate", "--format", "xml", acceptSpec(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestCanonPrintsSpecID(t *testing.T) {
	spec := acceptSpec(t)
	out, err := execute(t, "canon", spec)
	require.NoError(t, err)
	assert.Contains(t, out, "spec_id: ")
	assert.Contains(t, out, "ontology_version: 2.3.0")
	assert.Contains(t, out, "unknown: thermo.pressure")

	// Canonicalization is deterministic: a second invocation prints the
	// same bytes.
	again, err := execute(t, "canon", spec)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestCanonBlockingSpec(t *testing.T) {
	out, err := execute(t, "canon", underdeterminedSpec(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "CLARIFY")
}

func TestRunAccept(t *testing.T) {
	out, err := execute(t, "run", acceptSpec(t))
	require.NoError(t, err)
	assert.Contains(t, out, "decision: ACCEPT (pipeline)")
	assert.Contains(t, out, "(thermo_ideal_gas@1.0.0)")
}

func TestRunJSONFormat(t *testing.T) {
	out, err := execute(t, "run", "--format", "json", acceptSpec(t))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ir.DecisionAccept, resp.Data.Decision.Decision)
	assert.Equal(t, "thermo_ideal_gas", resp.Data.KernelID)
	assert.Equal(t, "1.0.0", resp.Data.KernelVersion)
	require.NotNil(t, resp.Data.Value)
	assert.InDelta(t, 103930.782725, *resp.Data.Value, 1e-6)
	assert.NotEmpty(t, resp.Data.SpecID)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.False(t, resp.Data.CacheHit)
}

func TestRunBlockingExitsOne(t *testing.T) {
	_, err := execute(t, "run", underdeterminedSpec(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRunPersistsAndAuditReads(t *testing.T) {
	db := filepath.Join(t.TempDir(), "veritas.db")

	out, err := execute(t, "run", "--db", db, "--format", "json", acceptSpec(t))
	require.NoError(t, err)
	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.SpecID)

	out, err = execute(t, "audit", "--db", db, resp.Data.SpecID)
	require.NoError(t, err)
	assert.Contains(t, out, "kernel_selector")
	assert.Contains(t, out, "result_cache")
	assert.Contains(t, out, "cache=miss")
	assert.Contains(t, out, "pipeline")
	assert.Contains(t, out, "ACCEPT")
	assert.Contains(t, out, "run=")

	out, err = execute(t, "audit", "--db", db, "no-such-spec")
	require.NoError(t, err)
	assert.Contains(t, out, "no audit records")
}

func TestAuditRequiresDB(t *testing.T) {
	out, err := execute(t, "audit", "some-spec-id")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "audit requires --db")
}

func TestCatalogList(t *testing.T) {
	out, err := execute(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "catalog version 1.4.0")
	assert.Contains(t, out, "thermo_ideal_gas@1.0.0")
	assert.Contains(t, out, "DEPRECATED -> thermo_ideal_gas@1.0.0")
	assert.Contains(t, out, "fluids_hydrostatic@1.0.0")
}

func TestCatalogListJSON(t *testing.T) {
	out, err := execute(t, "catalog", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string                `json:"status"`
		Data   []CatalogEntrySummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data, 6)
}

func TestScenarioCommand(t *testing.T) {
	out, err := execute(t, "scenario", filepath.Join("..", "harness", "testdata"))
	require.NoError(t, err)
	assert.Contains(t, out, "5 scenario(s), 0 failed")
}

func TestScenarioCommandEmptyDir(t *testing.T) {
	out, err := execute(t, "scenario", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "NO_SCENARIOS")
}

func TestExitErrorCodes(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))

	wrapped := WrapExitError(ExitFailure, "outer", errors.New("inner"))
	assert.Equal(t, "outer: inner", wrapped.Error())
	assert.EqualError(t, wrapped.Unwrap(), "inner")
}

func TestOutputFormatterError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Error("READ_FAILED", "no such file", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "READ_FAILED", resp.Error.Code)

	buf.Reset()
	f = &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Error("READ_FAILED", "no such file", nil))
	assert.Contains(t, buf.String(), "Error [READ_FAILED]: no such file")
}

func TestVerboseLogGated(t *testing.T) {
	var out, errw bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errw}

	f.VerboseLog("hidden %d", 1)
	assert.Empty(t, errw.String())

	f.Verbose = true
	f.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", errw.String())
	assert.Empty(t, out.String(), "verbose output never corrupts JSON on stdout")
}
