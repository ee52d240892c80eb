package gate

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed problemspec.cue
var problemSpecCUE []byte

// schemaChecker validates raw problem-spec JSON against the embedded CUE
// schema. Uses the CUE SDK's Go API directly (not a CLI subprocess).
type schemaChecker struct {
	schema cue.Value
}

func newSchemaChecker() (*schemaChecker, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(problemSpecCUE)
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("schema: compile embedded schema: %w", err)
	}
	schema := root.LookupPath(cue.ParsePath("#ProblemSpec"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("schema: lookup #ProblemSpec: %w", err)
	}
	return &schemaChecker{schema: schema}, nil
}

// Check unifies the JSON document with the schema and returns one message
// per violation. An empty slice means the document conforms.
func (c *schemaChecker) Check(data []byte) []string {
	expr, err := cuejson.Extract("problemspec.json", data)
	if err != nil {
		return []string{fmt.Sprintf("malformed JSON: %v", err)}
	}

	val := c.schema.Context().BuildExpr(expr)
	if err := val.Err(); err != nil {
		return []string{fmt.Sprintf("build document: %v", err)}
	}

	unified := c.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		var msgs []string
		for _, e := range cueerrors.Errors(err) {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return nil
}
