// Package schema checks server payloads against an embedded CUE schema
// before they reach the tree.
//
// The tree tolerates malformed nodes by skipping them, so a schema violation
// is a diagnostic, not a failure: the engine logs it and carries on, while
// `formentry validate` reports it and exits non-zero.
package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/formentry/internal/wire"
)

//go:embed form.cue
var source string

// Validation-error types the engine understands.
var validationTypes = map[string]bool{
	wire.ValidationRequired:   true,
	wire.ValidationConstraint: true,
}

// Violation is one schema failure with its location in the payload.
type Violation struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (v *Violation) Error() string {
	loc := v.Path
	if v.Pos.IsValid() {
		loc = fmt.Sprintf("%s:%d:%d", v.Pos.Filename(), v.Pos.Line(), v.Pos.Column())
		if v.Path != "" {
			loc += " " + v.Path
		}
	}
	if loc == "" {
		return v.Message
	}
	return loc + ": " + v.Message
}

// Schema is a compiled payload schema.
//
// A Schema is not safe for concurrent use: CUE values share their context.
type Schema struct {
	ctx      *cue.Context
	response cue.Value
}

// New compiles the embedded schema.
func New() (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source, cue.Filename("form.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Response"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Response: %w", err)
	}
	return &Schema{ctx: ctx, response: def}, nil
}

// Validate checks raw JSON. filename is used in positions. A payload that
// is not JSON yields a single violation.
func (s *Schema) Validate(filename string, data []byte) []*Violation {
	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return []*Violation{{Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}
	v := s.ctx.BuildExpr(expr)
	if err := v.Err(); err != nil {
		return violations(err)
	}

	out := violations(s.response.Unify(v).Validate(cue.Concrete(true)))
	out = append(out, checkValidationError(v)...)
	return out
}

// ValidateResponse checks a decoded response by re-encoding it.
func (s *Schema) ValidateResponse(resp *wire.Response) []*Violation {
	data, err := wire.MarshalCanonical(resp)
	if err != nil {
		return []*Violation{{Message: fmt.Sprintf("encode response: %v", err)}}
	}
	return s.Validate("response", data)
}

// checkValidationError requires a known type on validation-error responses.
func checkValidationError(v cue.Value) []*Violation {
	status, err := v.LookupPath(cue.ParsePath("status")).String()
	if err != nil || status != wire.StatusValidationError {
		return nil
	}
	typ := v.LookupPath(cue.ParsePath("type"))
	t, err := typ.String()
	if err == nil && validationTypes[t] {
		return nil
	}
	return []*Violation{{
		Path:    "type",
		Message: fmt.Sprintf("validation-error type must be %q or %q", wire.ValidationRequired, wire.ValidationConstraint),
		Pos:     typ.Pos(),
	}}
}

func violations(err error) []*Violation {
	if err == nil {
		return nil
	}
	var out []*Violation
	for _, e := range errors.Errors(err) {
		format, args := e.Msg()
		viol := &Violation{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		if positions := errors.Positions(e); len(positions) > 0 {
			viol.Pos = positions[0]
		}
		out = append(out, viol)
	}
	return out
}
