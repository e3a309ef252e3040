package engine

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/pattern"
)

// AnalysisRequest is a parsed request: the target address, the program
// that owns it, and optional role → key bindings such as "wallet".
type AnalysisRequest struct {
	Address   ir.PublicKey
	ProgramID ir.PublicKey
	Context   map[string]ir.PublicKey
}

// ContextDigest returns the digest that keys this request's context.
func (r AnalysisRequest) ContextDigest() [32]byte {
	return ir.ContextDigest(r.Context)
}

// ID returns the content-addressed id of the request.
func (r AnalysisRequest) ID() string {
	return ir.AnalysisID(r.Address, r.ProgramID, r.ContextDigest())
}

func (r AnalysisRequest) patternRequest() pattern.Request {
	return pattern.Request{ProgramID: r.ProgramID, Context: r.Context}
}

// RequestInput is the text form of a request as supplied by API, CLI
// and batch callers. Keys are base58 or hex.
type RequestInput struct {
	Address   string            `json:"address" yaml:"address"`
	ProgramID string            `json:"program_id" yaml:"program_id"`
	Context   map[string]string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Parse validates every field and returns the typed request.
// Any malformed field yields an INVALID_INPUT RuntimeError naming it.
func (in RequestInput) Parse() (AnalysisRequest, error) {
	var req AnalysisRequest

	addr, err := ir.ParsePublicKey(in.Address)
	if err != nil {
		return req, NewInvalidInput("address", err)
	}
	program, err := ir.ParsePublicKey(in.ProgramID)
	if err != nil {
		return req, NewInvalidInput("program_id", err)
	}

	req.Address = addr
	req.ProgramID = program
	if len(in.Context) == 0 {
		return req, nil
	}

	req.Context = make(map[string]ir.PublicKey, len(in.Context))
	// Sorted so the reported field is stable when several are bad.
	for _, role := range slices.Sorted(maps.Keys(in.Context)) {
		if strings.TrimSpace(role) == "" {
			return req, NewInvalidInput("context", errors.New("empty role name"))
		}
		key, err := ir.ParsePublicKey(in.Context[role])
		if err != nil {
			rerr := NewInvalidInput("context."+role, err)
			rerr.Details = map[string]string{"role": role}
			return req, rerr
		}
		req.Context[role] = key
	}
	return req, nil
}

// Input converts a typed request back to its text form.
func (r AnalysisRequest) Input() RequestInput {
	in := RequestInput{Address: r.Address.String(), ProgramID: r.ProgramID.String()}
	if len(r.Context) > 0 {
		in.Context = make(map[string]string, len(r.Context))
		for role, key := range r.Context {
			in.Context[role] = key.String()
		}
	}
	return in
}
