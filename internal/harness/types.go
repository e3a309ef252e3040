package harness

import (
	"github.com/roach88/pdatrace/internal/engine"
	"github.com/roach88/pdatrace/internal/store"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass indicates overall test success.
	// True if every expectation matched.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Input is the resolved request, with any derived target filled in.
	Input engine.RequestInput `json:"input"`

	// Match is what the analyzer returned.
	Match *engine.PdaMatch `json:"match,omitempty"`

	// Analysis is the match as recorded and read back from the
	// scenario's in-memory store.
	Analysis *store.Analysis `json:"analysis,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
