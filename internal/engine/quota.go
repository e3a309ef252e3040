package engine

import (
	"errors"
	"fmt"
)

// DefaultBudget is the default maximum number of (pattern, candidate)
// pairs one search may try.
const DefaultBudget = 4096

// Budget counts candidate tries for one search and enforces a limit.
//
// Each search has its own Budget. It is checked before every candidate,
// so a search never tries more than Limit candidates. This bounds the
// worst case, a target that matches nothing, to a fixed amount of work.
//
// Not safe for concurrent use; a search is single-threaded.
type Budget struct {
	limit   int
	current int
}

// NewBudget creates a budget with the given limit.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit}
}

// Check counts one try and returns BudgetExceededError once the count
// passes the limit.
func (b *Budget) Check(pattern string) error {
	b.current++
	if b.current > b.limit {
		return &BudgetExceededError{
			Pattern: pattern,
			Tries:   b.current,
			Limit:   b.limit,
		}
	}
	return nil
}

// Used returns the number of tries that were allowed.
func (b *Budget) Used() int {
	if b.current > b.limit {
		return b.limit
	}
	return b.current
}

// Limit returns the configured limit.
func (b *Budget) Limit() int {
	return b.limit
}

// BudgetExceededError is returned by Check when the search has spent
// its budget. It ends the search with a non-match.
type BudgetExceededError struct {
	Pattern string // Pattern being tried when the budget ran out
	Tries   int    // Tries attempted, including the rejected one
	Limit   int    // Maximum allowed tries
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("search budget exceeded in pattern %s: %d tries > %d limit",
		e.Pattern, e.Tries, e.Limit)
}

// IsBudgetExceededError returns true if the error is a BudgetExceededError.
// Uses errors.As to handle wrapped errors.
func IsBudgetExceededError(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
