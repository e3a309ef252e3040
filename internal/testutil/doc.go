// Package testutil holds deterministic helpers shared by tests and the
// scenario harness: a frozen clock, sequential request ids, and stable
// keys and PDAs.
package testutil
