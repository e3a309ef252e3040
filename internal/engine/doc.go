// Package engine implements the pdatrace search engine.
//
// The engine takes an analysis request (target address, owning program,
// optional role → key context) and looks for the pattern and seed
// sequence whose canonical derivation reproduces the target.
//
// ARCHITECTURE:
//
// Matcher:
// A pure, synchronous search. Patterns are tried in library order and
// candidates in the order the pattern yields them. Each candidate is run
// through derive.FindBump and accepted only on exact equality with the
// target. The first match wins.
//
// Analyzer:
// Wraps a Matcher with the result cache so repeated and concurrent
// identical requests share one computation. Input validation happens
// here, before any derivation.
//
// Recorder:
// Optionally persists finished analyses into the SQLite store, stamped
// with a logical sequence number.
//
// CRITICAL PATTERNS:
//
// Bounded search:
// Every (pattern, candidate) pair counts against a Budget. When the
// budget is spent the search stops with a non-match instead of running
// unbounded.
//
// Value-level outcomes:
// Only malformed input is an error. "No pattern matched" is a PdaMatch
// with Derived == false.
package engine
