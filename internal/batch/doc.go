// Package batch runs many analyses with bounded concurrency and
// aggregates their outcomes.
package batch
