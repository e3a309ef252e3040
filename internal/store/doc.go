// Package store provides SQLite-backed storage for analysis results.
//
// Two tables:
//   - programs: every program id seen, with an optional display name
//   - analyses: one row per (address, program, context digest), upserted
//
// # Ordering
//
// Rows carry a seq from the engine's logical sequence. Lists order by
// seq DESC, id ASC so results are stable across runs and do not depend on
// wall-clock resolution. recorded_at is informational only.
//
// # Connections and schema
//
// Pragmas (WAL, synchronous=NORMAL, busy_timeout=5000, foreign_keys) are
// passed as go-sqlite3 DSN parameters. Open creates missing tables and
// applies pending migrations in one transaction; PRAGMA user_version
// records how far a database has been migrated.
//
// Analysis ids are computed by ir.AnalysisID, so re-recording the same
// request replaces its row instead of duplicating it.
package store
