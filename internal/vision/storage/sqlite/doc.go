// Package sqlite persists benchmark runs and their per-configuration
// results in SQLite (modernc.org/sqlite, no cgo).
//
// The schema is managed by golang-migrate from migrations embedded in the
// binary; Open applies pending migrations. Responsibilities:
//   - bench_runs: one row per sweep invocation, keyed by a UUID run id.
//   - bench_results: one row per configuration, in sweep order, with the
//     aggregate summary and the per-frame results as JSON.
package sqlite
