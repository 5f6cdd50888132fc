// Package compiler turns a Record Store snapshot into the complete resource
// tree: one series-index per series, one frozen release-detail per release,
// the timeline with per-year period-indexes and per-month instant-indexes,
// plus the root-index and manifest.
//
// Placement policy: a fact lands in the lowest-frequency resource that can
// still answer the majority of expected queries without an extra fetch, and
// branch-or-faster facts are never pushed into root-frequency resources.
// Gaps in the source (a release without a date) fail the whole cycle; the
// compiler never guesses a placement.
//
// Per-series and per-period compilation run in parallel. Each worker builds
// a private tree shard over disjoint paths; shards are merged at the final
// barrier, so no locking is needed by construction.
package compiler
