// Package record models the Record Store snapshot: the read-only input of
// a compilation cycle. A snapshot is loaded from a YAML file or a SQLite
// database, gated through a CUE schema, and never written back.
package record
