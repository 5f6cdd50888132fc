// Package resource defines the document model for the published tree:
// the closed set of resource kinds, their frequency classes and capability
// flags, the reserved _links/_embedded/_schema sections, and the canonical
// JSON serialization used for content hashing and byte-stable output.
//
// Canonical serialization follows RFC 8785: object keys sorted by UTF-16
// code units, NFC-normalized strings, no HTML escaping, and a hard ban on
// floats and nulls. Every published byte goes through MarshalCanonical, so
// two compilations of the same snapshot produce identical files.
package resource
