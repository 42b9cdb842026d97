// Package value provides the canonical stored value types for EmberDB.
//
// This package contains leaf types only. Every other internal package
// imports value; value imports nothing internal.
//
// Key design constraints:
//   - Value is sealed; a type switch over it is exhaustive
//   - Float is float32 (single precision), Double is float64
//   - Dates are milliseconds since the Unix epoch
//   - Links are (type, id) handles, never owning pointers
//   - Canonical JSON (RFC 8785 style) is used only for fingerprints
package value
