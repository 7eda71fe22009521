// Package ebml decodes hierarchical binary container streams built from
// tagged, length-prefixed elements.
//
// A stream is a flat sequence of elements; each element is an ID varint, a
// size varint, and a payload that is either a typed scalar (integer, float,
// string, date, binary) or a nested sequence of further elements. A Schema,
// parsed from a declarative YAML table, maps element IDs to names and
// decoded types; IDs absent from the schema are preserved as opaque binary
// so newer writers never break older readers.
//
// Decoding is lazy throughout. A Document hands out Elements that record
// byte ranges, not copies: leaf payloads are read on first value access and
// children of a container are parsed only as an iteration advances, which
// keeps opening a multi-gigabyte file cheap. Elements declared with the
// reserved unknown-size pattern (a writer crashed, or the file is still
// being written) are bounded by scanning for the next element legal at the
// same nesting depth.
package ebml
