// Package endian provides byte order utilities for binary encoding and
// decoding.
//
// It serves two layers of the module. The element codec reads the
// variable-width big-endian integers and floats that the container format
// stores (1..8 byte payloads, sign extension for signed values); those live
// in bigendian.go. The snapshot exporter writes fixed-width little-endian
// sections through the EndianEngine interface defined here, which combines
// the ByteOrder and AppendByteOrder interfaces from encoding/binary so one
// value can serve both read/write and append call sites.
//
// All functions and methods in this package are safe for concurrent use.
// The returned EndianEngine instances are immutable and stateless.
package endian

import (
	"encoding/binary"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from
// encoding/binary into a single interface for convenient byte order
// operations.
//
// This interface is satisfied by binary.LittleEndian and binary.BigEndian
// from the standard library, making it fully compatible with existing Go
// code while providing access to both read/write and append operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
