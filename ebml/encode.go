package ebml

import (
	"time"

	"github.com/sensorkit/ide/endian"
)

// The Append* helpers build element streams in memory. They exist for
// writing export snapshots and synthetic fixtures; the decoder never
// depends on them.

// AppendElement appends a complete element (ID, minimal size varint,
// payload) to dst.
func AppendElement(dst []byte, id uint64, payload []byte) []byte {
	dst = AppendID(dst, id)
	dst = AppendSize(dst, int64(len(payload)), 0)

	return append(dst, payload...)
}

// AppendUintElement appends an unsigned integer element using the minimal
// payload width.
func AppendUintElement(dst []byte, id uint64, v uint64) []byte {
	dst = AppendID(dst, id)
	dst = AppendSize(dst, int64(endian.UvarlenSize(v)), 0)

	return endian.AppendUvarlen(dst, v)
}

// AppendIntElement appends a signed integer element using the minimal
// payload width.
func AppendIntElement(dst []byte, id uint64, v int64) []byte {
	payload := endian.AppendVarlen(nil, v)
	dst = AppendID(dst, id)
	dst = AppendSize(dst, int64(len(payload)), 0)

	return append(dst, payload...)
}

// AppendFloatElement appends an 8-byte IEEE 754 float element.
func AppendFloatElement(dst []byte, id uint64, v float64) []byte {
	dst = AppendID(dst, id)
	dst = AppendSize(dst, 8, 0)

	return endian.AppendFloat64(dst, v)
}

// AppendStringElement appends a string element.
func AppendStringElement(dst []byte, id uint64, s string) []byte {
	dst = AppendID(dst, id)
	dst = AppendSize(dst, int64(len(s)), 0)

	return append(dst, s...)
}

// AppendDateElement appends a date element holding the signed nanosecond
// distance from the 2001-01-01 UTC epoch.
func AppendDateElement(dst []byte, id uint64, t time.Time) []byte {
	return AppendIntElement(dst, id, t.Sub(dateEpoch).Nanoseconds())
}

// AppendMaster appends a master element whose payload is produced by fn.
// The size varint is written after fn runs, so nested AppendMaster calls
// compose without placeholder rewriting.
func AppendMaster(dst []byte, id uint64, fn func(payload []byte) []byte) []byte {
	payload := fn(nil)
	dst = AppendID(dst, id)
	dst = AppendSize(dst, int64(len(payload)), 0)

	return append(dst, payload...)
}
