package endian

import (
	"math"

	"github.com/sensorkit/ide/errs"
)

// big is the engine behind the fixed-width reads and writes below; the
// variable-width loops shift bytes directly.
var big = GetBigEndianEngine()

// Uvarlen decodes a big-endian unsigned integer stored in 1 to 8 bytes.
// A zero-length slice decodes as 0.
func Uvarlen(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}

	return v
}

// Varlen decodes a big-endian signed integer stored in 1 to 8 bytes,
// sign-extending from the payload's most significant bit.
func Varlen(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}

	v := Uvarlen(b)
	if b[0]&0x80 != 0 && len(b) < 8 {
		// Negative value: extend the sign through the unused high bytes.
		v |= ^uint64(0) << (8 * len(b))
	}

	return int64(v)
}

// Floatlen decodes a big-endian IEEE 754 float stored in 0, 4, or 8 bytes.
// A zero-length payload decodes as 0.0; any other width is an error.
func Floatlen(b []byte) (float64, error) {
	switch len(b) {
	case 0:
		return 0, nil
	case 4:
		return float64(math.Float32frombits(big.Uint32(b))), nil
	case 8:
		return math.Float64frombits(big.Uint64(b)), nil
	default:
		return 0, errs.ErrTruncatedElement
	}
}

// UvarlenSize returns the minimal number of bytes needed to store v as a
// big-endian unsigned integer. Zero encodes in one byte.
func UvarlenSize(v uint64) int {
	n := 1
	for v > 0xFF {
		v >>= 8
		n++
	}

	return n
}

// AppendUvarlen appends v as a minimal-length big-endian unsigned integer.
func AppendUvarlen(dst []byte, v uint64) []byte {
	n := UvarlenSize(v)
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}

	return dst
}

// AppendFloat64 appends v as an 8-byte big-endian IEEE 754 float.
func AppendFloat64(dst []byte, v float64) []byte {
	return big.AppendUint64(dst, math.Float64bits(v))
}

// AppendVarlen appends v as a minimal-length big-endian signed integer,
// keeping the leading bit available for sign extension on decode.
func AppendVarlen(dst []byte, v int64) []byte {
	n := 1
	for {
		// Smallest width whose sign-extended decoding reproduces v.
		shifted := v >> (8*n - 1)
		if shifted == 0 || shifted == -1 {
			break
		}
		n++
	}
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(uint64(v)>>(8*i)))
	}

	return dst
}
