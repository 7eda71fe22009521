package ebml

import (
	"math/bits"

	"github.com/sensorkit/ide/errs"
)

// SizeUnknown is the resolved value of a size varint whose data bits are all
// ones: the element's end is not yet known and must be determined from the
// position of its next same-depth sibling. It is distinct from every finite
// size.
const SizeUnknown int64 = -1

// maxIDWidth bounds element ID varints; the format never emits IDs longer
// than 4 bytes.
const maxIDWidth = 4

// DecodeID decodes an element ID varint from the start of b.
//
// The leading marker bit reveals the total encoded width (1 to 4 bytes).
// Unlike size varints, the marker bits are kept: the ID value is the raw
// big-endian reading of the encoded bytes, so 0x1A45DFA3 round-trips as
// 0x1A45DFA3.
//
// Returns the ID, the number of bytes consumed, and an error. A first byte
// below 0x10 (width > 4) yields errs.ErrInvalidVarInt; a buffer shorter than
// the declared width yields errs.ErrTruncatedElement.
func DecodeID(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, errs.ErrTruncatedElement
	}

	first := b[0]
	if first < 0x10 {
		return 0, 0, errs.ErrInvalidVarInt
	}

	width := bits.LeadingZeros8(first) + 1
	if len(b) < width {
		return 0, 0, errs.ErrTruncatedElement
	}

	var id uint64
	for _, c := range b[:width] {
		id = id<<8 | uint64(c)
	}

	return id, width, nil
}

// DecodeSize decodes an element size varint from the start of b.
//
// The leading marker bit reveals the total encoded width (1 to 8 bytes); the
// marker bits are stripped and the remaining bits concatenated big-endian.
// A payload whose data bits are all ones decodes as SizeUnknown.
//
// Returns the size (or SizeUnknown), the number of bytes consumed, and an
// error. A zero first byte (no marker bit within 8 bytes) yields
// errs.ErrInvalidVarInt.
func DecodeSize(b []byte) (int64, int, error) {
	if len(b) == 0 {
		return 0, 0, errs.ErrTruncatedElement
	}

	first := b[0]
	if first == 0 {
		return 0, 0, errs.ErrInvalidVarInt
	}

	width := bits.LeadingZeros8(first) + 1
	if len(b) < width {
		return 0, 0, errs.ErrTruncatedElement
	}

	v := uint64(first & (0xFF >> width))
	for _, c := range b[1:width] {
		v = v<<8 | uint64(c)
	}

	if v == 1<<(7*width)-1 {
		return SizeUnknown, width, nil
	}

	return int64(v), width, nil //nolint: gosec
}

// IDWidth returns the encoded width in bytes of an element ID. IDs embed
// their own marker bit, so the width is simply the minimal byte count that
// holds the value.
func IDWidth(id uint64) int {
	w := 1
	for id > 0xFF {
		id >>= 8
		w++
	}

	return w
}

// SizeWidth returns the minimal encoded width in bytes for a size value.
// The all-ones pattern of each width is reserved for SizeUnknown, so the
// largest value representable in width w is 2^(7w)-2.
func SizeWidth(v int64) int {
	for w := 1; w <= 8; w++ {
		if uint64(v) <= 1<<(7*w)-2 { //nolint: gosec
			return w
		}
	}

	return 8
}

// AppendID appends the varint encoding of an element ID to dst. The ID
// already carries its marker bits, so its bytes are emitted verbatim.
func AppendID(dst []byte, id uint64) []byte {
	w := IDWidth(id)
	for i := w - 1; i >= 0; i-- {
		dst = append(dst, byte(id>>(8*i)))
	}

	return dst
}

// AppendSize appends the varint encoding of a size to dst.
//
// A width of 0 selects the minimal encoding. A non-zero width forces that
// many bytes, which is needed to rewrite a previously reserved placeholder
// in place without moving the payload behind it. Passing SizeUnknown emits
// the reserved all-ones pattern of the requested width (1 byte if width is
// 0).
func AppendSize(dst []byte, v int64, width int) []byte {
	if v == SizeUnknown {
		if width == 0 {
			width = 1
		}
		dst = append(dst, 0xFF>>(width-1))
		for i := 1; i < width; i++ {
			dst = append(dst, 0xFF)
		}

		return dst
	}

	if width == 0 {
		width = SizeWidth(v)
	}

	encoded := uint64(v) | 1<<(7*width) //nolint: gosec
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, byte(encoded>>(8*i)))
	}

	return dst
}
