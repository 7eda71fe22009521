package format

type (
	// FieldType identifies the on-disk encoding of one interleaved sample
	// field inside a channel data block payload. All multi-byte fields are
	// big-endian, matching the element codec.
	FieldType uint8

	// CompressionType identifies the compression applied to exported
	// snapshot sections.
	CompressionType uint8
)

const (
	FieldInt8    FieldType = 0x01
	FieldUint8   FieldType = 0x02
	FieldInt16   FieldType = 0x03
	FieldUint16  FieldType = 0x04
	FieldInt24   FieldType = 0x05
	FieldUint24  FieldType = 0x06
	FieldInt32   FieldType = 0x07
	FieldUint32  FieldType = 0x08
	FieldFloat32 FieldType = 0x09
	FieldFloat64 FieldType = 0x0A

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

// Size returns the encoded width of the field in bytes, or 0 for an
// unrecognized field type.
func (f FieldType) Size() int {
	switch f {
	case FieldInt8, FieldUint8:
		return 1
	case FieldInt16, FieldUint16:
		return 2
	case FieldInt24, FieldUint24:
		return 3
	case FieldInt32, FieldUint32, FieldFloat32:
		return 4
	case FieldFloat64:
		return 8
	default:
		return 0
	}
}

// Signed reports whether the field decodes with sign extension.
func (f FieldType) Signed() bool {
	switch f {
	case FieldInt8, FieldInt16, FieldInt24, FieldInt32:
		return true
	default:
		return false
	}
}

// Valid reports whether f is one of the declared field types.
func (f FieldType) Valid() bool {
	return f.Size() != 0
}

func (f FieldType) String() string {
	switch f {
	case FieldInt8:
		return "Int8"
	case FieldUint8:
		return "Uint8"
	case FieldInt16:
		return "Int16"
	case FieldUint16:
		return "Uint16"
	case FieldInt24:
		return "Int24"
	case FieldUint24:
		return "Uint24"
	case FieldInt32:
		return "Int32"
	case FieldUint32:
		return "Uint32"
	case FieldFloat32:
		return "Float32"
	case FieldFloat64:
		return "Float64"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}
