package endian

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sensorkit/ide/errs"
)

func TestGetEngines(t *testing.T) {
	require.Equal(t, binary.LittleEndian, GetLittleEndianEngine())
	require.Equal(t, binary.BigEndian, GetBigEndianEngine())

	// Engines must serve both the read and append call sites.
	var _ EndianEngine = GetLittleEndianEngine()
	var _ EndianEngine = GetBigEndianEngine()
}

func TestUvarlen(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint64
	}{
		{name: "empty", input: nil, want: 0},
		{name: "one byte", input: []byte{0x2A}, want: 42},
		{name: "one byte high bit", input: []byte{0xFF}, want: 255},
		{name: "two bytes", input: []byte{0x01, 0x00}, want: 256},
		{name: "three bytes", input: []byte{0x01, 0x38, 0x80}, want: 80000},
		{name: "eight bytes max", input: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, want: math.MaxUint64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Uvarlen(tt.input))
		})
	}
}

func TestVarlenSignExtension(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  int64
	}{
		{name: "empty", input: nil, want: 0},
		{name: "positive one byte", input: []byte{0x7F}, want: 127},
		{name: "minus one, one byte", input: []byte{0xFF}, want: -1},
		{name: "min one byte", input: []byte{0x80}, want: -128},
		{name: "positive two bytes", input: []byte{0x01, 0x00}, want: 256},
		{name: "negative two bytes", input: []byte{0xFF, 0x7F}, want: -129},
		{name: "high bit not sign in wider value", input: []byte{0x00, 0x80}, want: 128},
		{name: "minus one, eight bytes", input: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, want: -1},
		{name: "min int64", input: []byte{0x80, 0, 0, 0, 0, 0, 0, 0}, want: math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Varlen(tt.input))
		})
	}
}

func TestFloatlenWidths(t *testing.T) {
	v, err := Floatlen(nil)
	require.NoError(t, err)
	require.Equal(t, 0.0, v)

	buf := binary.BigEndian.AppendUint32(nil, math.Float32bits(1.5))
	v, err = Floatlen(buf)
	require.NoError(t, err)
	require.Equal(t, 1.5, v)

	buf = binary.BigEndian.AppendUint64(nil, math.Float64bits(-0.125))
	v, err = Floatlen(buf)
	require.NoError(t, err)
	require.Equal(t, -0.125, v)

	for _, n := range []int{1, 2, 3, 5, 7, 9} {
		_, err = Floatlen(make([]byte, n))
		require.ErrorIs(t, err, errs.ErrTruncatedElement, "width %d", n)
	}
}

func TestUvarlenSize(t *testing.T) {
	require.Equal(t, 1, UvarlenSize(0))
	require.Equal(t, 1, UvarlenSize(255))
	require.Equal(t, 2, UvarlenSize(256))
	require.Equal(t, 2, UvarlenSize(65535))
	require.Equal(t, 3, UvarlenSize(65536))
	require.Equal(t, 8, UvarlenSize(math.MaxUint64))
}

func TestAppendUvarlenRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 255, 256, 80000, 1 << 32, math.MaxUint64}

	for _, v := range values {
		buf := AppendUvarlen(nil, v)
		require.Len(t, buf, UvarlenSize(v), "value %d", v)
		require.Equal(t, v, Uvarlen(buf), "value %d", v)
	}
}

func TestAppendVarlenRoundTrip(t *testing.T) {
	tests := []struct {
		value int64
		width int
	}{
		{value: 0, width: 1},
		{value: 127, width: 1},
		{value: 128, width: 2}, // one byte would sign-extend to -128
		{value: -1, width: 1},
		{value: -128, width: 1},
		{value: -129, width: 2},
		{value: 32767, width: 2},
		{value: 32768, width: 3},
		{value: math.MaxInt64, width: 8},
		{value: math.MinInt64, width: 8},
	}

	for _, tt := range tests {
		buf := AppendVarlen(nil, tt.value)
		require.Len(t, buf, tt.width, "value %d", tt.value)
		require.Equal(t, tt.value, Varlen(buf), "value %d", tt.value)
	}
}

func TestAppendFloat64RoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1.5, -0.125, math.Pi, math.MaxFloat64} {
		buf := AppendFloat64(nil, v)
		require.Len(t, buf, 8)

		got, err := Floatlen(buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}
