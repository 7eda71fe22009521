package ebml

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sensorkit/ide/errs"
)

func TestDecodeID(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		id    uint64
		width int
	}{
		{name: "one byte", input: []byte{0x81}, id: 0x81, width: 1},
		{name: "one byte high", input: []byte{0xEC}, id: 0xEC, width: 1},
		{name: "two bytes", input: []byte{0x5A, 0x21}, id: 0x5A21, width: 2},
		{name: "three bytes", input: []byte{0x3C, 0xB9, 0x23}, id: 0x3CB923, width: 3},
		{name: "four bytes", input: []byte{0x1A, 0x45, 0xDF, 0xA3}, id: 0x1A45DFA3, width: 4},
		{name: "trailing bytes ignored", input: []byte{0x81, 0xFF, 0xFF}, id: 0x81, width: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, w, err := DecodeID(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.id, id)
			require.Equal(t, tt.width, w)
		})
	}
}

func TestDecodeIDErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{name: "empty", input: nil, want: errs.ErrTruncatedElement},
		{name: "width five", input: []byte{0x08, 0x00, 0x00, 0x00, 0x01}, want: errs.ErrInvalidVarInt},
		{name: "zero byte", input: []byte{0x00}, want: errs.ErrInvalidVarInt},
		{name: "short for declared width", input: []byte{0x1A, 0x45}, want: errs.ErrTruncatedElement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeID(tt.input)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeSize(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		size  int64
		width int
	}{
		{name: "one byte zero", input: []byte{0x80}, size: 0, width: 1},
		{name: "one byte max", input: []byte{0xFE}, size: 126, width: 1},
		{name: "two bytes", input: []byte{0x41, 0x23}, size: 0x123, width: 2},
		{name: "two bytes small value", input: []byte{0x40, 0x02}, size: 2, width: 2},
		{name: "eight bytes", input: []byte{0x01, 0, 0, 0, 0, 0, 0x30, 0x39}, size: 12345, width: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, w, err := DecodeSize(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.size, size)
			require.Equal(t, tt.width, w)
		})
	}
}

func TestDecodeSizeUnknown(t *testing.T) {
	// Every width has one reserved all-ones pattern.
	tests := [][]byte{
		{0xFF},
		{0x7F, 0xFF},
		{0x3F, 0xFF, 0xFF},
		{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}

	for _, input := range tests {
		size, w, err := DecodeSize(input)
		require.NoError(t, err)
		require.Equal(t, SizeUnknown, size)
		require.Equal(t, len(input), w)
	}
}

func TestDecodeSizeErrors(t *testing.T) {
	_, _, err := DecodeSize(nil)
	require.ErrorIs(t, err, errs.ErrTruncatedElement)

	_, _, err = DecodeSize([]byte{0x00, 0x01})
	require.ErrorIs(t, err, errs.ErrInvalidVarInt)

	_, _, err = DecodeSize([]byte{0x41})
	require.ErrorIs(t, err, errs.ErrTruncatedElement)
}

func TestAppendSizeRoundTrip(t *testing.T) {
	values := []int64{0, 1, 126, 127, 128, 0x123, 16382, 16383, 1 << 20, 1<<35 + 17}

	for _, v := range values {
		buf := AppendSize(nil, v, 0)
		require.Equal(t, SizeWidth(v), len(buf))

		got, w, err := DecodeSize(buf)
		require.NoError(t, err)
		require.Equal(t, v, got, "value %d", v)
		require.Equal(t, len(buf), w)
	}
}

func TestAppendSizeForcedWidth(t *testing.T) {
	// Rewriting a reserved placeholder must keep the original width even
	// when the final value fits in fewer bytes.
	buf := AppendSize(nil, 5, 8)
	require.Len(t, buf, 8)

	got, w, err := DecodeSize(buf)
	require.NoError(t, err)
	require.Equal(t, int64(5), got)
	require.Equal(t, 8, w)
}

func TestAppendSizeUnknown(t *testing.T) {
	buf := AppendSize(nil, SizeUnknown, 0)
	require.Equal(t, []byte{0xFF}, buf)

	buf = AppendSize(nil, SizeUnknown, 3)
	require.Equal(t, []byte{0x3F, 0xFF, 0xFF}, buf)

	got, _, err := DecodeSize(buf)
	require.NoError(t, err)
	require.Equal(t, SizeUnknown, got)
}

func TestAppendIDRoundTrip(t *testing.T) {
	ids := []uint64{0x81, 0xEC, 0x5A21, 0x1A45DFA3}

	for _, id := range ids {
		buf := AppendID(nil, id)
		require.Equal(t, IDWidth(id), len(buf))

		got, w, err := DecodeID(buf)
		require.NoError(t, err)
		require.Equal(t, id, got)
		require.Equal(t, len(buf), w)
	}
}

func TestSizeWidthBoundaries(t *testing.T) {
	// 2^(7w)-1 is reserved per width, so the boundary value promotes.
	require.Equal(t, 1, SizeWidth(126))
	require.Equal(t, 2, SizeWidth(127))
	require.Equal(t, 2, SizeWidth(16382))
	require.Equal(t, 3, SizeWidth(16383))
}
