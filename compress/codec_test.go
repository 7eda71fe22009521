package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sensorkit/ide/format"
)

func testPayload() []byte {
	// Repetitive columnar-ish data so every codec actually shrinks it.
	buf := make([]byte, 0, 8192)
	for i := range 1024 {
		buf = append(buf, byte(i), byte(i>>8), 0, 0, byte(i%7), 0, 0, 0)
	}

	return buf
}

func TestCodecRoundTrip(t *testing.T) {
	payload := testPayload()

	types := []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	}

	for _, ct := range types {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.True(t, bytes.Equal(payload, restored))

			if ct != format.CompressionNone {
				require.Less(t, len(compressed), len(payload))
			}
		})
	}
}

func TestCodecEmptyInput(t *testing.T) {
	for _, ct := range []format.CompressionType{
		format.CompressionZstd, format.CompressionS2, format.CompressionLZ4,
	} {
		codec, err := GetCodec(ct)
		require.NoError(t, err)

		compressed, err := codec.Compress(nil)
		require.NoError(t, err)
		require.Nil(t, compressed)

		restored, err := codec.Decompress(nil)
		require.NoError(t, err)
		require.Nil(t, restored)
	}
}

func TestCreateCodecInvalid(t *testing.T) {
	_, err := CreateCodec(format.CompressionType(0x9), "section")
	require.Error(t, err)

	_, err = GetCodec(format.CompressionType(0x9))
	require.Error(t, err)
}

func TestDecompressCorrupted(t *testing.T) {
	codec, err := GetCodec(format.CompressionZstd)
	require.NoError(t, err)

	_, err = codec.Decompress([]byte{0x01, 0x02, 0x03, 0x04})
	require.Error(t, err)
}
