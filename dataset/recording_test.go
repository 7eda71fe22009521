package dataset

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sensorkit/ide/ebml"
	"github.com/sensorkit/ide/format"
)

// Element IDs mirrored from schema.yaml.
const (
	idEBML        = 0x1A45DFA3
	idDocType     = 0x4282
	idRecProps    = 0x5A10
	idTimeBase    = 0x5A50
	idRecName     = 0x5A51
	idRecSerial   = 0x5A52
	idChanList    = 0x5A20
	idChannel     = 0x5A21
	idChanID      = 0x5A22
	idChanName    = 0x5A23
	idSamplePer   = 0x5A24
	idChanFlags   = 0x5A25
	idSubChan     = 0x5A30
	idSubID       = 0x5A31
	idSubName     = 0x5A32
	idSubUnits    = 0x5A33
	idFieldType   = 0x5A34
	idCalRef      = 0x5A35
	idCalList     = 0x5B00
	idUniPoly     = 0x5B10
	idBiPoly      = 0x5B20
	idComboPoly   = 0x5B30
	idCalID       = 0x5B01
	idCoef        = 0x5B02
	idCalRefValue = 0x5B03
	idBiChanRef   = 0x5B21
	idBiSubRef    = 0x5B22
	idCalIDRef    = 0x5B31
	idDataBlock   = 0xA1
	idBlockChan   = 0xB0
	idBlockStart  = 0xB1
	idBlockEnd    = 0xB2
	idBlockCount  = 0xB3
	idBlockData   = 0xB5
)

type testSub struct {
	id  uint64
	ft  format.FieldType
	cal uint64
}

type testChannel struct {
	id     uint64
	name   string
	period uint64
	flags  uint64
	subs   []testSub
}

func appendHeader(buf []byte) []byte {
	return ebml.AppendMaster(buf, idEBML, func(p []byte) []byte {
		return ebml.AppendStringElement(p, idDocType, "ide")
	})
}

func appendChannelList(buf []byte, chans ...testChannel) []byte {
	return ebml.AppendMaster(buf, idChanList, func(p []byte) []byte {
		for _, ch := range chans {
			p = ebml.AppendMaster(p, idChannel, func(q []byte) []byte {
				q = ebml.AppendUintElement(q, idChanID, ch.id)
				q = ebml.AppendStringElement(q, idChanName, ch.name)
				q = ebml.AppendUintElement(q, idSamplePer, ch.period)
				q = ebml.AppendUintElement(q, idChanFlags, ch.flags)
				for _, sub := range ch.subs {
					q = ebml.AppendMaster(q, idSubChan, func(s []byte) []byte {
						s = ebml.AppendUintElement(s, idSubID, sub.id)
						s = ebml.AppendUintElement(s, idFieldType, uint64(sub.ft))
						if sub.cal != 0 {
							s = ebml.AppendUintElement(s, idCalRef, sub.cal)
						}
						return s
					})
				}
				return q
			})
		}
		return p
	})
}

type testBlock struct {
	channel    uint64
	start, end uint64
	count      uint64 // 0 omits the SampleCount element
	payload    []byte
}

func appendBlock(buf []byte, blk testBlock) []byte {
	return ebml.AppendMaster(buf, idDataBlock, func(p []byte) []byte {
		p = ebml.AppendUintElement(p, idBlockChan, blk.channel)
		p = ebml.AppendUintElement(p, idBlockStart, blk.start)
		p = ebml.AppendUintElement(p, idBlockEnd, blk.end)
		if blk.count != 0 {
			p = ebml.AppendUintElement(p, idBlockCount, blk.count)
		}
		return ebml.AppendElement(p, idBlockData, blk.payload)
	})
}

// int16Payload packs values as big-endian int16 samples.
func int16Payload(values ...int) []byte {
	buf := make([]byte, 0, 2*len(values))
	for _, v := range values {
		buf = append(buf, byte(uint16(v)>>8), byte(uint16(v)))
	}

	return buf
}

func openRecording(t *testing.T, stream []byte, opts ...Option) *Recording {
	t.Helper()

	r, err := Open(bytes.NewReader(stream), int64(len(stream)), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r
}

// scenarioStream builds the canonical fixture: channel 0 with one int16
// subchannel at 100 Hz, gain calibration 0.001, two 8-sample blocks starting
// at 0 ms and 80 ms.
func scenarioStream() ([]byte, []int) {
	raw := []int{100, 200, 300, 400, 500, 600, 700, 800,
		900, 1000, 1100, 1200, 1300, 1400, 1500, 1600}

	var buf []byte
	buf = appendHeader(buf)
	buf = ebml.AppendMaster(buf, idRecProps, func(p []byte) []byte {
		p = ebml.AppendStringElement(p, idRecName, "SSX12345")
		p = ebml.AppendStringElement(p, idRecSerial, "XKL0042")
		return ebml.AppendDateElement(p, idTimeBase, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	})
	buf = appendChannelList(buf, testChannel{
		id: 0, name: "accel", period: 10_000,
		subs: []testSub{{id: 0, ft: format.FieldInt16, cal: 1}},
	})
	buf = ebml.AppendMaster(buf, idCalList, func(p []byte) []byte {
		return ebml.AppendMaster(p, idUniPoly, func(q []byte) []byte {
			q = ebml.AppendUintElement(q, idCalID, 1)
			q = ebml.AppendFloatElement(q, idCoef, 0.0)
			return ebml.AppendFloatElement(q, idCoef, 0.001)
		})
	})
	buf = appendBlock(buf, testBlock{
		channel: 0, start: 0, end: 80_000, count: 8,
		payload: int16Payload(raw[:8]...),
	})
	buf = appendBlock(buf, testBlock{
		channel: 0, start: 80_000, end: 160_000, count: 8,
		payload: int16Payload(raw[8:]...),
	})

	return buf, raw
}

func TestOpenMetadata(t *testing.T) {
	stream, _ := scenarioStream()
	r := openRecording(t, stream)

	require.Equal(t, "SSX12345", r.Meta().RecorderName)
	require.Equal(t, "XKL0042", r.Meta().RecorderSerial)
	require.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), r.Meta().TimeBaseUTC)

	require.Len(t, r.Channels(), 1)
	c, err := r.Channel(0)
	require.NoError(t, err)
	require.Equal(t, "accel", c.Name)
	require.Equal(t, int64(10_000), c.SamplePeriod)
	require.False(t, c.ExplicitTimes)
	require.Len(t, c.Subs, 1)
	require.Equal(t, format.FieldInt16, c.Subs[0].FieldType)
	require.Equal(t, uint64(1), c.Subs[0].CalibrationID)

	_, err = r.Channel(99)
	require.Error(t, err)
}

func TestScenarioTwoBlocks100Hz(t *testing.T) {
	stream, raw := scenarioStream()
	r := openRecording(t, stream)

	c, err := r.Channel(0)
	require.NoError(t, err)
	arr, err := c.Events(0)
	require.NoError(t, err)

	n, err := arr.Len()
	require.NoError(t, err)
	require.Equal(t, 16, n)

	for k := range 16 {
		ev, err := arr.At(k)
		require.NoError(t, err)
		require.Equal(t, int64(k)*10_000, ev.Time, "sample %d", k)
		require.InDelta(t, float64(raw[k])*0.001, ev.Value, 1e-12, "sample %d", k)
	}

	first, last, err := arr.Interval()
	require.NoError(t, err)
	require.Equal(t, int64(0), first)
	require.Equal(t, int64(150_000), last)

	times, values, err := arr.SliceTime(0, 150_000)
	require.NoError(t, err)
	require.Len(t, values, 16)
	require.Equal(t, int64(0), times[0])
	require.Equal(t, int64(150_000), times[15])

	require.Empty(t, c.Warnings())
	require.Empty(t, r.Warnings())
}

func TestEventArrayAccess(t *testing.T) {
	stream, raw := scenarioStream()
	r := openRecording(t, stream)
	c, _ := r.Channel(0)
	arr, err := c.Events(0)
	require.NoError(t, err)

	// Nearest-match time access; equidistant resolves to the earlier sample.
	ev, err := arr.AtTime(52_000)
	require.NoError(t, err)
	require.Equal(t, int64(50_000), ev.Time)

	ev, err = arr.AtTime(55_000)
	require.NoError(t, err)
	require.Equal(t, int64(50_000), ev.Time)

	ev, err = arr.AtTime(56_000)
	require.NoError(t, err)
	require.Equal(t, int64(60_000), ev.Time)

	// Before the first and past the last sample clamp to the ends.
	ev, err = arr.AtTime(-5)
	require.NoError(t, err)
	require.Equal(t, int64(0), ev.Time)

	ev, err = arr.AtTime(1_000_000)
	require.NoError(t, err)
	require.Equal(t, int64(150_000), ev.Time)

	// Position slicing spans block boundaries.
	times, values, err := arr.Slice(6, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{60_000, 70_000, 80_000, 90_000}, times)
	require.Len(t, values, 4)

	_, _, err = arr.Slice(0, 17)
	require.Error(t, err)
	_, err = arr.At(16)
	require.Error(t, err)
	_, err = arr.At(-1)
	require.Error(t, err)

	// Time slicing is inclusive on both ends.
	times, _, err = arr.SliceTime(70_000, 80_000)
	require.NoError(t, err)
	require.Equal(t, []int64{70_000, 80_000}, times)

	// Iterator yields everything ascending and restarts cleanly.
	for range 2 {
		var got []float64
		for ev, err := range arr.All() {
			require.NoError(t, err)
			got = append(got, ev.Value)
		}
		require.Len(t, got, 16)
		require.InDelta(t, float64(raw[0])*0.001, got[0], 1e-12)
	}

	lo, hi, err := arr.MinMax(0, 16)
	require.NoError(t, err)
	require.InDelta(t, 0.1, lo, 1e-12)
	require.InDelta(t, 1.6, hi, 1e-12)
}

func TestIndexIdempotentAndGrowth(t *testing.T) {
	stream, _ := scenarioStream()
	full := make([]byte, len(stream))
	copy(full, stream)

	r := openRecording(t, full)
	c, _ := r.Channel(0)

	idx1, err := c.Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, idx1.Len())
	blocks1 := append([]DataBlock{}, idx1.Blocks()...)

	// A second scan of a non-growing document changes nothing.
	idx2, err := c.Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, blocks1, idx2.Blocks())

	// Growth: reopen with a truncated view, then extend.
	grown := appendBlock(nil, testBlock{
		channel: 0, start: 160_000, end: 240_000, count: 8,
		payload: int16Payload(1, 2, 3, 4, 5, 6, 7, 8),
	})
	combined := append(append([]byte{}, full...), grown...)

	r2, err := Open(bytes.NewReader(combined), int64(len(full)))
	require.NoError(t, err)
	defer r2.Close()

	c2, _ := r2.Channel(0)
	idx, err := c2.Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	require.NoError(t, r2.Refresh())
	idx, err = c2.Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())
	require.Equal(t, blocks1, idx.Blocks()[:2], "growth only appends")
	require.Equal(t, 24, idx.Samples())
}

func TestCorruptMiddleBlockIsolated(t *testing.T) {
	var buf []byte
	buf = appendHeader(buf)
	buf = appendChannelList(buf, testChannel{
		id: 0, name: "accel", period: 10_000,
		subs: []testSub{{id: 0, ft: format.FieldInt16}},
	})
	buf = appendBlock(buf, testBlock{
		channel: 0, start: 0, end: 80_000,
		payload: int16Payload(1, 2, 3, 4, 5, 6, 7, 8),
	})
	// Middle block: 5 bytes is not a multiple of the 2-byte stride.
	buf = appendBlock(buf, testBlock{
		channel: 0, start: 80_000, end: 160_000,
		payload: []byte{1, 2, 3, 4, 5},
	})
	buf = appendBlock(buf, testBlock{
		channel: 0, start: 160_000, end: 240_000,
		payload: int16Payload(9, 10, 11, 12, 13, 14, 15, 16),
	})

	r := openRecording(t, buf)
	c, _ := r.Channel(0)
	arr, err := c.Events(0)
	require.NoError(t, err)

	n, err := arr.Len()
	require.NoError(t, err)
	require.Equal(t, 16, n, "neighbors of the corrupt block stay decodable")

	ev, err := arr.At(8)
	require.NoError(t, err)
	require.Equal(t, int64(160_000), ev.Time)
	require.Equal(t, 9.0, ev.Value)

	require.Len(t, c.Warnings(), 1, "exactly one warning for the corrupt block")
	require.Contains(t, c.Warnings()[0], "stride")

	// Re-scanning and re-reading must not duplicate the warning.
	_, err = arr.Len()
	require.NoError(t, err)
	require.Len(t, c.Warnings(), 1)
}

func TestScanCancellation(t *testing.T) {
	stream, _ := scenarioStream()
	r := openRecording(t, stream)
	c, _ := r.Channel(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Index(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// A live context succeeds afterwards.
	idx, err := c.Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())
}

func TestResynchronization(t *testing.T) {
	stream, _ := scenarioStream()

	// Splice garbage between the two data blocks: 0x00 can never start a
	// valid element id.
	idx := bytes.LastIndex(stream, []byte{0xA1})
	require.Positive(t, idx)
	var buf []byte
	buf = append(buf, stream[:idx]...)
	buf = append(buf, 0x00, 0x00, 0x00)
	buf = append(buf, stream[idx:]...)

	r := openRecording(t, buf)
	c, _ := r.Channel(0)

	index, err := c.Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, index.Len(), "scan resynchronizes past the corrupt region")

	require.NotEmpty(t, r.Warnings())
}
