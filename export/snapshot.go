// Package export serializes calibrated event-array windows into compact
// columnar snapshots: a fixed header followed by a timestamp run and one
// value run per subchannel, with selectable compression. Snapshots are a
// library-level interchange helper for downstream tooling; they are
// self-describing and decode without the originating recording.
package export

import (
	"bytes"
	"fmt"
	"math"

	"github.com/sensorkit/ide/compress"
	"github.com/sensorkit/ide/dataset"
	"github.com/sensorkit/ide/endian"
	"github.com/sensorkit/ide/errs"
	"github.com/sensorkit/ide/format"
	"github.com/sensorkit/ide/internal/pool"
)

// Snapshot wire layout: header below, little-endian, then the body
// (timestamps as int64, then each subchannel's values as float64 bits),
// compressed per the header's compression tag.
const (
	snapshotVersion = 1
	headerSize      = 4 + 1 + 1 + 2 + 8 + 4 + 8 + 8
)

var magic = [4]byte{'I', 'D', 'S', 'N'}

// Snapshot is a decoded columnar export: one window of aligned samples for
// every subchannel of a channel.
type Snapshot struct {
	ChannelID uint64
	StartTime int64 // microseconds, first sample
	EndTime   int64 // microseconds, last sample
	Times     []int64
	Values    [][]float64 // one column per subchannel
}

// Encode serializes one aligned sample window. Every column in values must
// have the same length as times.
func Encode(channelID uint64, times []int64, values [][]float64,
	comp format.CompressionType) ([]byte, error) {
	for s, col := range values {
		if len(col) != len(times) {
			return nil, fmt.Errorf("%w: column %d has %d values for %d timestamps",
				errs.ErrInvalidSnapshot, s, len(col), len(times))
		}
	}
	if len(values) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d subchannels", errs.ErrInvalidSnapshot, len(values))
	}
	if len(times) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d samples", errs.ErrInvalidSnapshot, len(times))
	}

	codec, err := compress.CreateCodec(comp, "snapshot")
	if err != nil {
		return nil, err
	}

	engine := endian.GetLittleEndianEngine()

	body := pool.GetByteBuffer()
	defer pool.PutByteBuffer(body)
	for _, t := range times {
		body.B = engine.AppendUint64(body.B, uint64(t)) //nolint: gosec
	}
	for _, col := range values {
		for _, v := range col {
			body.B = engine.AppendUint64(body.B, math.Float64bits(v))
		}
	}

	compressed, err := codec.Compress(body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compressing snapshot body: %w", err)
	}

	var start, end int64
	if len(times) > 0 {
		start, end = times[0], times[len(times)-1]
	}

	out := make([]byte, 0, headerSize+len(compressed))
	out = append(out, magic[:]...)
	out = append(out, snapshotVersion, byte(comp))
	out = engine.AppendUint16(out, uint16(len(values))) //nolint: gosec
	out = engine.AppendUint64(out, channelID)
	out = engine.AppendUint32(out, uint32(len(times))) //nolint: gosec
	out = engine.AppendUint64(out, uint64(start))      //nolint: gosec
	out = engine.AppendUint64(out, uint64(end))        //nolint: gosec

	return append(out, compressed...), nil
}

// Capture encodes the window [t0, t1] (inclusive) of every subchannel of a
// channel, calibrated.
func Capture(c *dataset.Channel, t0, t1 int64, comp format.CompressionType) ([]byte, error) {
	if len(c.Subs) == 0 {
		return nil, fmt.Errorf("%w: channel %d has no subchannels", errs.ErrInvalidSnapshot, c.ID)
	}

	var times []int64
	values := make([][]float64, len(c.Subs))
	for s := range c.Subs {
		arr, err := c.Events(s)
		if err != nil {
			return nil, err
		}
		ts, vals, err := arr.SliceTime(t0, t1)
		if err != nil {
			return nil, err
		}
		if s == 0 {
			times = ts
		}
		values[s] = vals
	}

	return Encode(c.ID, times, values, comp)
}

// Decode parses snapshot bytes produced by Encode.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", errs.ErrInvalidSnapshot, len(data))
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic", errs.ErrInvalidSnapshot)
	}
	if data[4] != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errs.ErrInvalidSnapshot, data[4])
	}

	comp := format.CompressionType(data[5])
	codec, err := compress.GetCodec(comp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidSnapshot, err)
	}

	engine := endian.GetLittleEndianEngine()
	subs := int(engine.Uint16(data[6:8]))
	channelID := engine.Uint64(data[8:16])
	n := int(engine.Uint32(data[16:20]))
	start := int64(engine.Uint64(data[20:28])) //nolint: gosec
	end := int64(engine.Uint64(data[28:36]))   //nolint: gosec

	body, err := codec.Decompress(data[headerSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidSnapshot, err)
	}
	if want := n * 8 * (1 + subs); len(body) != want {
		return nil, fmt.Errorf("%w: body is %d bytes, layout requires %d",
			errs.ErrInvalidSnapshot, len(body), want)
	}

	snap := &Snapshot{
		ChannelID: channelID,
		StartTime: start,
		EndTime:   end,
		Times:     make([]int64, n),
		Values:    make([][]float64, subs),
	}
	pos := 0
	for i := range snap.Times {
		snap.Times[i] = int64(engine.Uint64(body[pos:])) //nolint: gosec
		pos += 8
	}
	for s := range snap.Values {
		col := make([]float64, n)
		for i := range col {
			col[i] = math.Float64frombits(engine.Uint64(body[pos:]))
			pos += 8
		}
		snap.Values[s] = col
	}

	return snap, nil
}
