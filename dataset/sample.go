package dataset

import (
	"fmt"
	"math"

	"github.com/sensorkit/ide/endian"
	"github.com/sensorkit/ide/errs"
	"github.com/sensorkit/ide/format"
)

// decodeBlock turns one block's raw payload into per-subchannel value arrays
// plus per-sample microsecond timestamps, sample-aligned across subchannels.
//
// Fixed-rate channels interpolate timestamps linearly across the block's
// half-open time range: sample k of n gets StartTime + k*(EndTime-StartTime)/n.
// Explicit-time channels read a 32-bit offset leading each tuple, relative
// to the block's StartTime; offsets must be non-decreasing.
//
// Errors wrap errs.ErrBlockStride for layout mismatches and
// errs.ErrNonMonotonicTime for backwards explicit timestamps. Both isolate
// the block: the caller records a warning and neighboring blocks stay
// decodable.
func decodeBlock(ch *Channel, blk DataBlock, payload []byte) ([]int64, [][]float64, error) {
	stride := ch.stride()
	if stride == 0 {
		return nil, nil, fmt.Errorf("%w: channel %d declares no sample fields",
			errs.ErrBlockStride, ch.ID)
	}
	if len(payload)%stride != 0 {
		return nil, nil, fmt.Errorf("%w: payload length %d, stride %d",
			errs.ErrBlockStride, len(payload), stride)
	}

	n := len(payload) / stride
	if blk.SampleCount != 0 && blk.SampleCount != n {
		return nil, nil, fmt.Errorf("%w: payload holds %d samples, header declares %d",
			errs.ErrBlockStride, n, blk.SampleCount)
	}

	times := make([]int64, n)
	values := make([][]float64, len(ch.Subs))
	for s := range values {
		values[s] = make([]float64, n)
	}

	span := blk.EndTime - blk.StartTime
	pos := 0
	prev := int64(-1)
	for i := range n {
		if ch.ExplicitTimes {
			off := int64(endian.Uvarlen(payload[pos : pos+4]))
			pos += 4
			t := blk.StartTime + off
			if t < prev {
				return nil, nil, fmt.Errorf("%w: sample %d at %dus after %dus",
					errs.ErrNonMonotonicTime, i, t, prev)
			}
			prev = t
			times[i] = t
		} else {
			times[i] = blk.StartTime + int64(i)*span/int64(n)
		}

		for s, sub := range ch.Subs {
			w := sub.FieldType.Size()
			values[s][i] = decodeField(sub.FieldType, payload[pos:pos+w])
			pos += w
		}
	}

	return times, values, nil
}

// decodeField decodes one big-endian sample field to float64.
func decodeField(ft format.FieldType, b []byte) float64 {
	switch ft {
	case format.FieldFloat32, format.FieldFloat64:
		v, _ := endian.Floatlen(b)
		return v
	default:
		if ft.Signed() {
			return float64(endian.Varlen(b))
		}

		return float64(endian.Uvarlen(b))
	}
}

// fillFailed produces NaN values with interpolated timestamps for a block
// that failed to decode, so sample positions stay aligned with the index
// while the failure stays visible in the data.
func fillFailed(ch *Channel, blk DataBlock) ([]int64, [][]float64) {
	n := blk.SampleCount
	times := make([]int64, n)
	span := blk.EndTime - blk.StartTime
	for i := range n {
		times[i] = blk.StartTime + int64(i)*span/int64(max(n, 1))
	}

	values := make([][]float64, len(ch.Subs))
	nan := math.NaN()
	for s := range values {
		col := make([]float64, n)
		for i := range col {
			col[i] = nan
		}
		values[s] = col
	}

	return times, values
}
