package dataset

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/sensorkit/ide/errs"
)

// Event is one calibrated sample: a microsecond timestamp and a value.
type Event struct {
	Time  int64
	Value float64
}

// EventArray is the externally consumed view of one subchannel: a
// time-indexed series of calibrated (or raw) values backed by the channel's
// block index and decode cache.
//
// Access is random by position (At, Slice) or by time (AtTime, SliceTime),
// plus an ascending iterator (All). Position access is O(log blocks) for a
// seek and O(1) amortized sequentially; decoded blocks are cached LRU and
// transparently re-decoded after eviction.
type EventArray struct {
	ch         *Channel
	sub        int
	calibrated bool
}

// Channel returns the owning channel.
func (e *EventArray) Channel() *Channel { return e.ch }

// SubChannel returns the subchannel this array reads.
func (e *EventArray) SubChannel() *SubChannel { return e.ch.Subs[e.sub] }

func (e *EventArray) index() (*BlockIndex, error) {
	return e.ch.Index(context.Background())
}

// values selects the raw or calibrated column of a decoded block.
func (e *EventArray) values(dec *decoded) []float64 {
	if e.calibrated {
		return e.ch.calibrate(dec)[e.sub]
	}

	return dec.raw[e.sub]
}

// Len returns the total number of samples currently indexed.
func (e *EventArray) Len() (int, error) {
	idx, err := e.index()
	if err != nil {
		return 0, err
	}

	return idx.Samples(), nil
}

// Interval returns the timestamps of the first and last indexed samples.
func (e *EventArray) Interval() (int64, int64, error) {
	idx, err := e.index()
	if err != nil {
		return 0, 0, err
	}
	if idx.Samples() == 0 {
		return 0, 0, fmt.Errorf("%w: channel %d is empty", errs.ErrIndexOutOfRange, e.ch.ID)
	}

	first, err := e.At(0)
	if err != nil {
		return 0, 0, err
	}
	last, err := e.At(idx.Samples() - 1)
	if err != nil {
		return 0, 0, err
	}

	return first.Time, last.Time, nil
}

// At returns the sample at position i.
func (e *EventArray) At(i int) (Event, error) {
	idx, err := e.index()
	if err != nil {
		return Event{}, err
	}

	b, off, ok := idx.locate(i)
	if !ok {
		return Event{}, fmt.Errorf("%w: index %d of %d", errs.ErrIndexOutOfRange, i, idx.Samples())
	}

	dec, err := e.ch.decodedBlock(idx.Block(b))
	if err != nil {
		return Event{}, err
	}

	return Event{Time: dec.times[off], Value: e.values(dec)[off]}, nil
}

// AtTime returns the sample nearest to t. A timestamp equidistant between
// two samples resolves to the earlier one.
func (e *EventArray) AtTime(t int64) (Event, error) {
	i, err := e.nearest(t)
	if err != nil {
		return Event{}, err
	}

	return e.At(i)
}

// nearest returns the position of the sample closest in time to t.
func (e *EventArray) nearest(t int64) (int, error) {
	idx, err := e.index()
	if err != nil {
		return 0, err
	}
	if idx.Samples() == 0 {
		return 0, fmt.Errorf("%w: channel %d is empty", errs.ErrIndexOutOfRange, e.ch.ID)
	}

	floor, err := e.floorIndex(idx, t)
	if err != nil {
		return 0, err
	}
	if floor < 0 {
		return 0, nil
	}
	if floor+1 >= idx.Samples() {
		return floor, nil
	}

	before, err := e.At(floor)
	if err != nil {
		return 0, err
	}
	after, err := e.At(floor + 1)
	if err != nil {
		return 0, err
	}
	if after.Time-t < t-before.Time {
		return floor + 1, nil
	}

	return floor, nil
}

// floorIndex returns the position of the last sample with timestamp <= t,
// or -1 when t precedes every sample.
func (e *EventArray) floorIndex(idx *BlockIndex, t int64) (int, error) {
	b, ok := idx.Search(t)
	if !ok {
		return -1, fmt.Errorf("%w: channel %d is empty", errs.ErrIndexOutOfRange, e.ch.ID)
	}

	blk := idx.Block(b)
	dec, err := e.ch.decodedBlock(blk)
	if err != nil {
		return 0, err
	}

	// First sample after t within the block.
	j := sort.Search(len(dec.times), func(i int) bool {
		return dec.times[i] > t
	})

	return blk.first + j - 1, nil
}

// Slice returns the timestamps and values of positions [i, j).
func (e *EventArray) Slice(i, j int) ([]int64, []float64, error) {
	idx, err := e.index()
	if err != nil {
		return nil, nil, err
	}
	if i < 0 || j > idx.Samples() || i > j {
		return nil, nil, fmt.Errorf("%w: slice [%d, %d) of %d",
			errs.ErrIndexOutOfRange, i, j, idx.Samples())
	}

	times := make([]int64, 0, j-i)
	out := make([]float64, 0, j-i)
	for pos := i; pos < j; {
		b, off, _ := idx.locate(pos)
		blk := idx.Block(b)
		dec, err := e.ch.decodedBlock(blk)
		if err != nil {
			return nil, nil, err
		}

		take := min(len(dec.times)-off, j-pos)
		times = append(times, dec.times[off:off+take]...)
		out = append(out, e.values(dec)[off:off+take]...)
		pos += take
	}

	return times, out, nil
}

// SliceTime returns all samples with t0 <= timestamp <= t1.
func (e *EventArray) SliceTime(t0, t1 int64) ([]int64, []float64, error) {
	idx, err := e.index()
	if err != nil {
		return nil, nil, err
	}
	if idx.Samples() == 0 || t1 < t0 {
		return nil, nil, nil
	}

	start, err := e.floorIndex(idx, t0)
	if err != nil {
		return nil, nil, err
	}
	// floorIndex lands on the sample at or before t0; step past it unless it
	// sits exactly on t0.
	if start >= 0 {
		ev, err := e.At(start)
		if err != nil {
			return nil, nil, err
		}
		if ev.Time < t0 {
			start++
		}
	} else {
		start = 0
	}

	end, err := e.floorIndex(idx, t1)
	if err != nil {
		return nil, nil, err
	}
	if end < start {
		return nil, nil, nil
	}

	return e.Slice(start, end+1)
}

// MinMax returns the smallest and largest values in positions [i, j).
func (e *EventArray) MinMax(i, j int) (float64, float64, error) {
	_, vals, err := e.Slice(i, j)
	if err != nil {
		return 0, 0, err
	}
	if len(vals) == 0 {
		return 0, 0, fmt.Errorf("%w: empty range", errs.ErrIndexOutOfRange)
	}

	return floats.Min(vals), floats.Max(vals), nil
}

// All returns a lazy ascending iterator over every sample. Sequential reads
// decode each block once; the iterator is restartable and picks up blocks
// appended by a later index extension on the next run.
func (e *EventArray) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		idx, err := e.index()
		if err != nil {
			yield(Event{}, err)
			return
		}

		for _, blk := range idx.Blocks() {
			dec, err := e.ch.decodedBlock(blk)
			if err != nil {
				yield(Event{}, err)
				return
			}
			vals := e.values(dec)
			for i, ts := range dec.times {
				if !yield(Event{Time: ts, Value: vals[i]}, nil) {
					return
				}
			}
		}
	}
}
