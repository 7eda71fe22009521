package dataset

import (
	"context"
	"fmt"

	"github.com/sensorkit/ide/calib"
	"github.com/sensorkit/ide/errs"
	"github.com/sensorkit/ide/format"
)

// Channel flag bits.
const (
	// flagExplicitTimes marks a channel whose sample tuples each begin with
	// an explicit 32-bit time offset instead of deriving timestamps from the
	// block time range.
	flagExplicitTimes = 1 << 0
)

// Channel is one logical sensor signal: an ordered set of subchannels
// sampled together, stored as interleaved tuples in data blocks.
//
// A Channel lazily owns its block index and decode cache; see the package
// documentation for the concurrency rules.
type Channel struct {
	rec *Recording

	ID            uint64
	Name          string
	SamplePeriod  int64 // microseconds between samples; informational for fixed-rate channels
	ExplicitTimes bool
	Subs          []*SubChannel

	index    *BlockIndex
	cache    *blockCache
	warnings []string
	// warned tracks block offsets already reported, so a re-decoded block
	// never duplicates its warning.
	warned map[int64]bool
}

// SubChannel is one measured component within a channel's sample tuple.
type SubChannel struct {
	Index         int
	ID            uint64
	Name          string
	Units         string
	FieldType     format.FieldType
	CalibrationID uint64

	transform calib.Transform
}

// stride returns the byte width of one interleaved sample tuple.
func (c *Channel) stride() int {
	n := 0
	if c.ExplicitTimes {
		n += 4
	}
	for _, sub := range c.Subs {
		n += sub.FieldType.Size()
	}

	return n
}

// Index returns the channel's block index, building it on first call and
// extending it if the document has grown since the last scan. The context is
// checked between blocks, so a long scan over a large file can be cancelled
// cooperatively.
func (c *Channel) Index(ctx context.Context) (*BlockIndex, error) {
	if err := c.rec.scanBlocks(ctx, c); err != nil {
		return nil, err
	}

	return c.index, nil
}

// Events returns the calibrated time-series view of one subchannel,
// identified by its position in the sample tuple.
func (c *Channel) Events(subIndex int) (*EventArray, error) {
	if subIndex < 0 || subIndex >= len(c.Subs) {
		return nil, fmt.Errorf("%w: channel %d has no subchannel %d",
			errs.ErrUnknownChannel, c.ID, subIndex)
	}

	return &EventArray{ch: c, sub: subIndex, calibrated: true}, nil
}

// RawEvents is Events without calibration applied; cross-channel reference
// lookups read through this view.
func (c *Channel) RawEvents(subIndex int) (*EventArray, error) {
	if subIndex < 0 || subIndex >= len(c.Subs) {
		return nil, fmt.Errorf("%w: channel %d has no subchannel %d",
			errs.ErrUnknownChannel, c.ID, subIndex)
	}

	return &EventArray{ch: c, sub: subIndex}, nil
}

// Warnings returns the channel's accumulated non-fatal decode warnings, in
// the order they were recorded.
func (c *Channel) Warnings() []string { return c.warnings }

func (c *Channel) warn(msgf string, args ...any) {
	msg := fmt.Sprintf(msgf, args...)
	c.warnings = append(c.warnings, msg)
	c.rec.logger.Warn(msg)
}

// warnBlock records a warning for a block at most once, keyed by offset.
func (c *Channel) warnBlock(offset int64, msgf string, args ...any) {
	if c.warned[offset] {
		return
	}
	c.warned[offset] = true
	msg := fmt.Sprintf(msgf, args...)
	c.warnings = append(c.warnings, msg)
	c.rec.logger.Warn(msg)
}
