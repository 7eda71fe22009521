package dataset

import (
	"sort"
)

// DataBlock is one index entry: the position and time range of a contiguous
// run of samples for a channel. Payload bytes are referenced, never copied,
// until a decode is requested.
type DataBlock struct {
	Channel     uint64
	Offset      int64 // payload byte offset in the source
	Length      int64 // payload byte length
	SampleCount int
	StartTime   int64 // microseconds, inclusive
	EndTime     int64 // microseconds, exclusive

	// first is the cumulative sample index of the block's first sample
	// within the channel.
	first int
}

// BlockIndex is a channel's ordered, append-only block list. It is built by
// one linear scan over the document's root data elements and extended in
// place when the source grows; entries are never rewritten.
type BlockIndex struct {
	channel uint64
	blocks  []DataBlock
	total   int

	// nextOffset is the root-element offset where the next scan resumes.
	nextOffset int64
}

// Len returns the number of indexed blocks.
func (x *BlockIndex) Len() int { return len(x.blocks) }

// Samples returns the total sample count across all indexed blocks.
func (x *BlockIndex) Samples() int { return x.total }

// Blocks returns the index entries. The returned slice is the index's own
// backing array; callers must treat it as read-only.
func (x *BlockIndex) Blocks() []DataBlock { return x.blocks }

// Block returns the i-th index entry.
func (x *BlockIndex) Block(i int) DataBlock { return x.blocks[i] }

// append adds a block, assigning its cumulative first-sample position.
func (x *BlockIndex) append(b DataBlock) {
	b.first = x.total
	x.blocks = append(x.blocks, b)
	x.total += b.SampleCount
}

// Search returns the position of the block whose time range could contain
// t: the last block with StartTime <= t. Block ranges are half-open
// [StartTime, EndTime), so a query landing exactly on a shared boundary
// resolves unambiguously to the block that starts there. Returns 0 for t
// before the first block and Len()-1 for t past the last; ok is false only
// when the index is empty.
func (x *BlockIndex) Search(t int64) (int, bool) {
	if len(x.blocks) == 0 {
		return 0, false
	}

	// First block starting after t, minus one.
	i := sort.Search(len(x.blocks), func(i int) bool {
		return x.blocks[i].StartTime > t
	})
	if i == 0 {
		return 0, true
	}

	return i - 1, true
}

// locate returns the block containing the cumulative sample index i and the
// sample's position within that block.
func (x *BlockIndex) locate(i int) (int, int, bool) {
	if i < 0 || i >= x.total {
		return 0, 0, false
	}

	b := sort.Search(len(x.blocks), func(b int) bool {
		return x.blocks[b].first > i
	}) - 1

	return b, i - x.blocks[b].first, true
}
