// Package pool provides the reusable append buffer behind snapshot encoding.
// Snapshot bodies are assembled in one pass and discarded after compression,
// which is the shape sync.Pool serves well; decoded block arrays, by
// contrast, live in the channel LRU cache and are never pooled.
package pool

import "sync"

const (
	// SnapshotBufferDefaultSize matches a typical uncompressed snapshot body
	// (a few thousand samples across a handful of subchannels).
	SnapshotBufferDefaultSize = 64 * 1024

	// snapshotBufferMaxThreshold caps what the pool retains; oversized
	// buffers from huge exports are dropped instead of pinned.
	snapshotBufferMaxThreshold = 4 * 1024 * 1024
)

// ByteBuffer is a reusable append buffer for assembling snapshot sections.
type ByteBuffer struct {
	B []byte
}

// Reset empties the buffer, keeping its capacity.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

var byteBufferPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{B: make([]byte, 0, SnapshotBufferDefaultSize)}
	},
}

// GetByteBuffer retrieves an empty buffer from the pool.
func GetByteBuffer() *ByteBuffer {
	bb, _ := byteBufferPool.Get().(*ByteBuffer)
	bb.Reset()

	return bb
}

// PutByteBuffer returns a buffer to the pool. Buffers that grew past the
// retention threshold are released to the garbage collector.
func PutByteBuffer(bb *ByteBuffer) {
	if cap(bb.B) > snapshotBufferMaxThreshold {
		return
	}
	byteBufferPool.Put(bb)
}
