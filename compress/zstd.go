package compress

// ZstdCompressor provides Zstandard compression for snapshot sections. Best
// suited to archival exports where ratio matters more than encode speed.
//
// Two implementations back it, selected at build time: the cgo binding when
// cgo is available, and the pure-Go implementation otherwise (or when the
// purego tag is set).
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
