// Package compress provides the compression codecs applied to exported
// snapshot sections.
//
// Snapshots store decoded sensor data in columnar sections (one timestamp
// run, one value run per subchannel); compression is applied per section
// after encoding. Four algorithms are supported, selected by a
// format.CompressionType tag recorded in the snapshot header:
//   - None: no compression (fastest, largest)
//   - Zstd: best ratio, moderate speed
//   - S2: balanced ratio and speed
//   - LZ4: fastest decompression, moderate ratio
//
// All codecs are whole-buffer: sections are bounded in size and decompressed
// in one call on the read path.
package compress
