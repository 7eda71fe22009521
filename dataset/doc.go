// Package dataset models a sensor recording on top of the generic element
// tree: channels, lazily built per-channel block indexes, sample decoding,
// and calibrated time-queryable event arrays.
//
// Open parses only the metadata region of a file (recorder properties,
// channel declarations, calibration declarations); data blocks are located
// but untouched. The first access to a channel scans the document's root
// data elements once, recording each matching block's position and time
// range without decoding its payload. Block payloads are decoded on demand
// through a bounded LRU cache, and calibration is applied per block from the
// recording's resolved pipeline.
//
// Everything here is single-threaded and cooperative: index scans accept a
// context checked between blocks, and no background work is ever spawned.
// Use separate Recording instances for parallel workers.
//
// Soft failures accumulate as warnings instead of aborting reads: a block
// with a stride-inconsistent payload is skipped at indexing time, a block
// that fails to decode is NaN-filled, and a calibration with a missing
// cross-channel reference passes values through. Each case is reported
// exactly once, on the owning channel.
package dataset
