// Package ide reads hierarchical sensor recording containers: an EBML-style
// element tree with channelized sample data, decoded lazily into
// time-queryable, calibrated event arrays.
//
// The root package is a thin facade over the subpackages:
//
//   - ebml: varint codec, schema registry, lazy element tree, document
//   - dataset: channels, block indexing, sample decoding, event arrays
//   - calib: polynomial calibration pipeline
//   - export: compressed columnar snapshots of calibrated windows
//   - compress: the codecs behind snapshot compression
//
// Typical use:
//
//	rec, err := ide.Open("shaker_test.ide")
//	if err != nil {
//		return err
//	}
//	defer rec.Close()
//
//	ch, err := rec.Channel(8)
//	if err != nil {
//		return err
//	}
//	events, err := ch.Events(0)
//	if err != nil {
//		return err
//	}
//	for ev, err := range events.All() {
//		if err != nil {
//			return err
//		}
//		fmt.Println(ev.Time, ev.Value)
//	}
//
// Recordings are single-threaded; open one Recording per worker for
// parallel processing. Soft data corruption surfaces through the warnings
// lists on Recording and Channel rather than as errors.
package ide

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sensorkit/ide/dataset"
)

// Option configures Open and OpenBytes; see dataset.WithLogger,
// dataset.WithCacheBlocks, and dataset.WithSchema.
type Option = dataset.Option

// Open opens a recording file. The returned Recording owns the file handle
// and releases it on Close. A file still being written can be opened and
// periodically extended with Recording.Refresh.
func Open(path string, opts ...Option) (*dataset.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening recording: %w", err)
	}

	rec, err := dataset.Open(f, fi.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}

	return rec, nil
}

// OpenBytes opens a recording held in memory.
func OpenBytes(data []byte, opts ...Option) (*dataset.Recording, error) {
	return dataset.Open(bytes.NewReader(data), int64(len(data)), opts...)
}
