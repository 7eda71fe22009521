// Package errs defines the sentinel errors shared across the ide module.
//
// Errors fall into the classes described in the package documentation of the
// root ide package:
//
//   - Structural errors (ErrInvalidVarInt, ErrTruncatedElement) are fatal to
//     the offending element; a caller may resynchronize at the next root
//     element.
//   - Decode errors (ErrBlockStride, ErrNonMonotonicTime) isolate a single
//     data block and are surfaced as per-channel warnings.
//   - Calibration construction errors (ErrCalibrationCycle) are fatal when a
//     pipeline is built, never during evaluation.
//   - ErrCalibrationReference is non-fatal; the affected transform degrades
//     to identity pass-through.
//
// Call sites wrap these sentinels with fmt.Errorf("...: %w", err) so callers
// can match with errors.Is while still receiving contextual detail.
package errs

import "errors"

var (
	// ErrInvalidVarInt indicates a variable-length integer whose leading byte
	// carries no length marker bit, or an element ID longer than 4 bytes.
	ErrInvalidVarInt = errors.New("invalid variable-length integer")

	// ErrTruncatedElement indicates an element whose declared payload length
	// exceeds the remaining bytes of its enclosing range.
	ErrTruncatedElement = errors.New("element truncated")

	// ErrSchemaLoad indicates a schema definition table that could not be
	// parsed, or one that contains duplicate element IDs.
	ErrSchemaLoad = errors.New("schema load failed")

	// ErrSchemaUnknown indicates a lookup of a schema identifier that was
	// never registered.
	ErrSchemaUnknown = errors.New("unknown schema identifier")

	// ErrDocumentClosed indicates an operation on a Document whose byte
	// source has already been released.
	ErrDocumentClosed = errors.New("document closed")

	// ErrBlockStride indicates a data block payload whose length is not an
	// integer multiple of the channel's declared per-sample stride.
	ErrBlockStride = errors.New("block payload inconsistent with sample stride")

	// ErrNonMonotonicTime indicates explicit per-sample timestamps that run
	// backwards within a block.
	ErrNonMonotonicTime = errors.New("non-monotonic sample timestamps")

	// ErrCalibrationCycle indicates a cyclic transform composition detected
	// while building a calibration pipeline.
	ErrCalibrationCycle = errors.New("cyclic calibration composition")

	// ErrCalibrationReference indicates a bivariate transform whose reference
	// channel is absent or yields no usable value. The transform degrades to
	// identity pass-through.
	ErrCalibrationReference = errors.New("calibration reference unavailable")

	// ErrUnknownChannel indicates a channel ID that is not declared by the
	// recording's properties.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrIndexOutOfRange indicates a sample index outside an event array.
	ErrIndexOutOfRange = errors.New("sample index out of range")

	// ErrInvalidSnapshot indicates exported snapshot bytes with a bad magic
	// number, version, or section layout.
	ErrInvalidSnapshot = errors.New("invalid snapshot data")
)
