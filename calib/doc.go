// Package calib evaluates polynomial calibration chains over raw decoded
// sample values.
//
// A recording declares calibrations in three variants: univariate
// polynomials over a subchannel's own value, bivariate polynomials mixing in
// a reference subchannel resolved at the nearest timestamp, and combined
// chains composing other declarations. NewPipeline resolves the declarations
// once: cross-channel references are bound up front, combined chains are
// flattened in dependency order, and a cyclic composition fails the build.
// Evaluation is then a flat, allocation-free pass over each block's values.
package calib
