package calib

import (
	"fmt"

	"github.com/sensorkit/ide/errs"
)

// Kind tags a calibration declaration variant.
type Kind uint8

const (
	KindUnivariate Kind = iota + 1
	KindBivariate
	KindCombined
)

func (k Kind) String() string {
	switch k {
	case KindUnivariate:
		return "univariate"
	case KindBivariate:
		return "bivariate"
	case KindCombined:
		return "combined"
	default:
		return "invalid"
	}
}

// Spec is one calibration declaration as read from a recording, before
// references are resolved.
type Spec struct {
	ID     uint64
	Kind   Kind
	Coeffs []float64

	// Bivariate only: the reference subchannel supplying r, and the nominal
	// reference value subtracted from each lookup.
	RefChannel    uint64
	RefSubChannel uint64
	RefValue      float64

	// Combined only: ordered calibration IDs whose transforms are chained.
	Refs []uint64
}

// ReferenceResolver turns a declared cross-channel reference into a value
// series. Resolution happens once, at pipeline construction; ok is false
// when the referenced subchannel does not exist in the recording.
type ReferenceResolver interface {
	ResolveSeries(channelID, subChannelID uint64) (Series, bool)
}

// Pipeline holds the resolved transform for every calibration ID declared by
// a recording. Construction validates the composition graph: combined chains
// are flattened in dependency order and a cycle fails the build, so
// evaluation never dispatches recursively.
type Pipeline struct {
	transforms map[uint64]Transform
	degraded   map[uint64]bool
}

// DFS colors for cycle detection.
const (
	unvisited = iota
	visiting
	done
)

// NewPipeline resolves a set of calibration declarations into evaluable
// transforms.
//
// Returns an error wrapping errs.ErrCalibrationCycle when combined chains
// form a cycle, and one wrapping errs.ErrCalibrationReference for a
// duplicate or dangling calibration ID. A bivariate declaration whose
// reference subchannel cannot be resolved is NOT an error: it degrades to
// identity and is reported through Degraded.
func NewPipeline(specs []Spec, resolver ReferenceResolver) (*Pipeline, error) {
	byID := make(map[uint64]*Spec, len(specs))
	for i := range specs {
		s := &specs[i]
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate calibration id %d", errs.ErrCalibrationReference, s.ID)
		}
		byID[s.ID] = s
	}

	p := &Pipeline{
		transforms: make(map[uint64]Transform, len(specs)),
		degraded:   make(map[uint64]bool),
	}
	state := make(map[uint64]int, len(specs))

	var build func(id uint64) (Transform, error)
	build = func(id uint64) (Transform, error) {
		if t, ok := p.transforms[id]; ok {
			return t, nil
		}
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: calibration id %d is not declared", errs.ErrCalibrationReference, id)
		}

		switch state[id] {
		case visiting:
			return nil, fmt.Errorf("%w: calibration id %d is part of a composition cycle",
				errs.ErrCalibrationCycle, id)
		case done:
			return p.transforms[id], nil
		}
		state[id] = visiting

		var t Transform
		switch s.Kind {
		case KindUnivariate:
			t = &Univariate{Coeffs: s.Coeffs}

		case KindBivariate:
			b := &Bivariate{RefOffset: s.RefValue}
			copy(b.Coeffs[:], s.Coeffs)
			if resolver != nil {
				if ref, found := resolver.ResolveSeries(s.RefChannel, s.RefSubChannel); found {
					b.Ref = ref
				}
			}
			if b.Ref == nil {
				p.degraded[id] = true
			}
			t = b

		case KindCombined:
			steps := make([]Transform, 0, len(s.Refs))
			for _, ref := range s.Refs {
				step, err := build(ref)
				if err != nil {
					return nil, err
				}
				// A flattened chain inherits degradation from its steps.
				if p.degraded[ref] {
					p.degraded[id] = true
				}
				if c, ok := step.(*Combined); ok {
					steps = append(steps, c.Steps...)
				} else {
					steps = append(steps, step)
				}
			}
			t = &Combined{Steps: steps}

		default:
			return nil, fmt.Errorf("%w: calibration id %d has invalid kind %d",
				errs.ErrCalibrationReference, id, s.Kind)
		}

		state[id] = done
		p.transforms[id] = t

		return t, nil
	}

	for _, s := range specs {
		if _, err := build(s.ID); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Transform returns the resolved transform for a calibration ID.
func (p *Pipeline) Transform(id uint64) (Transform, bool) {
	t, ok := p.transforms[id]
	return t, ok
}

// Degraded reports whether the transform for id lost a cross-channel
// reference at construction time and evaluates as identity for the affected
// factor.
func (p *Pipeline) Degraded(id uint64) bool { return p.degraded[id] }

// Len returns the number of resolved transforms.
func (p *Pipeline) Len() int { return len(p.transforms) }
