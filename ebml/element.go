package ebml

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/sensorkit/ide/endian"
)

// dateEpoch is the zero point of date element payloads, which store signed
// nanoseconds relative to it.
var dateEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// Element is one decoded node of the element tree: a typed leaf or a master
// container. Elements are headers plus positions; leaf payloads are read
// from the document's source on first value access, and master children are
// enumerated on demand from the stored byte range. Nothing below a requested
// depth is touched.
type Element struct {
	doc        *Document
	desc       *Descriptor
	id         uint64
	offset     int64 // start of the ID varint
	headerSize int   // ID varint + size varint
	size       int64 // payload size, resolved even when declared unknown
	unknown    bool  // size was declared with the reserved all-ones pattern

	value any // cached decoded leaf value
}

// ID returns the element's numeric ID, marker bits included.
func (e *Element) ID() uint64 { return e.id }

// Desc returns the element's descriptor. IDs absent from the schema carry a
// synthetic descriptor of KindUnknown.
func (e *Element) Desc() *Descriptor { return e.desc }

// Name returns the element's declared name.
func (e *Element) Name() string { return e.desc.Name }

// Kind returns the element's decoded representation class.
func (e *Element) Kind() Kind { return e.desc.Kind }

// Offset returns the byte offset of the element's first header byte.
func (e *Element) Offset() int64 { return e.offset }

// PayloadOffset returns the byte offset of the element's payload.
func (e *Element) PayloadOffset() int64 { return e.offset + int64(e.headerSize) }

// Size returns the payload length in bytes. For an element declared with
// unknown size this is the resolved length (up to its next same-depth
// sibling, or the end of the source).
func (e *Element) Size() int64 { return e.size }

// End returns the byte offset one past the element's payload.
func (e *Element) End() int64 { return e.PayloadOffset() + e.size }

// SizeUnknown reports whether the element's size field held the reserved
// unknown-size pattern.
func (e *Element) SizeUnknown() bool { return e.unknown }

func (e *Element) String() string {
	return fmt.Sprintf("<%s (ID 0x%X) offset %d size %d>", e.desc.Name, e.id, e.offset, e.size)
}

// Children returns an iterator over the element's direct children. Each
// child is decoded lazily as the iteration advances; grandchildren are not
// touched. Iterating a non-master element yields nothing.
//
// A structural error inside the payload is yielded once as the final pair,
// with a nil element.
func (e *Element) Children() iter.Seq2[*Element, error] {
	return func(yield func(*Element, error) bool) {
		if e.desc.Kind != KindMaster {
			return
		}

		pos := e.PayloadOffset()
		end := e.End()
		for pos < end {
			child, next, err := e.doc.next(pos, end)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(child, nil) {
				return
			}
			pos = next
		}
	}
}

// RawValue reads and returns the element's raw payload bytes. This is the
// only way binary payloads are materialized.
func (e *Element) RawValue() ([]byte, error) {
	return e.doc.readRange(e.PayloadOffset(), e.size)
}

// Value decodes and caches the element's payload according to its kind:
// uint64, int64, float64, string, time.Time, or []byte for binary and
// unknown kinds. Master elements have no scalar value and return nil.
func (e *Element) Value() (any, error) {
	if e.value != nil {
		return e.value, nil
	}
	if e.desc.Kind == KindMaster {
		return nil, nil
	}

	raw, err := e.RawValue()
	if err != nil {
		return nil, err
	}

	v, err := decodeLeaf(e.desc.Kind, raw)
	if err != nil {
		return nil, fmt.Errorf("%s at offset %d: %w", e.desc.Name, e.offset, err)
	}
	e.value = v

	return v, nil
}

func decodeLeaf(kind Kind, raw []byte) (any, error) {
	switch kind {
	case KindUint:
		return endian.Uvarlen(raw), nil
	case KindInt:
		return endian.Varlen(raw), nil
	case KindFloat:
		return endian.Floatlen(raw)
	case KindString, KindUnicode:
		s := string(raw)
		if i := strings.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}

		return s, nil
	case KindDate:
		return dateEpoch.Add(time.Duration(endian.Varlen(raw))), nil
	default:
		return raw, nil
	}
}

// Uint returns the element decoded as an unsigned integer.
func (e *Element) Uint() (uint64, error) {
	v, err := e.Value()
	if err != nil {
		return 0, err
	}
	if u, ok := v.(uint64); ok {
		return u, nil
	}

	return 0, fmt.Errorf("%s is %s, not uint", e.desc.Name, e.desc.Kind)
}

// Int returns the element decoded as a signed integer.
func (e *Element) Int() (int64, error) {
	v, err := e.Value()
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil //nolint: gosec
	}

	return 0, fmt.Errorf("%s is %s, not int", e.desc.Name, e.desc.Kind)
}

// Float returns the element decoded as a floating point value. Integer
// elements convert implicitly, matching how coefficient lists are written by
// some recorder firmware revisions.
func (e *Element) Float() (float64, error) {
	v, err := e.Value()
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case uint64:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}

	return 0, fmt.Errorf("%s is %s, not float", e.desc.Name, e.desc.Kind)
}

// Text returns the element decoded as a string.
func (e *Element) Text() (string, error) {
	v, err := e.Value()
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}

	return "", fmt.Errorf("%s is %s, not string", e.desc.Name, e.desc.Kind)
}

// Time returns the element decoded as a date.
func (e *Element) Time() (time.Time, error) {
	v, err := e.Value()
	if err != nil {
		return time.Time{}, err
	}
	if t, ok := v.(time.Time); ok {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%s is %s, not date", e.desc.Name, e.desc.Kind)
}
