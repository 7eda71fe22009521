package ebml

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"sync"

	"github.com/sensorkit/ide/errs"
)

// Source is the byte source a Document reads from. bytes.Reader and os.File
// both satisfy it. If the source also implements io.Closer, the Document
// releases it on Close; if it implements Stat or Size, Refresh can pick up
// growth of a file still being written.
type Source interface {
	io.ReaderAt
}

// headerPeek bounds the bytes fetched for one element header: a 4-byte ID
// varint plus an 8-byte size varint.
const headerPeek = 12

// Document owns one byte source and decodes its top-level element sequence
// against a schema.
//
// Iteration is lazy and restartable: Roots starts over from the first root
// element each time, and RootsFrom resumes from any previously returned
// offset, so a caller can continue scanning a grown source without
// re-decoding what it already consumed.
//
// A Document is not safe for concurrent mutation (Refresh/Close); read-only
// access to an already opened, non-growing document is safe.
type Document struct {
	src    Source
	schema *Schema
	size   int64

	payloadOffset int64
	info          map[string]any
	warnings      []string

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// NewDocument wraps a byte source of the given size.
//
// If the source starts with the standard "EBML" header container, the header
// is materialized into Info and root iteration starts after it; a missing
// header is recorded as a warning, not an error (structure is not enforced).
// A structurally corrupt first element aborts the open.
func NewDocument(src Source, schema *Schema, size int64) (*Document, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: nil schema", errs.ErrSchemaLoad)
	}

	d := &Document{
		src:    src,
		schema: schema,
		size:   size,
		info:   map[string]any{},
	}

	if size == 0 {
		return d, nil
	}

	first, next, err := d.next(0, size)
	if err != nil {
		return nil, fmt.Errorf("reading document header: %w", err)
	}

	if first.Name() == "EBML" {
		node, err := d.Materialize(first)
		if err != nil {
			return nil, fmt.Errorf("reading document header: %w", err)
		}
		for _, ch := range node.Children {
			d.info[ch.El.Name()] = ch.Value
		}
		d.payloadOffset = next

		if dt, ok := d.info["DocType"].(string); ok && schema.DocType() != "" && dt != schema.DocType() {
			d.warn("document type %q does not match schema %q", dt, schema.DocType())
		}
	} else {
		d.warn("document does not start with an EBML header element")
	}

	return d, nil
}

func (d *Document) warn(format string, args ...any) {
	d.warnings = append(d.warnings, fmt.Sprintf(format, args...))
}

// Schema returns the schema the document decodes against.
func (d *Document) Schema() *Schema { return d.schema }

// Size returns the current known size of the byte source.
func (d *Document) Size() int64 { return d.size }

// PayloadOffset returns the offset of the first root element after the
// document header.
func (d *Document) PayloadOffset() int64 { return d.payloadOffset }

// Info returns the materialized EBML header values (DocType, DocTypeVersion,
// ...), or an empty map when the document carries no header.
func (d *Document) Info() map[string]any { return d.info }

// Warnings returns the non-fatal schema irregularities observed while
// opening the document.
func (d *Document) Warnings() []string { return d.warnings }

// Refresh re-reads the source's size so iteration can continue into data
// appended since the document was opened. Sources that implement neither
// Stat nor Size are left unchanged.
func (d *Document) Refresh() error {
	if d.closed {
		return errs.ErrDocumentClosed
	}

	switch s := d.src.(type) {
	case interface{ Stat() (os.FileInfo, error) }:
		fi, err := s.Stat()
		if err != nil {
			return fmt.Errorf("refreshing source size: %w", err)
		}
		if fi.Size() > d.size {
			d.size = fi.Size()
		}
	case interface{ Size() int64 }:
		if n := s.Size(); n > d.size {
			d.size = n
		}
	}

	return nil
}

// Close releases the byte source exactly once. Further reads fail with
// errs.ErrDocumentClosed.
func (d *Document) Close() error {
	d.closeOnce.Do(func() {
		d.closed = true
		if c, ok := d.src.(io.Closer); ok {
			d.closeErr = c.Close()
		}
	})

	return d.closeErr
}

// Next decodes the root element starting at offset and returns it along
// with the offset of the next root element. At the end of the source it
// returns io.EOF.
func (d *Document) Next(offset int64) (*Element, int64, error) {
	return d.next(offset, d.size)
}

// Roots returns a lazy iterator over the document's root elements, starting
// after the document header. The sequence is restartable: each range starts
// over.
//
// A structural error is yielded once as a final (nil, err) pair; the caller
// decides whether to resynchronize (see dataset.Recording) or abort.
func (d *Document) Roots() iter.Seq2[*Element, error] {
	return d.RootsFrom(d.payloadOffset)
}

// RootsFrom returns a lazy iterator over root elements beginning at the
// given offset, which must be a root element boundary previously returned by
// Next or observed via Element.End. Iteration stops cleanly at the current
// source size, so it can be resumed after Refresh.
func (d *Document) RootsFrom(offset int64) iter.Seq2[*Element, error] {
	return func(yield func(*Element, error) bool) {
		pos := offset
		for pos < d.size {
			el, next, err := d.next(pos, d.size)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield(nil, err)

				return
			}
			if !yield(el, nil) {
				return
			}
			pos = next
		}
	}
}

// Node is one fully materialized element: decoded leaf value or recursively
// materialized children.
type Node struct {
	El       *Element
	Value    any
	Children []*Node
}

// Find returns the first child node with the given element name.
func (n *Node) Find(name string) (*Node, bool) {
	for _, ch := range n.Children {
		if ch.El.Name() == name {
			return ch, true
		}
	}

	return nil, false
}

// Materialize fully decodes an element subtree: leaf payloads are read and
// decoded, master payloads are recursed. Intended for small control and
// metadata containers; data-bearing elements should stay lazy and be read
// through the block index instead.
func (d *Document) Materialize(e *Element) (*Node, error) {
	node := &Node{El: e}

	if e.Kind() != KindMaster {
		v, err := e.Value()
		if err != nil {
			return nil, err
		}
		node.Value = v

		return node, nil
	}

	for child, err := range e.Children() {
		if err != nil {
			return nil, err
		}
		sub, err := d.Materialize(child)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, sub)
	}

	return node, nil
}

// next decodes one element header at offset, bounded by end. It returns the
// element and the offset immediately after its payload.
func (d *Document) next(offset, end int64) (*Element, int64, error) {
	if d.closed {
		return nil, 0, errs.ErrDocumentClosed
	}
	if offset >= end {
		return nil, 0, io.EOF
	}

	peek := end - offset
	if peek > headerPeek {
		peek = headerPeek
	}
	buf, err := d.readRange(offset, peek)
	if err != nil {
		return nil, 0, err
	}

	id, idW, err := DecodeID(buf)
	if err != nil {
		return nil, 0, fmt.Errorf("element id at offset %d: %w", offset, err)
	}
	size, sizeW, err := DecodeSize(buf[idW:])
	if err != nil {
		return nil, 0, fmt.Errorf("element size at offset %d: %w", offset, err)
	}

	desc, known := d.schema.Get(id)
	if !known {
		desc = &Descriptor{
			ID:    id,
			Name:  fmt.Sprintf("Unknown-0x%X", id),
			Kind:  KindUnknown,
			Level: GlobalLevel,
		}
	}

	payload := offset + int64(idW) + int64(sizeW)
	unknown := size == SizeUnknown

	if unknown {
		stop, err := d.resolveUnknownSize(desc, payload, end)
		if err != nil {
			return nil, 0, err
		}
		size = stop - payload
	} else if payload+size > end {
		return nil, 0, fmt.Errorf("%s at offset %d: payload of %d bytes exceeds remaining %d: %w",
			desc.Name, offset, size, end-payload, errs.ErrTruncatedElement)
	}

	el := &Element{
		doc:        d,
		desc:       desc,
		id:         id,
		offset:     offset,
		headerSize: idW + sizeW,
		size:       size,
		unknown:    unknown,
	}

	return el, payload + size, nil
}

// resolveUnknownSize determines the end of an element declared with unknown
// size: the offset of the next sibling decodable at the element's own
// nesting level, per its schema-declared level. Elements whose IDs resolve
// to deeper levels, to the global level, or to no schema entry at all are
// consumed as children. A partial trailing child (still being written) ends
// the element at the child's first byte.
func (d *Document) resolveUnknownSize(parent *Descriptor, start, limit int64) (int64, error) {
	if parent.Kind == KindUnknown {
		// No level information to find a sibling with; the element claims
		// everything that remains.
		return limit, nil
	}

	pos := start
	for pos < limit {
		peek := limit - pos
		if peek > headerPeek {
			peek = headerPeek
		}
		buf, err := d.readRange(pos, peek)
		if err != nil {
			return pos, nil //nolint: nilerr
		}

		id, idW, err := DecodeID(buf)
		if err != nil {
			return pos, nil //nolint: nilerr
		}
		size, sizeW, err := DecodeSize(buf[idW:])
		if err != nil {
			return pos, nil //nolint: nilerr
		}

		if desc, ok := d.schema.Get(id); ok && desc.Level != GlobalLevel && desc.Level <= parent.Level {
			return pos, nil
		}

		childPayload := pos + int64(idW) + int64(sizeW)
		if size == SizeUnknown {
			childEnd, err := d.resolveUnknownSize(parent, childPayload, limit)
			if err != nil {
				return pos, nil //nolint: nilerr
			}
			pos = childEnd
			continue
		}
		if childPayload+size > limit {
			// Incomplete trailing child; not part of the element yet.
			return pos, nil
		}
		pos = childPayload + size
	}

	return limit, nil
}

// ReadRange reads exactly n bytes starting at off. Callers that index
// payload positions (rather than holding Elements) read them back through
// this.
func (d *Document) ReadRange(off, n int64) ([]byte, error) {
	return d.readRange(off, n)
}

// readRange reads exactly n bytes starting at off. A short read translates
// to errs.ErrTruncatedElement.
func (d *Document) readRange(off, n int64) ([]byte, error) {
	if d.closed {
		return nil, errs.ErrDocumentClosed
	}
	if n == 0 {
		return nil, nil
	}
	if off+n > d.size {
		return nil, fmt.Errorf("read of %d bytes at offset %d past end %d: %w",
			n, off, d.size, errs.ErrTruncatedElement)
	}

	buf := make([]byte, n)
	if _, err := d.src.ReadAt(buf, off); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read of %d bytes at offset %d: %w", n, off, errs.ErrTruncatedElement)
		}

		return nil, fmt.Errorf("read of %d bytes at offset %d: %w", n, off, err)
	}

	return buf, nil
}
