package ebml

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sensorkit/ide/errs"
	"github.com/sensorkit/ide/internal/hash"
)

// Kind is the decoded representation class of an element.
type Kind uint8

const (
	KindMaster  Kind = iota // container; payload is a sequence of elements
	KindUint                // big-endian unsigned integer, 0..8 bytes
	KindInt                 // big-endian signed integer, 0..8 bytes
	KindFloat               // IEEE 754, 0, 4, or 8 bytes
	KindString              // ASCII, trimmed at the first NUL
	KindUnicode             // UTF-8, trimmed at the first NUL
	KindDate                // signed 64-bit nanoseconds from 2001-01-01 UTC
	KindBinary              // opaque byte range
	KindUnknown             // ID absent from the schema; treated as binary
)

func (k Kind) String() string {
	switch k {
	case KindMaster:
		return "master"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindUnicode:
		return "utf8"
	case KindDate:
		return "date"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

var kindNames = map[string]Kind{
	"master":   KindMaster,
	"uint":     KindUint,
	"uinteger": KindUint,
	"int":      KindInt,
	"integer":  KindInt,
	"float":    KindFloat,
	"string":   KindString,
	"utf8":     KindUnicode,
	"utf-8":    KindUnicode,
	"date":     KindDate,
	"binary":   KindBinary,
}

// GlobalLevel marks an element valid at any nesting depth (e.g. Void).
const GlobalLevel = -1

// Descriptor describes one element type declared by a schema.
type Descriptor struct {
	ID        uint64
	Name      string
	Kind      Kind
	Mandatory bool
	Multiple  bool
	Level     int
}

// Schema is an immutable mapping of element IDs to descriptors. Schemas are
// built once by ParseSchema or Register and shared read-only by any number
// of documents.
type Schema struct {
	name    string
	docType string
	version int
	byID    map[uint64]*Descriptor
	byName  map[string]*Descriptor
	sum     uint64
}

type schemaFile struct {
	DocType  string          `yaml:"doctype"`
	Version  int             `yaml:"version"`
	Elements []schemaElement `yaml:"elements"`
}

type schemaElement struct {
	ID        uint64 `yaml:"id"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Mandatory bool   `yaml:"mandatory"`
	Multiple  bool   `yaml:"multiple"`
	Level     int    `yaml:"level"`
}

// ParseSchema builds a Schema from a YAML definition table.
//
// The table declares one entry per element: id, name, type, and optional
// mandatory/multiple/level attributes. No parent/child legality is captured:
// any element may appear inside any master element, which lets readers built
// against an older schema crawl files written by newer, additively extended
// ones.
//
// Duplicate IDs or names, unknown type tags, and malformed YAML all yield an
// error wrapping errs.ErrSchemaLoad.
func ParseSchema(name string, src []byte) (*Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(src, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrSchemaLoad, name, err)
	}

	if len(file.Elements) == 0 {
		return nil, fmt.Errorf("%w: %s: no elements declared", errs.ErrSchemaLoad, name)
	}

	s := &Schema{
		name:    name,
		docType: file.DocType,
		version: file.Version,
		byID:    make(map[uint64]*Descriptor, len(file.Elements)),
		byName:  make(map[string]*Descriptor, len(file.Elements)),
		sum:     hash.Sum(src),
	}

	for _, el := range file.Elements {
		if el.ID == 0 {
			return nil, fmt.Errorf("%w: %s: element %q missing id", errs.ErrSchemaLoad, name, el.Name)
		}
		if el.Name == "" {
			return nil, fmt.Errorf("%w: %s: element 0x%X missing name", errs.ErrSchemaLoad, name, el.ID)
		}

		kind, ok := kindNames[el.Type]
		if !ok {
			return nil, fmt.Errorf("%w: %s: element %q has unknown type %q",
				errs.ErrSchemaLoad, name, el.Name, el.Type)
		}

		if _, dup := s.byID[el.ID]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate element id 0x%X", errs.ErrSchemaLoad, name, el.ID)
		}
		if _, dup := s.byName[el.Name]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate element name %q", errs.ErrSchemaLoad, name, el.Name)
		}

		desc := &Descriptor{
			ID:        el.ID,
			Name:      el.Name,
			Kind:      kind,
			Mandatory: el.Mandatory,
			Multiple:  el.Multiple,
			Level:     el.Level,
		}
		s.byID[el.ID] = desc
		s.byName[el.Name] = desc
	}

	return s, nil
}

// Name returns the registry identifier the schema was built under.
func (s *Schema) Name() string { return s.name }

// DocType returns the document type tag declared by the definition table.
func (s *Schema) DocType() string { return s.docType }

// Version returns the schema version declared by the definition table.
func (s *Schema) Version() int { return s.version }

// Len returns the number of declared element types.
func (s *Schema) Len() int { return len(s.byID) }

// Get returns the descriptor for an element ID.
func (s *Schema) Get(id uint64) (*Descriptor, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// ByName returns the descriptor for an element name.
func (s *Schema) ByName(name string) (*Descriptor, bool) {
	d, ok := s.byName[name]
	return d, ok
}

var registry = struct {
	sync.RWMutex
	schemas map[string]*Schema
}{schemas: make(map[string]*Schema)}

// Register parses a schema definition and caches it process-wide under the
// given identifier, so documents sharing a schema avoid reparsing.
//
// Registering the identical definition bytes under an existing identifier
// returns the cached Schema. Registering a different definition under an
// existing identifier is an error wrapping errs.ErrSchemaLoad.
func Register(name string, src []byte) (*Schema, error) {
	sum := hash.Sum(src)

	registry.RLock()
	cached, ok := registry.schemas[name]
	registry.RUnlock()
	if ok {
		if cached.sum != sum {
			return nil, fmt.Errorf("%w: %s: identifier already registered with a different definition",
				errs.ErrSchemaLoad, name)
		}

		return cached, nil
	}

	s, err := ParseSchema(name, src)
	if err != nil {
		return nil, err
	}

	registry.Lock()
	defer registry.Unlock()
	if prior, ok := registry.schemas[name]; ok {
		// Lost a registration race; the winner parsed the same bytes or a
		// conflicting table.
		if prior.sum != sum {
			return nil, fmt.Errorf("%w: %s: identifier already registered with a different definition",
				errs.ErrSchemaLoad, name)
		}

		return prior, nil
	}
	registry.schemas[name] = s

	return s, nil
}

// Load returns the Schema cached under the given identifier, or an error
// wrapping errs.ErrSchemaUnknown.
func Load(name string) (*Schema, error) {
	registry.RLock()
	defer registry.RUnlock()

	if s, ok := registry.schemas[name]; ok {
		return s, nil
	}

	return nil, fmt.Errorf("%w: %s", errs.ErrSchemaUnknown, name)
}
