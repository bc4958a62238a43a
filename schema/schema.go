// Package schema implements the ASN.1 schema loader: it parses a textual
// ASN.1 module definition into an in-memory grammar tree that package ber
// drives to decode a byte stream. The decode target is a generic named-type
// tree resolved by name, rather than a Go struct populated via reflection.
package schema

import "go.corvid.dev/x690"

// Kind distinguishes the shape of a Type node.
type Kind int

const (
	KindSequence Kind = iota
	KindSet
	KindSequenceOf
	KindSetOf
	KindChoice
	KindTagged
	KindPrimitive
	KindAny
)

// String returns a human-readable name for k, used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "SEQUENCE"
	case KindSet:
		return "SET"
	case KindSequenceOf:
		return "SEQUENCE OF"
	case KindSetOf:
		return "SET OF"
	case KindChoice:
		return "CHOICE"
	case KindTagged:
		return "TAGGED"
	case KindPrimitive:
		return "PRIMITIVE"
	case KindAny:
		return "ANY"
	default:
		return "?"
	}
}

// Field is one member of a SEQUENCE, SET, or CHOICE.
type Field struct {
	Name       string
	Type       *Type
	Optional   bool
	HasDefault bool
}

// Type is a node in the parsed grammar tree. Exactly the fields relevant
// to Kind are populated; the rest are zero.
type Type struct {
	Kind Kind
	// Name is the type's own name if it was declared at module top level
	// ("" for an inline anonymous type, e.g. a field's SEQUENCE OF element).
	Name string

	// Fields holds the members of a SEQUENCE/SET/CHOICE.
	Fields []Field

	// Elem holds the element type of a SEQUENCE OF/SET OF, or the inner type
	// of a Tagged type.
	Elem *Type

	// Universal holds the universal class tag of a Primitive. It is zero
	// for every other Kind; EnclosingTag gives the tag a SEQUENCE/SET is
	// matched against.
	Universal asn1.Tag

	// Tag/Class/Explicit describe a Tagged ([n] EXPLICIT|IMPLICIT T) type.
	Tag      uint
	Class    asn1.Class
	Explicit bool

	// AnyDefinedBy is true on every "ANY" node, with or without a
	// DEFINED BY clause (e.g. AttributeTypeAndValue.value); package ber
	// captures such a value as a raw, undecoded TLV.
	AnyDefinedBy bool

	// refName holds the referenced type name while Kind == kindRef; it is
	// cleared (the node is replaced outright) once resolveRefs runs.
	refName string
}

// EnclosingTag returns the tag a decoder must see on the wire for this
// type, ignoring any further tagging wrapper. For SEQUENCE/SET/CHOICE this
// is the outer constructed tag convention; for a resolved Tagged type it is
// the type's own [class,n]; for Primitive it is Universal.
func (t *Type) EnclosingTag() (tag asn1.Tag, constructed bool) {
	switch t.Kind {
	case KindSequence, KindSequenceOf:
		return asn1.TagSequence, true
	case KindSet, KindSetOf:
		return asn1.TagSet, true
	case KindTagged:
		return t.Class | asn1.Tag(t.Tag), t.Explicit || t.Elem.isConstructedImplicit()
	case KindPrimitive:
		return t.Universal, isConstructedPrimitive(t.Universal)
	case KindChoice, KindAny:
		return 0, false // resolved dynamically from the wire
	}
	return 0, false
}

func (t *Type) isConstructedImplicit() bool {
	_, c := t.EnclosingTag()
	return c
}

func isConstructedPrimitive(tag asn1.Tag) bool {
	return tag == asn1.TagSequence || tag == asn1.TagSet
}

// Module is a named collection of top-level type declarations.
type Module struct {
	Name  string
	Types map[string]*Type
}

// Registry is the result of loading one or more modules: a flat type-name
// index spanning every loaded module, so that types in one module (e.g.
// CMS's CertificateSet) can reference types declared in another (X.509's
// Certificate).
type Registry struct {
	Modules []*Module
	byName  map[string]*Type
}

// Lookup finds a named type across every module loaded into r.
func (r *Registry) Lookup(name string) (*Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// MustLookup is like Lookup but panics if name is not found. It is meant
// for use with the module's own built-in, known-good grammars.
func (r *Registry) MustLookup(name string) *Type {
	t, ok := r.Lookup(name)
	if !ok {
		panic("schema: unknown type " + name)
	}
	return t
}
