package ber

import (
	"io"

	asn1 "go.corvid.dev/x690"
	"go.corvid.dev/x690/schema"
	"go.corvid.dev/x690/tlv"
	"go.corvid.dev/x690/xerr"
)

// Decode reads one top-level value of shape t from r, capturing every byte
// it consumes into the returned Image, and returns the realised node tree
// alongside it. Decode stops after the one top-level value; it does not
// drain r further.
func Decode(t *schema.Type, r io.Reader) (*Node, Image, error) {
	cr := newCapturingReader(r)
	d := tlv.NewDecoder(cr)
	node, err := decode(d, t, t.Name)
	if err != nil {
		return nil, nil, err
	}
	return node, Image(cr.buf), nil
}

// DecodeNode realises one value of type t from an already-open Decoder,
// the same way Decode does, but without constructing a fresh Decoder or
// capturing reader of its own. Package cms uses this: its outer structures
// (ContentInfo, SignedData, EnvelopedData) are themselves streamed rather
// than buffered whole, so a bounded sub-object (an embedded Certificate,
// the SignerInfos SET OF, the RecipientInfos SET OF) must be decoded from
// the very same Decoder and capturing reader the outer streaming parser
// already holds, picking up exactly where it left off.
func DecodeNode(d *tlv.Decoder, t *schema.Type, name string) (*Node, error) {
	return decode(d, t, name)
}

// decode realises one value of type t from d, reading its own header (or,
// for CHOICE/Tagged, delegating header handling to the specialised path
// that needs to see it before committing).
func decode(d *tlv.Decoder, t *schema.Type, name string) (*Node, error) {
	switch t.Kind {
	case schema.KindTagged:
		return decodeTagged(d, t, name)
	case schema.KindChoice:
		return decodeChoice(d, t, name)
	}
	start := d.InputOffset()
	h, val, err := d.ReadHeader()
	if err != nil {
		return nil, wrapErr(err)
	}
	return finishNode(d, t, name, start, h, val, true)
}

// decodeTagged handles a [n] EXPLICIT|IMPLICIT T type. The outer tag is
// always read and checked here; for EXPLICIT it wraps one nested value of
// its own (read via a fresh header), for IMPLICIT the outer header is
// reinterpreted directly as if it belonged to t.Elem.
func decodeTagged(d *tlv.Decoder, t *schema.Type, name string) (*Node, error) {
	start := d.InputOffset()
	h, val, err := d.ReadHeader()
	if err != nil {
		return nil, wrapErr(err)
	}
	wantTag := t.Class | asn1.Tag(t.Tag)
	if h.Tag != wantTag {
		return nil, xerr.New(xerr.UnexpectedTag, "ber: %s: expected tag %s, got %s", name, wantTag, h.Tag)
	}
	if !t.Explicit {
		return finishNode(d, t.Elem, name, start, h, val, false)
	}
	if !h.Constructed {
		return nil, xerr.New(xerr.BerError, "ber: %s: explicit tag must be constructed", name)
	}
	child, err := decode(d, t.Elem, name)
	if err != nil {
		return nil, err
	}
	if err := expectEOC(d); err != nil {
		return nil, err
	}
	headerLen := child.Offset - int(start)
	node := &Node{
		Type:       t,
		Name:       name,
		Offset:     int(start),
		HeaderLen:  headerLen,
		ContentLen: child.HeaderLen + maxInt(child.ContentLen, 0),
		Children:   []*Node{child},
	}
	return node, nil
}

// decodeChoice peeks the next header without consuming it, picks the first
// alternative whose tag matches, and decodes it normally. The CHOICE node
// itself is a transparent wrapper over its one realised child.
func decodeChoice(d *tlv.Decoder, t *schema.Type, name string) (*Node, error) {
	ph, err := d.PeekHeader()
	if err != nil {
		return nil, wrapErr(err)
	}
	for _, f := range t.Fields {
		if !choiceAltMatches(f.Type, ph) {
			continue
		}
		child, err := decode(d, f.Type, f.Name)
		if err != nil {
			return nil, err
		}
		return &Node{
			Type:       t,
			Name:       name,
			Offset:     child.Offset,
			HeaderLen:  child.HeaderLen,
			ContentLen: child.ContentLen,
			Children:   []*Node{child},
		}, nil
	}
	return nil, xerr.New(xerr.UnexpectedTag, "ber: %s: no CHOICE alternative matches tag %s", name, ph.Tag)
}

// choiceAltMatches reports whether a peeked header could belong to
// alternative alt, recursing through nested CHOICE alternatives.
func choiceAltMatches(alt *schema.Type, ph tlv.Header) bool {
	if alt.Kind == schema.KindChoice {
		for _, f := range alt.Fields {
			if choiceAltMatches(f.Type, ph) {
				return true
			}
		}
		return false
	}
	wantTag, wantConstructed := alt.EnclosingTag()
	return ph.Tag == wantTag && ph.Constructed == wantConstructed
}

// finishNode builds the node for t given that its header h (and, if
// primitive, its value val) have already been read from d. checkTag is
// false when h was read for an enclosing IMPLICIT tag and must not be
// compared against t's own universal/constructed expectations beyond
// constructedness.
func finishNode(d *tlv.Decoder, t *schema.Type, name string, start int64, h tlv.Header, val *tlv.Value, checkTag bool) (*Node, error) {
	switch t.Kind {
	case schema.KindPrimitive:
		if checkTag && h.Tag != t.Universal {
			return nil, xerr.New(xerr.UnexpectedTag, "ber: %s: expected tag %s, got %s", name, t.Universal, h.Tag)
		}
		if h.Constructed {
			return nil, xerr.New(xerr.BerError, "ber: %s: primitive value encoded as constructed", name)
		}
		n, err := drainLeaf(d, start, h, val)
		if err != nil {
			return nil, err
		}
		n.Type, n.Name = t, name
		return n, nil

	case schema.KindAny:
		n, err := drainLeaf(d, start, h, val)
		if err != nil {
			return nil, err
		}
		n.Type, n.Name = t, name
		return n, nil

	case schema.KindSequence, schema.KindSet:
		wantTag := asn1.TagSequence
		if t.Kind == schema.KindSet {
			wantTag = asn1.TagSet
		}
		if checkTag && h.Tag != wantTag {
			return nil, xerr.New(xerr.UnexpectedTag, "ber: %s: expected tag %s, got %s", name, wantTag, h.Tag)
		}
		if !h.Constructed {
			return nil, xerr.New(xerr.BerError, "ber: %s: SEQUENCE/SET must be constructed", name)
		}
		children := make([]*Node, 0, len(t.Fields))
		contentLen := 0
		for _, f := range t.Fields {
			child, present, err := decodeField(d, f)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
			if present {
				contentLen += child.HeaderLen + maxInt(child.ContentLen, 0)
			}
		}
		if err := expectEOC(d); err != nil {
			return nil, err
		}
		linkSiblings(children)
		node := &Node{Type: t, Name: name, Offset: int(start), Children: children}
		node.HeaderLen = tlv.HeaderSize(h)
		if h.Length != tlv.LengthIndefinite {
			node.ContentLen = h.Length
		} else {
			node.ContentLen = contentLen
		}
		return node, nil

	case schema.KindSequenceOf, schema.KindSetOf:
		wantTag := asn1.TagSequence
		if t.Kind == schema.KindSetOf {
			wantTag = asn1.TagSet
		}
		if checkTag && h.Tag != wantTag {
			return nil, xerr.New(xerr.UnexpectedTag, "ber: %s: expected tag %s, got %s", name, wantTag, h.Tag)
		}
		if !h.Constructed {
			return nil, xerr.New(xerr.BerError, "ber: %s: SEQUENCE OF/SET OF must be constructed", name)
		}
		var children []*Node
		contentLen := 0
		for {
			ph, err := d.PeekHeader()
			if err != nil {
				return nil, wrapErr(err)
			}
			if ph == (tlv.Header{}) {
				break
			}
			child, err := decode(d, t.Elem, t.Elem.Name)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
			contentLen += child.HeaderLen + maxInt(child.ContentLen, 0)
		}
		if err := expectEOC(d); err != nil {
			return nil, err
		}
		linkSiblings(children)
		node := &Node{Type: t, Name: name, Offset: int(start), Children: children}
		node.HeaderLen = tlv.HeaderSize(h)
		if h.Length != tlv.LengthIndefinite {
			node.ContentLen = h.Length
		} else {
			node.ContentLen = contentLen
		}
		return node, nil
	}
	return nil, xerr.New(xerr.BerError, "ber: %s: unsupported schema kind %s", name, t.Kind)
}

// decodeField realises one SEQUENCE/SET field. For a non-optional field it
// always decodes. For an OPTIONAL (or DEFAULT) field it peeks the next tag
// first; if the tag doesn't match, the field is absent and a placeholder
// node (ContentLen -1) is returned instead of consuming anything. An
// OPTIONAL ANY field takes whatever value comes next before the parent's
// end-of-contents.
func decodeField(d *tlv.Decoder, f schema.Field) (*Node, bool, error) {
	if !f.Optional {
		n, err := decode(d, f.Type, f.Name)
		return n, true, err
	}
	ph, err := d.PeekHeader()
	if err != nil {
		return nil, false, wrapErr(err)
	}
	if ph == (tlv.Header{}) {
		return &Node{Type: f.Type, Name: f.Name, ContentLen: -1}, false, nil
	}
	if f.Type.Kind == schema.KindChoice {
		if !choiceAltMatches(f.Type, ph) {
			return &Node{Type: f.Type, Name: f.Name, ContentLen: -1}, false, nil
		}
	} else if f.Type.Kind != schema.KindAny {
		wantTag, wantConstructed := f.Type.EnclosingTag()
		if ph.Tag != wantTag || ph.Constructed != wantConstructed {
			return &Node{Type: f.Type, Name: f.Name, ContentLen: -1}, false, nil
		}
	}
	n, err := decode(d, f.Type, f.Name)
	return n, true, err
}

// drainLeaf consumes the remainder of a primitive or ANY value (constructed
// ANY included) so its bytes pass through the capturing reader, and
// computes its offset/header/content lengths.
func drainLeaf(d *tlv.Decoder, start int64, h tlv.Header, val *tlv.Value) (*Node, error) {
	contentStart := d.InputOffset()
	headerLen := int(contentStart - start)
	var contentLen int
	if val != nil {
		n := val.Len()
		if _, err := val.Discard(n); err != nil {
			return nil, wrapErr(err)
		}
		contentLen = n
	} else {
		// Constructed ANY: skip through to its matching end-of-contents.
		if err := d.Skip(); err != nil {
			return nil, wrapErr(err)
		}
		if h.Length != tlv.LengthIndefinite {
			contentLen = h.Length
		} else {
			contentLen = int(d.InputOffset()-contentStart) - 2 // exclude trailing EOC
		}
	}
	return &Node{Offset: int(start), HeaderLen: headerLen, ContentLen: contentLen}, nil
}

func expectEOC(d *tlv.Decoder) error {
	h, _, err := d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	if h != (tlv.Header{}) {
		return xerr.New(xerr.BerError, "ber: expected end-of-contents, got %s", h)
	}
	return nil
}

func linkSiblings(children []*Node) {
	for i := 0; i+1 < len(children); i++ {
		children[i].Sibling = children[i+1]
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// wrapErr classifies a tlv-layer error into this module's xerr taxonomy.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return xerr.Wrap(xerr.ObjectTooShort, err, "ber: truncated input")
	}
	if _, ok := err.(*tlv.SyntaxError); ok {
		return xerr.Wrap(xerr.BerError, err, "ber: malformed encoding")
	}
	return xerr.Wrap(xerr.ReadError, err, "ber: read error")
}
