package schema

import (
	"go.corvid.dev/x690"
	"go.corvid.dev/x690/xerr"
)

// kindRef marks a Type node that is still an unresolved reference to
// another named type; resolveRefs replaces every occurrence before
// Load returns. It is intentionally not part of the exported Kind
// enumeration — no fully-loaded Registry ever exposes a node with this
// Kind.
const kindRef Kind = 100

type parser struct {
	lex *lexer
	tok token
}

func newParser(src string) (*parser, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(k tokenKind) (token, error) {
	if p.tok.kind != k {
		return token{}, xerr.New(xerr.InvalidValue, "schema: unexpected token at line %d", p.tok.line)
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return t, nil
}

func (p *parser) expectIdent(text string) error {
	if p.tok.kind != tokIdent || p.tok.text != text {
		return xerr.New(xerr.InvalidValue, "schema: expected %q at line %d", text, p.tok.line)
	}
	return p.advance()
}

func (p *parser) atIdent(text string) bool {
	return p.tok.kind == tokIdent && p.tok.text == text
}

// parseModule parses a single "Name DEFINITIONS ::= BEGIN ... END" module.
func parseModule(src string) (*Module, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if err := p.expectIdent("DEFINITIONS"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokAssign); err != nil {
		return nil, err
	}
	if err := p.expectIdent("BEGIN"); err != nil {
		return nil, err
	}

	m := &Module{Name: nameTok.text, Types: map[string]*Type{}}
	for {
		if p.atIdent("END") {
			break
		}
		if p.tok.kind == tokEOF {
			return nil, xerr.New(xerr.InvalidValue, "schema: unexpected EOF in module %q, expected END", m.Name)
		}
		typeName, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokAssign); err != nil {
			return nil, err
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		t.Name = typeName.text
		m.Types[typeName.text] = t
	}
	return m, nil
}

// parseType parses one type expression: a SEQUENCE/SET/SEQUENCE OF/SET
// OF/CHOICE/tagged/primitive/ANY/reference.
func (p *parser) parseType() (*Type, error) {
	if p.tok.kind == tokLBracket {
		return p.parseTagged()
	}
	if p.tok.kind != tokIdent {
		return nil, xerr.New(xerr.InvalidValue, "schema: expected a type at line %d", p.tok.line)
	}

	switch p.tok.text {
	case "SEQUENCE":
		return p.parseSequenceOrSet(KindSequence, KindSequenceOf)
	case "SET":
		return p.parseSequenceOrSet(KindSet, KindSetOf)
	case "CHOICE":
		if err := p.advance(); err != nil {
			return nil, err
		}
		fields, err := p.parseBracedFields()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindChoice, Fields: fields}, nil
	case "ANY":
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.atIdent("DEFINED") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.expectIdent("BY"); err != nil {
				return nil, err
			}
			if p.tok.kind == tokIdent { // the governing field's name
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		return &Type{Kind: KindAny, AnyDefinedBy: true}, nil
	default:
		return p.parsePrimitiveOrRef()
	}
}

func (p *parser) parseSequenceOrSet(listKind, ofKind Kind) (*Type, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.atIdent("OF") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: ofKind, Elem: elem}, nil
	}
	fields, err := p.parseBracedFields()
	if err != nil {
		return nil, err
	}
	return &Type{Kind: listKind, Fields: fields}, nil
}

func (p *parser) parseBracedFields() ([]Field, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	var fields []Field
	for {
		if p.tok.kind == tokRBrace {
			if err := p.advance(); err != nil {
				return nil, err
			}
			break
		}
		nameTok, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		ft, err := p.parseType()
		if err != nil {
			return nil, err
		}
		f := Field{Name: nameTok.text, Type: ft}
		switch {
		case p.atIdent("OPTIONAL"):
			f.Optional = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		case p.atIdent("DEFAULT"):
			f.Optional = true
			f.HasDefault = true
			if err := p.advance(); err != nil {
				return nil, err
			}
			// skip the single default-value token (a number or identifier)
			if p.tok.kind == tokNumber || p.tok.kind == tokIdent {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		fields = append(fields, f)
		switch p.tok.kind {
		case tokComma:
			if err := p.advance(); err != nil {
				return nil, err
			}
		case tokRBrace:
			if err := p.advance(); err != nil {
				return nil, err
			}
			return fields, nil
		default:
			return nil, xerr.New(xerr.InvalidValue, "schema: expected ',' or '}' at line %d", p.tok.line)
		}
	}
	return fields, nil
}

func (p *parser) parseTagged() (*Type, error) {
	if _, err := p.expect(tokLBracket); err != nil {
		return nil, err
	}
	numTok, err := p.expect(tokNumber)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	explicit := false
	switch {
	case p.atIdent("EXPLICIT"):
		explicit = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	case p.atIdent("IMPLICIT"):
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	inner, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &Type{
		Kind:     KindTagged,
		Tag:      uint(numTok.num),
		Class:    asn1.ClassContextSpecific,
		Explicit: explicit,
		Elem:     inner,
	}, nil
}

func (p *parser) parsePrimitiveOrRef() (*Type, error) {
	name := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if tag, ok := universalTagByName[name]; ok {
		return &Type{Kind: KindPrimitive, Universal: tag}, nil
	}
	switch name {
	case "BIT":
		if err := p.expectIdent("STRING"); err != nil {
			return nil, err
		}
		return &Type{Kind: KindPrimitive, Universal: bitStringTag}, nil
	case "OCTET":
		if err := p.expectIdent("STRING"); err != nil {
			return nil, err
		}
		return &Type{Kind: KindPrimitive, Universal: octetStringTag}, nil
	case "OBJECT":
		if err := p.expectIdent("IDENTIFIER"); err != nil {
			return nil, err
		}
		return &Type{Kind: KindPrimitive, Universal: oidTag}, nil
	}
	// Anything else is a reference to another named type, resolved once
	// every module passed to Load has been parsed.
	return &Type{Kind: kindRef, refName: name}, nil
}
