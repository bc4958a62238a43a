// Package sexp implements the canonical length-prefixed symbolic
// s-expression form used as this module's key/signature/encrypted-value
// boundary representation: each list is parenthesised, each atom is
// `<ascii-decimal-length>:<raw-bytes>`, with no whitespace and no comments.
//
// The atom format mirrors the teacher's byte-counting discipline in
// tlv.CombinedLength (know a value's length before you write it), applied
// to text instead of a binary TLV header.
package sexp

import (
	"bytes"
	"strconv"

	"go.corvid.dev/x690/xerr"
)

// Value is either an atom (raw byte string) or a list of Values. The zero
// Value is an empty atom.
type Value struct {
	isList bool
	atom   []byte
	list   []Value
}

// Atom returns an atom Value wrapping b. b is not copied.
func Atom(b []byte) Value { return Value{atom: b} }

// AtomString returns an atom Value wrapping s.
func AtomString(s string) Value { return Atom([]byte(s)) }

// List returns a list Value containing items in order.
func List(items ...Value) Value { return Value{isList: true, list: items} }

// IsList reports whether v is a list (as opposed to an atom).
func (v Value) IsList() bool { return v.isList }

// AtomBytes returns the raw bytes of v if v is an atom, or nil if v is a list.
func (v Value) AtomBytes() []byte { return v.atom }

// AtomString returns the atom bytes of v interpreted as a string.
func (v Value) AtomString() string { return string(v.atom) }

// Items returns the elements of v if v is a list, or nil if v is an atom.
func (v Value) Items() []Value { return v.list }

// Len returns the number of elements of v if v is a list, or 0 for an atom.
func (v Value) Len() int { return len(v.list) }

// Head returns the head atom of a "(tag ...)" shaped list (its first
// element's atom string), or "" if v is not a non-empty list whose first
// element is an atom.
func (v Value) Head() string {
	if !v.isList || len(v.list) == 0 || v.list[0].isList {
		return ""
	}
	return string(v.list[0].atom)
}

// Get returns the first element of v (which must be a list) that is itself
// a "(key ...)" shaped list, or ok=false if no such element exists.
func (v Value) Get(key string) (Value, bool) {
	if !v.isList {
		return Value{}, false
	}
	for _, item := range v.list {
		if item.Head() == key {
			return item, true
		}
	}
	return Value{}, false
}

// Bytes returns the canonical encoding of v.
func (v Value) Bytes() []byte {
	var buf bytes.Buffer
	v.encode(&buf)
	return buf.Bytes()
}

// String returns the canonical encoding of v as a string.
func (v Value) String() string { return string(v.Bytes()) }

func (v Value) encode(buf *bytes.Buffer) {
	if v.isList {
		buf.WriteByte('(')
		for _, c := range v.list {
			c.encode(buf)
		}
		buf.WriteByte(')')
		return
	}
	buf.WriteString(strconv.Itoa(len(v.atom)))
	buf.WriteByte(':')
	buf.Write(v.atom)
}

// Parse parses a single Value from the front of data, returning the
// unconsumed remainder. Use ParseAll when the entire input must be one
// Value.
func Parse(data []byte) (v Value, rest []byte, err error) {
	if len(data) == 0 {
		return Value{}, nil, xerr.New(xerr.InvalidSexp, "sexp: empty input")
	}
	if data[0] == '(' {
		rest = data[1:]
		var items []Value
		for {
			if len(rest) == 0 {
				return Value{}, nil, xerr.New(xerr.InvalidSexp, "sexp: unterminated list")
			}
			if rest[0] == ')' {
				rest = rest[1:]
				break
			}
			var item Value
			item, rest, err = Parse(rest)
			if err != nil {
				return Value{}, nil, err
			}
			items = append(items, item)
		}
		return List(items...), rest, nil
	}

	i := 0
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		i++
	}
	if i == 0 {
		return Value{}, nil, xerr.New(xerr.InvalidSexp, "sexp: expected atom length digit or '('")
	}
	n, convErr := strconv.Atoi(string(data[:i]))
	if convErr != nil {
		return Value{}, nil, xerr.Wrap(xerr.InvalidSexp, convErr, "sexp: atom length")
	}
	if i >= len(data) || data[i] != ':' {
		return Value{}, nil, xerr.New(xerr.InvalidSexp, "sexp: expected ':' after atom length")
	}
	i++
	if n < 0 || i+n > len(data) {
		return Value{}, nil, xerr.New(xerr.InvalidSexp, "sexp: truncated atom")
	}
	return Atom(data[i : i+n]), data[i+n:], nil
}

// ParseAll parses data as exactly one Value, failing if any bytes remain
// afterward.
func ParseAll(data []byte) (Value, error) {
	v, rest, err := Parse(data)
	if err != nil {
		return Value{}, err
	}
	if len(rest) != 0 {
		return Value{}, xerr.New(xerr.InvalidSexp, "sexp: trailing data after value")
	}
	return v, nil
}
