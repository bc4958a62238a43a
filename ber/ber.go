// Package ber implements the schema-driven BER decoder described as
// component D of this module's design: given a [schema.Type] and a byte
// source, it produces a navigable [Node] tree over a captured in-memory
// [Image], the way package schema's grammar (rather than reflection over Go
// structs) says the bytes should be shaped.
//
// Every byte the decoder reads is appended to the Image as it is consumed,
// and each Node records where its own tag-length-value triplet lives in
// that Image by offset, header length, and content length, instead of
// holding a copy of its bytes. The whole tree and its Image are released
// together; nothing under a Node outlives the Image it was decoded from.
package ber

import (
	"go.corvid.dev/x690/schema"
)

// Image is the captured byte buffer holding one fully decoded top-level
// object. Nodes reference it by offset; the content bytes are never
// mutated once captured.
type Image []byte

// Node is one node of the tree produced by [Decode]. Children are owned
// exclusively by their parent; the whole tree borrows its content bytes
// from the [Image] it was decoded alongside.
//
// ContentLen is -1 for a schema placeholder that was never realised on the
// wire: an absent OPTIONAL field. A CHOICE node holds only the alternative
// that was taken; no placeholders are made for the others. Offset and
// HeaderLen are meaningless for such a placeholder.
type Node struct {
	// Type is the schema node this Node was decoded against.
	Type *schema.Type
	// Name is this node's path component, taken from the declaring field
	// name (or the module type name, for a top-level decode).
	Name string

	Offset     int
	HeaderLen  int
	ContentLen int

	// Children holds this node's direct children in schema-declared order.
	// A CHOICE node has exactly one child: the realised alternative.
	Children []*Node
	// Sibling links to the next child of this node's parent, or nil for
	// the last child (and for the root).
	Sibling *Node
}

// present reports whether n was actually realised on the wire.
func (n *Node) present() bool { return n != nil && n.ContentLen >= 0 }

// Bytes returns the complete tag-length-value encoding of n (header plus
// content) as a slice of img. It returns nil for an unrealised placeholder
// node.
func (n *Node) Bytes(img Image) []byte {
	if !n.present() {
		return nil
	}
	return img[n.Offset : n.Offset+n.HeaderLen+n.ContentLen]
}

// Content returns the content octets of n (excluding its header) as a
// slice of img. It returns nil for an unrealised placeholder node.
func (n *Node) Content(img Image) []byte {
	if !n.present() {
		return nil
	}
	start := n.Offset + n.HeaderLen
	return img[start : start+n.ContentLen]
}

// Present reports whether n denotes a value actually found on the wire, as
// opposed to a placeholder for an absent OPTIONAL field.
func (n *Node) Present() bool { return n.present() }

// Find descends from root by name, one dotted path component at a time,
// and returns the first matching node, or nil if any component along the
// path is missing. Find never matches root itself, only its descendants.
func Find(root *Node, path string) *Node {
	if root == nil || path == "" {
		return nil
	}
	cur := root
	for _, part := range splitPath(path) {
		next := childNamed(cur, part)
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func childNamed(n *Node, name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// splitPath splits a dotted path without pulling in strings.Split just for
// this one call site.
func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}
