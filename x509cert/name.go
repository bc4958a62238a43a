package x509cert

import (
	"bytes"
	"encoding/hex"
	"strings"

	"golang.org/x/text/encoding/unicode"

	asn1 "go.corvid.dev/x690"
	"go.corvid.dev/x690/ber"
	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/tlv"
	"go.corvid.dev/x690/xerr"
)

// attrNames maps the RFC 2253 §2.3 well-known AttributeType OIDs to their
// short names. An OID not in this table is rendered as its dotted string.
var attrNames = map[string]string{
	"2.5.4.3":                    "CN",
	"2.5.4.4":                    "SN",
	"2.5.4.5":                    "serialNumber",
	"2.5.4.6":                    "C",
	"2.5.4.7":                    "L",
	"2.5.4.8":                    "ST",
	"2.5.4.9":                    "STREET",
	"2.5.4.10":                   "O",
	"2.5.4.11":                   "OU",
	"2.5.4.12":                   "title",
	"0.9.2342.19200300.100.1.25": "DC",
	"0.9.2342.19200300.100.1.1":  "UID",
	"1.2.840.113549.1.9.1":       "emailAddress",
}

// renderRDNSequence renders an RDNSequence node (its Children, one per
// RelativeDistinguishedName) as an RFC 2253 distinguished name string. The
// wire order of an RDNSequence runs least-specific-first; 2253 output runs
// most-specific-first, so the rendered RDNs are reversed.
//
// RenderRDNSequence exports this for package cms, which needs to render a
// SignerInfo's IssuerAndSerialNumber.issuer the same way a Certificate's
// issuer/subject is rendered here.
func RenderRDNSequence(seq *ber.Node, img ber.Image) (string, error) {
	return renderRDNSequence(seq, img)
}

func renderRDNSequence(seq *ber.Node, img ber.Image) (string, error) {
	parts := make([]string, 0, len(seq.Children))
	for _, rdn := range seq.Children {
		s, err := renderRDN(rdn, img)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ","), nil
}

func renderRDN(rdn *ber.Node, img ber.Image) (string, error) {
	vals := make([]string, 0, len(rdn.Children))
	for _, atv := range rdn.Children {
		s, err := renderAttributeTypeAndValue(atv, img)
		if err != nil {
			return "", err
		}
		vals = append(vals, s)
	}
	return strings.Join(vals, "+"), nil
}

func renderAttributeTypeAndValue(atv *ber.Node, img ber.Image) (string, error) {
	typeNode := ber.Find(atv, "type")
	valueNode := ber.Find(atv, "value")
	if typeNode == nil || !typeNode.Present() || valueNode == nil || !valueNode.Present() {
		return "", xerr.New(xerr.InvalidObject, "x509cert: malformed AttributeTypeAndValue")
	}
	dotted, ok := oid.StringOf(typeNode.Content(img))
	if !ok {
		return "", xerr.New(xerr.InvalidObject, "x509cert: malformed attribute type OID")
	}
	value, err := decodeAttributeValue(valueNode, img)
	if err != nil {
		return "", err
	}
	return attrLabel(dotted) + "=" + escapeRDNValue(value), nil
}

func attrLabel(dotted string) string {
	if n, ok := attrNames[dotted]; ok {
		return n
	}
	return dotted
}

// decodeAttributeValue interprets an AttributeTypeAndValue.value ANY leaf
// according to its own wire tag. String types recognised by RFC 5280's
// DirectoryString are decoded to UTF-8; anything else is rendered as a
// "#<hex>" fallback per RFC 2253 §2.4's rule for values that are not
// strings of a recognised type.
func decodeAttributeValue(n *ber.Node, img ber.Image) (string, error) {
	raw := n.Bytes(img)
	d := tlv.NewDecoder(bytes.NewReader(raw))
	h, v, err := d.ReadHeader()
	if err != nil {
		return "", xerr.Wrap(xerr.BerError, err, "x509cert: malformed attribute value")
	}
	if h.Constructed {
		return "#" + hex.EncodeToString(raw), nil
	}
	content := make([]byte, v.Len())
	if _, err := v.Read(content); err != nil {
		return "", xerr.Wrap(xerr.ObjectTooShort, err, "x509cert: truncated attribute value")
	}

	switch h.Tag {
	case asn1.TagUTF8String, asn1.TagPrintableString, asn1.TagIA5String,
		asn1.TagVisibleString, asn1.TagNumericString, asn1.TagTeletexString:
		return string(content), nil
	case asn1.TagBMPString:
		return decodeUTF16BE(content)
	case asn1.TagUniversalString:
		return decodeUTF32BE(content), nil
	default:
		return "#" + hex.EncodeToString(raw), nil
	}
}

// decodeUTF16BE decodes a BMPString's UCS-2/UTF-16BE content to UTF-8,
// using the ecosystem's own UTF-16 codec rather than a hand-rolled walk.
func decodeUTF16BE(content []byte) (string, error) {
	out, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(content)
	if err != nil {
		return "", xerr.Wrap(xerr.InvalidObject, err, "x509cert: malformed BMPString")
	}
	return string(out), nil
}

// decodeUTF32BE decodes a UniversalString's UCS-4/UTF-32BE content.
// golang.org/x/text carries no UTF-32 codec, so this one case is hand
// decoded rather than reached for a library that doesn't exist in the
// ecosystem.
func decodeUTF32BE(content []byte) string {
	var sb strings.Builder
	for i := 0; i+4 <= len(content); i += 4 {
		r := rune(uint32(content[i])<<24 | uint32(content[i+1])<<16 | uint32(content[i+2])<<8 | uint32(content[i+3]))
		sb.WriteRune(r)
	}
	return sb.String()
}

// escapeRDNValue applies RFC 2253 §2.4's escaping rules: a leading '#' or
// space, a trailing space, a null byte, and the six structural characters
// are each backslash-escaped.
func escapeRDNValue(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		switch {
		case r == 0:
			b.WriteString(`\00`)
		case i == 0 && (r == ' ' || r == '#'):
			b.WriteByte('\\')
			b.WriteRune(r)
		case i == len(runes)-1 && r == ' ':
			b.WriteByte('\\')
			b.WriteRune(r)
		case strings.ContainsRune(`,+"\<>;`, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
