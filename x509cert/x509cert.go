// Package x509cert implements a facade over an X.509 Certificate decoded by
// package ber against the grammar's Certificate type: typed accessors over
// the resulting node tree and image, in the teacher's small-accessor style —
// a thin typed reader over already-decoded bytes, not a second decode pass.
package x509cert

import (
	"bytes"
	"encoding/binary"
	"io"

	"go.corvid.dev/x690/ber"
	"go.corvid.dev/x690/keyinfo"
	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/schema"
	"go.corvid.dev/x690/sexp"
	"go.corvid.dev/x690/xerr"
)

// Certificate is a decoded X.509 Certificate: a node tree realised against
// the grammar's Certificate type, over an owned captured image. Accessors
// that can fail without the certificate itself being malformed (a missing
// optional field, an algorithm this module doesn't support) return ok=false
// and record the failure in LastError, so callers can distinguish "not
// present" from "failed to parse".
type Certificate struct {
	root    *ber.Node
	img     ber.Image
	lastErr error
}

// Parse decodes der as one Certificate.
func Parse(der []byte) (*Certificate, error) {
	t := schema.Default().MustLookup("Certificate")
	root, img, err := ber.Decode(t, bytes.NewReader(der))
	if err != nil {
		return nil, err
	}
	return &Certificate{root: root, img: img}, nil
}

// Image returns the complete captured encoding of the certificate.
func (c *Certificate) Image() []byte { return []byte(c.img) }

// LastError returns the most recent failure recorded by a nullable
// accessor, or nil if none of them have failed.
func (c *Certificate) LastError() error { return c.lastErr }

// HashTarget selects which node Hash feeds to its sink.
type HashTarget int

const (
	// HashWhole selects the entire Certificate SEQUENCE.
	HashWhole HashTarget = iota
	// HashTBS selects just the tbsCertificate SEQUENCE.
	HashTBS
)

// Hash writes the chosen node's complete tag-length-value encoding
// (header and content, exactly as it appeared on the wire) to sink.
func (c *Certificate) Hash(what HashTarget, sink io.Writer) error {
	var n *ber.Node
	switch what {
	case HashWhole:
		n = c.root
	case HashTBS:
		n = ber.Find(c.root, "tbsCertificate")
	default:
		return xerr.New(xerr.InvalidValue, "x509cert: unknown hash target %d", what)
	}
	if n == nil || !n.Present() {
		return xerr.New(xerr.NoValue, "x509cert: hash target not present")
	}
	if _, err := sink.Write(n.Bytes(c.img)); err != nil {
		return xerr.Wrap(xerr.ReadError, err, "x509cert: writing to hash sink")
	}
	return nil
}

// DigestAlgo reports the digest algorithm name (e.g. "sha256") the
// certificate's signatureAlgorithm advertises, via the signature table's
// digest hint.
func (c *Certificate) DigestAlgo() (string, bool) {
	n := ber.Find(c.root, "signatureAlgorithm")
	if n == nil || !n.Present() {
		c.lastErr = xerr.New(xerr.NoValue, "x509cert: signatureAlgorithm missing")
		return "", false
	}
	algo, err := keyinfo.GetAlgorithm(n.Bytes(c.img))
	if err != nil {
		c.lastErr = err
		return "", false
	}
	entry, err := oid.LookupSig(algo.OID)
	if err != nil {
		c.lastErr = err
		return "", false
	}
	if entry == nil || entry.DigestHint == "" {
		c.lastErr = xerr.New(xerr.UnknownAlgorithm, "x509cert: no digest hint for %s", algo.OID)
		return "", false
	}
	return entry.DigestHint, true
}

// Serial returns the certificate's serial number as a 4-byte big-endian
// length prefix followed by the raw two's-complement DER integer bytes.
func (c *Certificate) Serial() ([]byte, bool) {
	n := ber.Find(c.root, "tbsCertificate.serialNumber")
	if n == nil || !n.Present() {
		c.lastErr = xerr.New(xerr.NoValue, "x509cert: serialNumber missing")
		return nil, false
	}
	content := n.Content(c.img)
	out := make([]byte, 4+len(content))
	binary.BigEndian.PutUint32(out, uint32(len(content)))
	copy(out[4:], content)
	return out, true
}

// Issuer returns the RFC 2253 string form of the issuer Name.
func (c *Certificate) Issuer() (string, bool) {
	return c.renderName("tbsCertificate.issuer.rdnSequence")
}

// Subject returns the RFC 2253 string form of the subject Name.
func (c *Certificate) Subject() (string, bool) {
	return c.renderName("tbsCertificate.subject.rdnSequence")
}

func (c *Certificate) renderName(path string) (string, bool) {
	n := ber.Find(c.root, path)
	if n == nil || !n.Present() {
		c.lastErr = xerr.New(xerr.NoValue, "x509cert: name not present")
		return "", false
	}
	s, err := renderRDNSequence(n, c.img)
	if err != nil {
		c.lastErr = err
		return "", false
	}
	return s, true
}

// PublicKey converts the certificate's subjectPublicKeyInfo to its
// canonical symbolic form; see package keyinfo.
func (c *Certificate) PublicKey() (sexp.Value, bool) {
	n := ber.Find(c.root, "tbsCertificate.subjectPublicKeyInfo")
	if n == nil || !n.Present() {
		c.lastErr = xerr.New(xerr.NoValue, "x509cert: subjectPublicKeyInfo missing")
		return sexp.Value{}, false
	}
	v, err := keyinfo.KeyInfoToSexp(n.Bytes(c.img))
	if err != nil {
		c.lastErr = err
		return sexp.Value{}, false
	}
	return v, true
}

// SigVal converts the concatenation of the certificate's signatureAlgorithm
// and signatureValue to its canonical symbolic form; see package keyinfo.
func (c *Certificate) SigVal() (sexp.Value, bool) {
	algN := ber.Find(c.root, "signatureAlgorithm")
	sigN := ber.Find(c.root, "signatureValue")
	if algN == nil || !algN.Present() || sigN == nil || !sigN.Present() {
		c.lastErr = xerr.New(xerr.NoValue, "x509cert: signature fields missing")
		return sexp.Value{}, false
	}
	der := append(append([]byte{}, algN.Bytes(c.img)...), sigN.Bytes(c.img)...)
	v, err := keyinfo.CryptValToSexp(der, keyinfo.SigVal)
	if err != nil {
		c.lastErr = err
		return sexp.Value{}, false
	}
	return v, true
}

// extensionsField locates the realised Extensions SEQUENCE OF node, or nil
// if the TBSCertificate carries no extensions field.
func (c *Certificate) extensionsField() *ber.Node {
	tagged := ber.Find(c.root, "tbsCertificate.extensions")
	if tagged == nil || !tagged.Present() || len(tagged.Children) != 1 {
		return nil
	}
	return tagged.Children[0]
}

// ExtensionCount returns the number of extensions present on the
// certificate (0 if the extensions field itself is absent).
func (c *Certificate) ExtensionCount() int {
	exts := c.extensionsField()
	if exts == nil {
		return 0
	}
	return len(exts.Children)
}

// Extension returns the i'th extension's type OID, critical flag, and raw
// OCTET STRING value. ok is false if i is out of range.
func (c *Certificate) Extension(i int) (oidStr string, critical bool, value []byte, ok bool) {
	exts := c.extensionsField()
	if exts == nil || i < 0 || i >= len(exts.Children) {
		c.lastErr = xerr.New(xerr.NoValue, "x509cert: extension index %d out of range", i)
		return "", false, nil, false
	}
	ext := exts.Children[i]

	idNode := ber.Find(ext, "extnID")
	valNode := ber.Find(ext, "extnValue")
	if idNode == nil || !idNode.Present() || valNode == nil || !valNode.Present() {
		c.lastErr = xerr.New(xerr.InvalidObject, "x509cert: malformed Extension")
		return "", false, nil, false
	}
	dotted, ok2 := oid.StringOf(idNode.Content(c.img))
	if !ok2 {
		c.lastErr = xerr.New(xerr.InvalidObject, "x509cert: malformed extnID")
		return "", false, nil, false
	}

	crit := false
	if cn := ber.Find(ext, "critical"); cn != nil && cn.Present() {
		content := cn.Content(c.img)
		crit = len(content) > 0 && content[0] != 0
	}

	return dotted, crit, valNode.Content(c.img), true
}
