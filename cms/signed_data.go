package cms

import (
	"bytes"
	"time"

	asn1 "go.corvid.dev/x690"
	"go.corvid.dev/x690/ber"
	"go.corvid.dev/x690/keyinfo"
	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/schema"
	"go.corvid.dev/x690/tlv"
	"go.corvid.dev/x690/x509cert"
	"go.corvid.dev/x690/xerr"
)

// ParseSignedDataPart1 reads SignedData's own SEQUENCE header, its
// version and digestAlgorithms fields, and the shape (but not necessarily
// the content) of its encapContentInfo, then halts: if encapContentInfo
// carries an eContent field, [Context.Content] exposes it for streaming
// through a hash before [ParseSignedDataPart2] consumes certificates,
// crls and signerInfos.
func ParseSignedDataPart1(c *Context) error {
	if c.ContentType != OIDSignedData {
		return xerr.New(xerr.InvalidCmsObject, "cms: ContentInfo.contentType is not signedData")
	}
	if !c.HasContent {
		return xerr.New(xerr.InvalidCmsObject, "cms: SignedData: ContentInfo carries no content")
	}

	h, _, err := c.d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	if h.Tag != asn1.TagSequence || !h.Constructed {
		return xerr.New(xerr.InvalidCmsObject, "cms: SignedData is not a SEQUENCE")
	}
	c.signedDataDepth = c.d.StackDepth()

	version, err := c.readVersion()
	if err != nil {
		return err
	}
	if version < 0 || version > 4 {
		return xerr.New(xerr.UnsupportedCmsVersion, "cms: SignedData: unsupported version %d", version)
	}
	c.Version = version
	debugf("SignedData.version = %d", version)

	if err := c.readDigestAlgorithms(); err != nil {
		return err
	}
	return c.readEncapContentInfo()
}

// readVersion reads one small CMS version INTEGER.
func (c *Context) readVersion() (int, error) {
	h, val, err := c.d.ReadHeader()
	if err != nil {
		return 0, wrapErr(err)
	}
	if h.Tag != asn1.TagInteger || h.Constructed {
		return 0, xerr.New(xerr.InvalidCmsObject, "cms: expected version INTEGER, got %s", h.Tag)
	}
	buf := make([]byte, val.Len())
	if _, err := val.Read(buf); err != nil {
		return 0, wrapErr(err)
	}
	if len(buf) == 0 || len(buf) > 4 {
		return 0, xerr.New(xerr.InvalidCmsObject, "cms: malformed version INTEGER")
	}
	if buf[0]&0x80 != 0 {
		return 0, xerr.New(xerr.InvalidCmsObject, "cms: negative CMS version")
	}
	n := 0
	for _, b := range buf {
		n = n<<8 | int(b)
	}
	return n, nil
}

// readDigestAlgorithms reads SignedData.digestAlgorithms, a SET OF
// AlgorithmIdentifier that must use the definite-length form: spec.md §9
// rejects an indefinite-length digest-algorithm SET as
// [xerr.UnsupportedEncoding] rather than accept it, since nothing later in
// the structure depends on knowing its size up front the way the stream
// does for encapContentInfo.
func (c *Context) readDigestAlgorithms() error {
	h, _, err := c.d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	if h.Tag != asn1.TagSet || !h.Constructed {
		return xerr.New(xerr.InvalidCmsObject, "cms: digestAlgorithms is not a SET")
	}
	if h.Length == tlv.LengthIndefinite {
		return xerr.New(xerr.UnsupportedEncoding, "cms: indefinite-length digestAlgorithms SET is not supported")
	}

	algType := schema.Default().MustLookup("AlgorithmIdentifier")
	for {
		ph, err := c.d.PeekHeader()
		if err != nil {
			return wrapErr(err)
		}
		if ph == (tlv.Header{}) {
			break
		}
		node, err := ber.DecodeNode(c.d, algType, "algorithm")
		if err != nil {
			return err
		}
		algo, err := keyinfo.GetAlgorithm(node.Bytes(c.snapshot()))
		if err != nil {
			return err
		}
		c.DigestAlgos = append([]string{algo.OID}, c.DigestAlgos...)
	}
	if _, _, err := c.d.ReadHeader(); err != nil {
		return wrapErr(err)
	}
	return nil
}

// readEncapContentInfo reads EncapsulatedContentInfo's own SEQUENCE header
// and eContentType, then the shape of its optional eContent field, without
// draining eContent itself: that is left to the caller via Context.Content.
func (c *Context) readEncapContentInfo() error {
	h, _, err := c.d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	if h.Tag != asn1.TagSequence || !h.Constructed {
		return xerr.New(xerr.InvalidCmsObject, "cms: encapContentInfo is not a SEQUENCE")
	}

	oidBytes, err := c.readPrimitive(asn1.TagOID, "encapContentInfo.eContentType")
	if err != nil {
		return err
	}
	dotted, ok := oid.StringOf(oidBytes)
	if !ok {
		return xerr.New(xerr.InvalidCmsObject, "cms: malformed eContentType OID")
	}
	c.InnerContentOID = dotted

	ph, err := c.d.PeekHeader()
	if err != nil {
		return wrapErr(err)
	}
	if ph == (tlv.Header{}) {
		// eContent absent: this peek was already encapContentInfo's own
		// closing end-of-contents. Commit it; the content is detached.
		if _, _, err := c.d.ReadHeader(); err != nil {
			return wrapErr(err)
		}
		c.DetachedData = true
		c.ContentLen = -1
		return nil
	}
	if ph.Tag != contextTag(0) || !ph.Constructed {
		return xerr.New(xerr.InvalidCmsObject, "cms: encapContentInfo: unexpected field before eContent")
	}
	if _, _, err := c.d.ReadHeader(); err != nil {
		return wrapErr(err)
	}
	// Inside the `[0] EXPLICIT` wrapper: the OCTET STRING itself.
	ch, val, err := c.d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	if ch.Tag != asn1.TagOctetString {
		return xerr.New(xerr.InvalidCmsObject, "cms: eContent is not an OCTET STRING")
	}
	if ch.Constructed {
		return xerr.New(xerr.UnsupportedEncoding, "cms: fragmented (constructed) eContent is not supported")
	}
	c.contentValue = val
	c.ContentIndefinite = ch.Length == tlv.LengthIndefinite
	if c.ContentIndefinite {
		c.ContentLen = -1
	} else {
		c.ContentLen = ch.Length
	}
	c.DetachedData = false
	return nil
}

// ParseSignedDataPart2 consumes whatever of encapContentInfo.eContent the
// caller left unread, SignedData's optional certificates and crls fields,
// and the required signerInfos, then closes out the whole ContentInfo
// structure via Context.Finish.
func ParseSignedDataPart2(c *Context) error {
	if err := c.drainTo(c.signedDataDepth); err != nil {
		return err
	}

	if err := c.readCertificates(); err != nil {
		return err
	}
	if err := c.readCRLs(); err != nil {
		return err
	}

	signerInfosType := schema.Default().MustLookup("SignerInfos")
	node, err := ber.DecodeNode(c.d, signerInfosType, "signerInfos")
	if err != nil {
		return err
	}
	c.signerInfosNode = node
	c.signerInfosImg = c.snapshot()

	return c.Finish()
}

func (c *Context) readCertificates() error {
	ph, err := c.d.PeekHeader()
	if err != nil {
		return wrapErr(err)
	}
	if ph != (tlv.Header{}) && ph.Tag == contextTag(0) && ph.Constructed {
		if _, _, err := c.d.ReadHeader(); err != nil {
			return wrapErr(err)
		}
		certType := schema.Default().MustLookup("Certificate")
		for {
			cph, err := c.d.PeekHeader()
			if err != nil {
				return wrapErr(err)
			}
			if cph == (tlv.Header{}) {
				break
			}
			node, err := ber.DecodeNode(c.d, certType, "certificate")
			if err != nil {
				return err
			}
			cert, err := x509cert.Parse(node.Bytes(c.snapshot()))
			if err != nil {
				return err
			}
			c.CertList = append(c.CertList, cert)
		}
		if _, _, err := c.d.ReadHeader(); err != nil {
			return wrapErr(err)
		}
	}
	return nil
}

// readCRLs rejects SignedData.crls by default, per spec.md §9's Open
// Question resolution, unless the caller opted in with WithSkipCRLs, in
// which case the whole `[1]` field is skipped wholesale.
func (c *Context) readCRLs() error {
	ph, err := c.d.PeekHeader()
	if err != nil {
		return wrapErr(err)
	}
	if ph == (tlv.Header{}) || ph.Tag != contextTag(1) || !ph.Constructed {
		return nil
	}
	if !c.opts.skipCRLs {
		return xerr.New(xerr.UnsupportedCmsObject, "cms: SignedData.crls is not supported (see WithSkipCRLs)")
	}
	if _, _, err := c.d.ReadHeader(); err != nil {
		return wrapErr(err)
	}
	return wrapErr(c.d.Skip())
}

// SignerInfoCount returns the number of SignerInfo entries decoded by
// ParseSignedDataPart2.
func (c *Context) SignerInfoCount() int {
	if c.signerInfosNode == nil {
		return 0
	}
	return len(c.signerInfosNode.Children)
}

// SignerInfo returns the i'th decoded SignerInfo.
func (c *Context) SignerInfo(i int) *SignerInfo {
	return &SignerInfo{node: c.signerInfosNode.Children[i], img: c.signerInfosImg}
}

// SignerInfo is a single realised SignerInfo, accessed the way
// x509cert.Certificate exposes its own fields: by walking a Node tree that
// was already fully decoded by package ber.
type SignerInfo struct {
	node *ber.Node
	img  ber.Image
}

// DigestAlgorithm returns the dotted digest algorithm OID.
func (s *SignerInfo) DigestAlgorithm() (string, error) {
	n := ber.Find(s.node, "digestAlgorithm")
	if n == nil || !n.Present() {
		return "", xerr.New(xerr.NoValue, "cms: SignerInfo.digestAlgorithm missing")
	}
	algo, err := keyinfo.GetAlgorithm(n.Bytes(s.img))
	if err != nil {
		return "", err
	}
	return algo.OID, nil
}

// SignatureAlgorithm returns the dotted signature algorithm OID.
func (s *SignerInfo) SignatureAlgorithm() (string, error) {
	n := ber.Find(s.node, "signatureAlgorithm")
	if n == nil || !n.Present() {
		return "", xerr.New(xerr.NoValue, "cms: SignerInfo.signatureAlgorithm missing")
	}
	algo, err := keyinfo.GetAlgorithm(n.Bytes(s.img))
	if err != nil {
		return "", err
	}
	return algo.OID, nil
}

// Signature returns the raw signature bytes.
func (s *SignerInfo) Signature() ([]byte, error) {
	n := ber.Find(s.node, "signature")
	if n == nil || !n.Present() {
		return nil, xerr.New(xerr.NoValue, "cms: SignerInfo.signature missing")
	}
	return n.Content(s.img), nil
}

// SignerIdentifier renders the signer's identity: either the RFC 2253
// string form of IssuerAndSerialNumber.issuer plus its serial number, or
// (for the subjectKeyIdentifier alternative) "#<hex>".
func (s *SignerInfo) SignerIdentifier() (string, error) {
	n := ber.Find(s.node, "sid")
	if n == nil || !n.Present() || len(n.Children) != 1 {
		return "", xerr.New(xerr.NoValue, "cms: SignerInfo.sid missing")
	}
	choice := n.Children[0]
	switch choice.Name {
	case "subjectKeyIdentifier":
		return "#" + hexString(choice.Content(s.img)), nil
	case "issuerAndSerialNumber":
		issuer := ber.Find(choice, "issuer")
		serial := ber.Find(choice, "serialNumber")
		if issuer == nil || !issuer.Present() || serial == nil || !serial.Present() {
			return "", xerr.New(xerr.InvalidObject, "cms: malformed IssuerAndSerialNumber")
		}
		if len(issuer.Children) != 1 {
			return "", xerr.New(xerr.InvalidObject, "cms: malformed Name")
		}
		name, err := x509cert.RenderRDNSequence(issuer.Children[0], s.img)
		if err != nil {
			return "", err
		}
		return name + "#" + hexString(serial.Content(s.img)), nil
	default:
		return "", xerr.New(xerr.InvalidObject, "cms: unknown SignerIdentifier alternative %q", choice.Name)
	}
}

// SignedAttributes reports whether signedAttrs is present and, if so, the
// raw attribute value bytes keyed by dotted attribute-type OID.
func (s *SignerInfo) SignedAttributes() (map[string][][]byte, bool) {
	n := ber.Find(s.node, "signedAttrs")
	if n == nil || !n.Present() {
		return nil, false
	}
	out := map[string][][]byte{}
	for _, attr := range n.Children {
		typeNode := ber.Find(attr, "attrType")
		valuesNode := ber.Find(attr, "attrValues")
		if typeNode == nil || !typeNode.Present() || valuesNode == nil || !valuesNode.Present() {
			continue
		}
		dotted, ok := oid.StringOf(typeNode.Content(s.img))
		if !ok {
			continue
		}
		for _, v := range valuesNode.Children {
			out[dotted] = append(out[dotted], v.Bytes(s.img))
		}
	}
	return out, true
}

// MessageDigest returns the message-digest signed attribute's content.
func (s *SignerInfo) MessageDigest() ([]byte, bool) {
	attrs, ok := s.SignedAttributes()
	if !ok {
		return nil, false
	}
	vs, ok := attrs[oidAttrMessageDigest]
	if !ok || len(vs) != 1 {
		return nil, false
	}
	content, ok := unwrapOctetString(vs[0])
	return content, ok
}

// ContentTypeAttr returns the content-type signed attribute's OID.
func (s *SignerInfo) ContentTypeAttr() (string, bool) {
	attrs, ok := s.SignedAttributes()
	if !ok {
		return "", false
	}
	vs, ok := attrs[oidAttrContentType]
	if !ok || len(vs) != 1 {
		return "", false
	}
	return unwrapOID(vs[0])
}

// SigningTime returns the signing-time signed attribute as Unix epoch
// seconds.
func (s *SignerInfo) SigningTime() (int64, bool) {
	attrs, ok := s.SignedAttributes()
	if !ok {
		return 0, false
	}
	vs, ok := attrs[oidAttrSigningTime]
	if !ok || len(vs) != 1 {
		return 0, false
	}
	d := tlv.NewDecoder(bytes.NewReader(vs[0]))
	h, val, err := d.ReadHeader()
	if err != nil || h.Constructed {
		return 0, false
	}
	buf := make([]byte, val.Len())
	if _, err := val.Read(buf); err != nil {
		return 0, false
	}
	var t time.Time
	switch h.Tag {
	case asn1.TagUTCTime:
		t, ok = x509cert.ParseUTCTime(buf)
	case asn1.TagGeneralizedTime:
		t, ok = x509cert.ParseGeneralizedTime(buf)
	default:
		return 0, false
	}
	if !ok {
		return 0, false
	}
	return t.Unix(), true
}

func hexString(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}

// unwrapOctetString reads one top-level OCTET STRING TLV and returns its
// content, for an attribute value whose ANY leaf is known to carry one.
func unwrapOctetString(der []byte) ([]byte, bool) {
	d := tlv.NewDecoder(bytes.NewReader(der))
	h, val, err := d.ReadHeader()
	if err != nil || h.Tag != asn1.TagOctetString || h.Constructed {
		return nil, false
	}
	buf := make([]byte, val.Len())
	if _, err := val.Read(buf); err != nil {
		return nil, false
	}
	return buf, true
}

func unwrapOID(der []byte) (string, bool) {
	d := tlv.NewDecoder(bytes.NewReader(der))
	h, val, err := d.ReadHeader()
	if err != nil || h.Tag != asn1.TagOID || h.Constructed {
		return "", false
	}
	buf := make([]byte, val.Len())
	if _, err := val.Read(buf); err != nil {
		return "", false
	}
	return oid.StringOf(buf)
}
