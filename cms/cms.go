// Package cms implements the streaming outer-structure parser for
// Cryptographic Message Syntax (RFC 5652) ContentInfo/SignedData/
// EnvelopedData containers: component H of this module's design.
//
// CMS outer structures are frequently indefinite-length constructed
// encodings wrapping an arbitrarily large EncapsulatedContentInfo or
// EncryptedContentInfo payload, so unlike package x509cert (which hands a
// whole Certificate to package ber in one call) this package drives a
// single [tlv.Decoder] directly across the entire parse, via [ber.Capture],
// and only delegates bounded sub-objects — an embedded Certificate, the
// SignerInfos SET OF, the RecipientInfos SET OF — to package ber's
// schema-driven walk via [ber.DecodeNode]. Every other field (version,
// algorithm identifier SETs, the content OCTET STRING) is read directly
// off the shared Decoder, in the teacher's hand-rolled-driver style where
// one exists (the teacher has no CMS grammar at all, so this component's
// structural knowledge is grounded on the field shapes and OID tables in
// sloppyjuicy-ietf-cms/protocol/protocol.go instead, not its decode
// mechanism — see DESIGN.md).
package cms

import (
	"io"

	"github.com/sirupsen/logrus"

	asn1 "go.corvid.dev/x690"
	"go.corvid.dev/x690/ber"
	"go.corvid.dev/x690/tlv"
	"go.corvid.dev/x690/x509cert"
	"go.corvid.dev/x690/xerr"
)

// Content-type OIDs recognised in a ContentInfo.
const (
	OIDData          = "1.2.840.113549.1.7.1"
	OIDSignedData    = "1.2.840.113549.1.7.2"
	OIDEnvelopedData = "1.2.840.113549.1.7.3"
)

// SignerInfo/Attribute OIDs used by the supplemented SignerInfo accessors
// (see signed_data.go).
const (
	oidAttrContentType   = "1.2.840.113549.1.9.3"
	oidAttrMessageDigest = "1.2.840.113549.1.9.4"
	oidAttrSigningTime   = "1.2.840.113549.1.9.5"
)

// contextTag builds the context-specific, constructed-or-not tag used by
// an IMPLICIT/EXPLICIT [n] field at the outer structure level.
func contextTag(n uint) asn1.Tag {
	return asn1.ClassContextSpecific | asn1.Tag(n)
}

// Option configures a Context returned by [ParseContentInfo].
type Option func(*options)

type options struct {
	skipCRLs bool
}

// WithSkipCRLs opts into silently skipping a SignedData's `[1] IMPLICIT
// crls` field (preserving the rest of the parse) instead of the default
// rejection with [xerr.UnsupportedCmsObject]. Per spec.md §9's Open
// Question: reject unless the caller opts in.
func WithSkipCRLs() Option {
	return func(o *options) { o.skipCRLs = true }
}

// Context is a single streaming CMS parse in progress: one [tlv.Decoder]
// driven directly by [ParseContentInfo] and the SignedData/EnvelopedData
// part functions, accumulating a single growing capture buffer that every
// bounded sub-object's [ber.Node] tree (certificates, signerInfos,
// recipientInfos) references by offset. A Context is single-use and not
// safe for concurrent access, matching this module's single-threaded
// cooperative decoder model (spec.md §5).
type Context struct {
	d        *tlv.Decoder
	snapshot func() ber.Image
	opts     options

	// ContentType is the dotted OID from the outer ContentInfo.
	ContentType string
	// HasContent reports whether ContentInfo carried a `[0] EXPLICIT`
	// content field at all.
	HasContent bool

	// Version is the CMS version field of whichever of SignedData or
	// EnvelopedData was parsed.
	Version int

	// DigestAlgos holds the dotted OIDs from SignedData.digestAlgorithms,
	// in the order spec.md §3 describes: each OID is *prepended*, so the
	// list ends up in the reverse of wire order.
	DigestAlgos []string

	// InnerContentOID is SignedData.encapContentInfo.eContentType, or
	// EnvelopedData.encryptedContentInfo.contentType.
	InnerContentOID string
	// DetachedData is true when SignedData's encapContentInfo carried no
	// eContent field (the signed content is supplied out of band).
	DetachedData bool
	// ContentLen is the declared length of the inner content value, or
	// -1 if indefinite or absent.
	ContentLen int
	// ContentIndefinite reports whether the inner content used the
	// indefinite-length form.
	ContentIndefinite bool
	contentValue      *tlv.Value

	// CertList holds the certificates embedded in a SignedData's
	// `[0] IMPLICIT certificates` field, in wire order.
	CertList []*x509cert.Certificate

	signerInfosNode *ber.Node
	signerInfosImg  ber.Image

	recipientInfosNode *ber.Node
	recipientInfosImg  ber.Image

	// EncrAlgoOID and EncrIV are EncryptedContentInfo's
	// contentEncryptionAlgorithm OID and raw parameter bytes, per spec.md
	// §3's "encr_algo_oid, encr_iv bytes".
	EncrAlgoOID string
	EncrIV      []byte

	// signedDataDepth is the decoder's stack depth recorded right after
	// SignedData's own SEQUENCE header was read, i.e. the depth
	// ParseSignedDataPart2 must drain back to before reading the next
	// field of that same SEQUENCE (certificates, crls, signerInfos).
	signedDataDepth int
}

// Content returns a reader over the inner content/encryptedContent value
// (if any was found and is not detached), so a caller can stream it
// through a hash or cipher before calling the next parse step (which
// would otherwise auto-discard any unread remainder). ok is false if
// there is no such value to read (detached SignedData, or an absent
// optional EnvelopedData.encryptedContent).
func (c *Context) Content() (io.Reader, bool) {
	if c.contentValue == nil {
		return nil, false
	}
	return c.contentValue, true
}

// Finish closes out every constructed level this Context's Decoder still
// has open, discarding any unread remainder as it goes (most usefully: an
// unread Content() stream). ParseSignedDataPart2 calls this itself once
// signerInfos is read; EnvelopedData callers (there is no "part 2" for it)
// must call Finish explicitly once they are done reading Content().
func (c *Context) Finish() error { return c.drainTo(0) }

// drainTo reads end-of-contents markers off c.d until its stack depth
// returns to depth, relying on [tlv.Decoder]'s own auto-discard-on-read
// semantics to skip any unread bytes of a primitive value along the way.
// Every field this package reads is read in full before drainTo is ever
// called for its enclosing structure, so the only headers drainTo should
// ever see are end-of-contents markers; a real header surfacing here
// means the input carries a field this parser does not know about.
func (c *Context) drainTo(depth int) error {
	for c.d.StackDepth() > depth {
		h, _, err := c.d.ReadHeader()
		if err != nil {
			return wrapErr(err)
		}
		if h != (tlv.Header{}) {
			return xerr.New(xerr.BerError, "cms: expected end-of-contents while closing structure, got %s", h)
		}
	}
	return nil
}

// wrapErr classifies a tlv/ber-layer error into this module's xerr
// taxonomy, the same way package ber and package keyinfo do.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return xerr.Wrap(xerr.ObjectTooShort, err, "cms: truncated input")
	}
	if _, ok := err.(*tlv.SyntaxError); ok {
		return xerr.Wrap(xerr.BerError, err, "cms: malformed encoding")
	}
	return xerr.Wrap(xerr.ReadError, err, "cms: read error")
}

// asNoCmsObject rewrites the ambiguous structural error kinds spec.md §9
// singles out (BerError, InvalidCmsObject, ObjectTooShort) into
// NoCmsObject, but only at the outermost ContentInfo boundary: that is
// the one place non-CMS input should be diagnosed as "this isn't CMS at
// all" rather than as a specific structural complaint about a container
// the caller never claimed to be feeding us.
func asNoCmsObject(err error) error {
	if err == nil {
		return nil
	}
	switch k, ok := xerr.Of(err); {
	case ok && (k == xerr.BerError || k == xerr.InvalidCmsObject || k == xerr.ObjectTooShort):
		return xerr.Wrap(xerr.NoCmsObject, err, "cms: not a recognisable CMS ContentInfo")
	default:
		return err
	}
}

func debugf(format string, args ...any) {
	logrus.WithField("component", "cms").Debugf(format, args...)
}
