package cms

import (
	"io"

	asn1 "go.corvid.dev/x690"
	"go.corvid.dev/x690/ber"
	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/tlv"
	"go.corvid.dev/x690/xerr"
)

// ParseContentInfo reads the outer ContentInfo SEQUENCE from r: its
// contentType OID and, if present, the header of the `[0] EXPLICIT
// content` field it wraps. It leaves the returned Context's Decoder
// positioned at the very first byte of whatever SignedData/EnvelopedData
// SEQUENCE that content field wraps, ready for ParseSignedDataPart1 or
// ParseEnvelopedDataPart1.
//
// Any structural failure encountered here — a malformed header, a length
// that doesn't fit, unexpected EOF — is reported as [xerr.NoCmsObject]
// rather than a more specific BER complaint, since at this boundary there
// is no CMS object yet to say anything more specific about: the input may
// simply not be CMS at all.
func ParseContentInfo(r io.Reader, opts ...Option) (*Context, error) {
	c := &Context{}
	c.d, c.snapshot = ber.Capture(r)
	for _, o := range opts {
		o(&c.opts)
	}

	if err := c.parseContentInfo(); err != nil {
		return nil, asNoCmsObject(err)
	}
	return c, nil
}

func (c *Context) parseContentInfo() error {
	h, _, err := c.d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	if h.Tag != asn1.TagSequence || !h.Constructed {
		return xerr.New(xerr.InvalidCmsObject, "cms: ContentInfo is not a SEQUENCE")
	}
	debugf("ContentInfo SEQUENCE opened, indefinite=%v", h.Length == tlv.LengthIndefinite)

	oidBytes, err := c.readPrimitive(asn1.TagOID, "ContentInfo.contentType")
	if err != nil {
		return err
	}
	dotted, ok := oid.StringOf(oidBytes)
	if !ok {
		return xerr.New(xerr.InvalidCmsObject, "cms: malformed contentType OID")
	}
	c.ContentType = dotted
	debugf("ContentInfo.contentType = %s", dotted)

	ph, err := c.d.PeekHeader()
	if err != nil {
		return wrapErr(err)
	}
	if ph == (tlv.Header{}) {
		// No `[0] content` field: content was last, so this peek already
		// observed (but not yet committed) the end-of-contents closing
		// ContentInfo's own SEQUENCE. Commit it now; the object is done.
		if _, _, err := c.d.ReadHeader(); err != nil {
			return wrapErr(err)
		}
		c.HasContent = false
		return nil
	}
	if ph.Tag != contextTag(0) || !ph.Constructed {
		return xerr.New(xerr.InvalidCmsObject, "cms: ContentInfo: unexpected field before content")
	}
	if _, _, err := c.d.ReadHeader(); err != nil {
		return wrapErr(err)
	}
	c.HasContent = true
	return nil
}

// readPrimitive reads one primitive value expected to carry tag wantTag
// and returns its content bytes in full.
func (c *Context) readPrimitive(wantTag asn1.Tag, what string) ([]byte, error) {
	h, val, err := c.d.ReadHeader()
	if err != nil {
		return nil, wrapErr(err)
	}
	if h.Tag != wantTag || h.Constructed {
		return nil, xerr.New(xerr.InvalidCmsObject, "cms: %s: unexpected tag %s", what, h.Tag)
	}
	buf := make([]byte, val.Len())
	if _, err := io.ReadFull(val, buf); err != nil {
		return nil, wrapErr(err)
	}
	return buf, nil
}
