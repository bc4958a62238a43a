package cms

import (
	asn1 "go.corvid.dev/x690"
	"go.corvid.dev/x690/ber"
	"go.corvid.dev/x690/keyinfo"
	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/schema"
	"go.corvid.dev/x690/tlv"
	"go.corvid.dev/x690/xerr"
)

// ParseEnvelopedDataPart1 reads the whole of an EnvelopedData structure
// except its final encryptedContent field, which [Context.Content]
// exposes for streaming through a cipher. There is no "part 2": once the
// caller is done with Content(), call Context.Finish to close out the
// structure (including ContentInfo itself).
func ParseEnvelopedDataPart1(c *Context) error {
	if c.ContentType != OIDEnvelopedData {
		return xerr.New(xerr.InvalidCmsObject, "cms: ContentInfo.contentType is not envelopedData")
	}
	if !c.HasContent {
		return xerr.New(xerr.InvalidCmsObject, "cms: EnvelopedData: ContentInfo carries no content")
	}

	h, _, err := c.d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	if h.Tag != asn1.TagSequence || !h.Constructed {
		return xerr.New(xerr.InvalidCmsObject, "cms: EnvelopedData is not a SEQUENCE")
	}

	version, err := c.readVersion()
	if err != nil {
		return err
	}
	c.Version = version
	debugf("EnvelopedData.version = %d", version)

	ph, err := c.d.PeekHeader()
	if err != nil {
		return wrapErr(err)
	}
	if ph != (tlv.Header{}) && ph.Tag == contextTag(0) {
		return xerr.New(xerr.UnsupportedCmsObject, "cms: EnvelopedData.originatorInfo is not supported")
	}

	recipType := schema.Default().MustLookup("RecipientInfos")
	node, err := ber.DecodeNode(c.d, recipType, "recipientInfos")
	if err != nil {
		return err
	}
	c.recipientInfosNode = node
	c.recipientInfosImg = c.snapshot()

	return c.readEncryptedContentInfo()
}

func (c *Context) readEncryptedContentInfo() error {
	h, _, err := c.d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	if h.Tag != asn1.TagSequence || !h.Constructed {
		return xerr.New(xerr.InvalidCmsObject, "cms: EncryptedContentInfo is not a SEQUENCE")
	}

	oidBytes, err := c.readPrimitive(asn1.TagOID, "EncryptedContentInfo.contentType")
	if err != nil {
		return err
	}
	dotted, ok := oid.StringOf(oidBytes)
	if !ok {
		return xerr.New(xerr.InvalidCmsObject, "cms: malformed EncryptedContentInfo.contentType OID")
	}
	c.InnerContentOID = dotted

	algType := schema.Default().MustLookup("AlgorithmIdentifier")
	algNode, err := ber.DecodeNode(c.d, algType, "contentEncryptionAlgorithm")
	if err != nil {
		return err
	}
	algo, err := keyinfo.GetAlgorithm(algNode.Bytes(c.snapshot()))
	if err != nil {
		return err
	}
	c.EncrAlgoOID = algo.OID
	c.EncrIV = algo.Params

	ph, err := c.d.PeekHeader()
	if err != nil {
		return wrapErr(err)
	}
	if ph == (tlv.Header{}) || ph.Tag != contextTag(0) {
		c.ContentLen = -1
		c.DetachedData = true
		return nil
	}
	if ph.Constructed {
		return xerr.New(xerr.UnsupportedEncoding, "cms: fragmented (constructed) encryptedContent is not supported")
	}
	_, val, err := c.d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	c.contentValue = val
	c.DetachedData = false
	c.ContentIndefinite = false
	c.ContentLen = val.Len()
	return nil
}

// RecipientInfoCount returns the number of RecipientInfo entries decoded
// by ParseEnvelopedDataPart1.
func (c *Context) RecipientInfoCount() int {
	if c.recipientInfosNode == nil {
		return 0
	}
	return len(c.recipientInfosNode.Children)
}

// RecipientInfo returns the i'th decoded RecipientInfo (its sole
// supported CHOICE alternative, ktri: KeyTransRecipientInfo).
func (c *Context) RecipientInfo(i int) *RecipientInfo {
	return &RecipientInfo{node: c.recipientInfosNode.Children[i], img: c.recipientInfosImg}
}

// RecipientInfo wraps a single realised RecipientInfo CHOICE node.
type RecipientInfo struct {
	node *ber.Node
	img  ber.Image
}

// KeyEncryptionAlgorithm returns the ktri.keyEncryptionAlgorithm OID.
func (r *RecipientInfo) KeyEncryptionAlgorithm() (string, error) {
	ktri := r.ktri()
	if ktri == nil {
		return "", xerr.New(xerr.NoValue, "cms: RecipientInfo: no supported alternative")
	}
	n := ber.Find(ktri, "keyEncryptionAlgorithm")
	if n == nil || !n.Present() {
		return "", xerr.New(xerr.NoValue, "cms: ktri.keyEncryptionAlgorithm missing")
	}
	algo, err := keyinfo.GetAlgorithm(n.Bytes(r.img))
	if err != nil {
		return "", err
	}
	return algo.OID, nil
}

// EncryptedKey returns the ktri.encryptedKey bytes.
func (r *RecipientInfo) EncryptedKey() ([]byte, error) {
	ktri := r.ktri()
	if ktri == nil {
		return nil, xerr.New(xerr.NoValue, "cms: RecipientInfo: no supported alternative")
	}
	n := ber.Find(ktri, "encryptedKey")
	if n == nil || !n.Present() {
		return nil, xerr.New(xerr.NoValue, "cms: ktri.encryptedKey missing")
	}
	return n.Content(r.img), nil
}

func (r *RecipientInfo) ktri() *ber.Node {
	if len(r.node.Children) != 1 || r.node.Children[0].Name != "ktri" {
		return nil
	}
	return r.node.Children[0]
}
