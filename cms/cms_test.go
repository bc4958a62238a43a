package cms_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.corvid.dev/x690/cms"
	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/xerr"
)

// enc builds a short-form DER TLV. It only supports lengths under 128,
// which is all these tests need.
func enc(tag byte, contents ...[]byte) []byte {
	var content []byte
	for _, c := range contents {
		content = append(content, c...)
	}
	if len(content) >= 128 {
		panic("enc: test fixture too large for short-form length")
	}
	return append([]byte{tag, byte(len(content))}, content...)
}

const sha256OID = "2.16.840.1.101.3.4.2.1"
const rsaOID = "1.2.840.113549.1.1.1"

func algorithmIdentifier(dotted string) []byte {
	return enc(0x30, enc(0x06, oid.DER(dotted)))
}

// signedDataDER builds a minimal but structurally complete SignedData
// ContentInfo: one digest algorithm, no certificates, no crls, a single
// SignerInfo identified by subjectKeyIdentifier, and either detached or
// attached content depending on content.
func signedDataDER(content []byte) []byte {
	digestAlgos := enc(0x31, algorithmIdentifier(sha256OID))

	var encap []byte
	if content == nil {
		encap = enc(0x30, enc(0x06, oid.DER("1.2.840.113549.1.7.1")))
	} else {
		encap = enc(0x30,
			enc(0x06, oid.DER("1.2.840.113549.1.7.1")),
			enc(0xA0, enc(0x04, content)),
		)
	}

	sid := enc(0x80, []byte{0xAA, 0xBB, 0xCC})
	signerInfo := enc(0x30,
		enc(0x02, []byte{0x01}), // version
		sid,
		algorithmIdentifier(sha256OID),
		algorithmIdentifier(rsaOID),
		enc(0x04, []byte{0x01, 0x02, 0x03, 0x04}), // signature
	)
	signerInfos := enc(0x31, signerInfo)

	signedData := enc(0x30,
		enc(0x02, []byte{0x01}), // version
		digestAlgos,
		encap,
		signerInfos,
	)

	return enc(0x30,
		enc(0x06, oid.DER("1.2.840.113549.1.7.2")),
		enc(0xA0, signedData),
	)
}

func TestSignedData_Attached_RoundTrip(t *testing.T) {
	payload := []byte("hello cms")
	der := signedDataDER(payload)

	c, err := cms.ParseContentInfo(bytes.NewReader(der))
	require.NoError(t, err)
	assert.Equal(t, cms.OIDSignedData, c.ContentType)
	assert.True(t, c.HasContent)

	require.NoError(t, cms.ParseSignedDataPart1(c))
	assert.Equal(t, 1, c.Version)
	require.Len(t, c.DigestAlgos, 1)
	assert.Equal(t, sha256OID, c.DigestAlgos[0])
	assert.False(t, c.DetachedData)

	r, ok := c.Content()
	require.True(t, ok)
	got := make([]byte, len(payload))
	_, err = r.Read(got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, cms.ParseSignedDataPart2(c))
	require.Equal(t, 0, len(c.CertList))
	require.Equal(t, 1, c.SignerInfoCount())

	si := c.SignerInfo(0)
	digestAlgo, err := si.DigestAlgorithm()
	require.NoError(t, err)
	assert.Equal(t, sha256OID, digestAlgo)

	sigAlgo, err := si.SignatureAlgorithm()
	require.NoError(t, err)
	assert.Equal(t, rsaOID, sigAlgo)

	sig, err := si.Signature()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, sig)

	id, err := si.SignerIdentifier()
	require.NoError(t, err)
	assert.Equal(t, "#aabbcc", id)

	_, ok = si.SignedAttributes()
	assert.False(t, ok)
}

// derLength renders n as a DER length, using long form once n reaches 128,
// since an embedded Certificate comfortably exceeds the short-form range.
func derLength(n int) []byte {
	if n < 128 {
		return []byte{byte(n)}
	}
	var b []byte
	for v := n; v > 0; v >>= 8 {
		b = append([]byte{byte(v)}, b...)
	}
	return append([]byte{0x80 | byte(len(b))}, b...)
}

func encLong(tag byte, contents ...[]byte) []byte {
	var content []byte
	for _, c := range contents {
		content = append(content, c...)
	}
	return append(append([]byte{tag}, derLength(len(content))...), content...)
}

// minimalCertificateDER builds a structurally complete v3 Certificate with
// the given serial number, reusing the same field shapes as signedDataDER's
// fixtures but through the long-form encoder since the whole object exceeds
// 128 bytes.
func minimalCertificateDER(serial byte) []byte {
	sigAlgID := algorithmIdentifier(rsaOID)
	issuer := encLong(0x30, encLong(0x31, encLong(0x30, encLong(0x06, oid.DER("2.5.4.3")), encLong(0x13, []byte("Test CA")))))
	validity := encLong(0x30,
		encLong(0x17, []byte("250101000000Z")),
		encLong(0x17, []byte("300101000000Z")),
	)
	pubKeySeq := encLong(0x30, encLong(0x02, []byte{0x00, 0xAB, 0xCD, 0xEF}), encLong(0x02, []byte{0x01, 0x00, 0x01}))
	spki := encLong(0x30, sigAlgID, encLong(0x03, append([]byte{0x00}, pubKeySeq...)))

	tbs := encLong(0x30,
		append(append(append(append(append(
			encLong(0x02, []byte{serial}),
			sigAlgID...),
			issuer...),
			validity...),
			issuer...),
			spki...),
	)
	sigBitString := encLong(0x03, append([]byte{0x00}, []byte{0x01, 0x02, 0x03, 0x04}...))
	return encLong(0x30, append(append(tbs, sigAlgID...), sigBitString...))
}

func TestSignedData_WithEmbeddedCertificate(t *testing.T) {
	cert := minimalCertificateDER(0x2A)

	digestAlgos := enc(0x31, algorithmIdentifier(sha256OID))
	encap := enc(0x30, enc(0x06, oid.DER("1.2.840.113549.1.7.1")))
	sid := enc(0x80, []byte{0xAA, 0xBB, 0xCC})
	signerInfo := enc(0x30,
		enc(0x02, []byte{0x01}),
		sid,
		algorithmIdentifier(sha256OID),
		algorithmIdentifier(rsaOID),
		enc(0x04, []byte{0x01, 0x02, 0x03, 0x04}),
	)
	signerInfos := enc(0x31, signerInfo)
	certificates := encLong(0xA0, cert)

	signedData := encLong(0x30,
		append(append(append(append(
			enc(0x02, []byte{0x01}),
			digestAlgos...),
			encap...),
			certificates...),
			signerInfos...),
	)
	der := encLong(0x30, append(enc(0x06, oid.DER("1.2.840.113549.1.7.2")), encLong(0xA0, signedData)...))

	c, err := cms.ParseContentInfo(bytes.NewReader(der))
	require.NoError(t, err)
	require.NoError(t, cms.ParseSignedDataPart1(c))
	require.NoError(t, cms.ParseSignedDataPart2(c))

	require.Len(t, c.CertList, 1)
	serial, ok := c.CertList[0].Serial()
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01, 0x2A}, serial)
}

func TestSignedData_Detached(t *testing.T) {
	der := signedDataDER(nil)

	c, err := cms.ParseContentInfo(bytes.NewReader(der))
	require.NoError(t, err)
	require.NoError(t, cms.ParseSignedDataPart1(c))
	assert.True(t, c.DetachedData)

	_, ok := c.Content()
	assert.False(t, ok)

	require.NoError(t, cms.ParseSignedDataPart2(c))
	assert.Equal(t, 1, c.SignerInfoCount())
}

func TestParseContentInfo_GarbageBytes_NoCmsObject(t *testing.T) {
	_, err := cms.ParseContentInfo(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.NoCmsObject))
}

func TestParseContentInfo_IndefiniteOuterLength_Accepted(t *testing.T) {
	inner := signedDataDER([]byte("x"))
	// Re-wrap the whole ContentInfo using the indefinite-length form:
	// strip the outer SEQUENCE's definite length and append EOC.
	require.True(t, inner[0] == 0x30)
	body := inner[2:]
	indefinite := append([]byte{0x30, 0x80}, body...)
	indefinite = append(indefinite, 0x00, 0x00)

	c, err := cms.ParseContentInfo(bytes.NewReader(indefinite))
	require.NoError(t, err)
	assert.Equal(t, cms.OIDSignedData, c.ContentType)
}

func TestSignedData_IndefiniteDigestAlgorithmsSet_Unsupported(t *testing.T) {
	digestAlgos := append([]byte{0x31, 0x80}, algorithmIdentifier(sha256OID)...)
	digestAlgos = append(digestAlgos, 0x00, 0x00)

	encap := enc(0x30, enc(0x06, oid.DER("1.2.840.113549.1.7.1")))
	signerInfos := enc(0x31, enc(0x30,
		enc(0x02, []byte{0x01}),
		enc(0x80, []byte{0xAA}),
		algorithmIdentifier(sha256OID),
		algorithmIdentifier(rsaOID),
		enc(0x04, []byte{0x01}),
	))
	signedData := enc(0x30,
		concatAll(enc(0x02, []byte{0x01}), digestAlgos, encap, signerInfos),
	)

	der := enc(0x30,
		enc(0x06, oid.DER("1.2.840.113549.1.7.2")),
		enc(0xA0, signedData),
	)

	c, err := cms.ParseContentInfo(bytes.NewReader(der))
	require.NoError(t, err)
	err = cms.ParseSignedDataPart1(c)
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.UnsupportedEncoding))
}

func concatAll(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
