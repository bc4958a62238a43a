package x509cert_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/x509cert"
)

const rsaOID = "1.2.840.113549.1.1.1"
const rsaSha256OID = "1.2.840.113549.1.1.11"
const basicConstraintsOID = "2.5.29.19"

// enc builds a DER TLV, using long-form lengths once content reaches 128
// bytes, since a whole Certificate fixture comfortably exceeds that.
func enc(tag byte, contents ...[]byte) []byte {
	var content []byte
	for _, c := range contents {
		content = append(content, c...)
	}
	return append(append([]byte{tag}, derLength(len(content))...), content...)
}

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

func concatAll(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func algID(oidStr string, params []byte) []byte {
	if params == nil {
		return enc(0x30, enc(0x06, oid.DER(oidStr)))
	}
	return enc(0x30, enc(0x06, oid.DER(oidStr)), params)
}

func rdn(attrOID string, tag byte, value string) []byte {
	atv := enc(0x30, enc(0x06, oid.DER(attrOID)), enc(tag, []byte(value)))
	return enc(0x31, atv)
}

// certificateDER builds a minimal but structurally complete v3
// Certificate: a two-RDN issuer/subject, a validity window spanning a
// UTCTime notBefore and a GeneralizedTime notAfter, an RSA
// subjectPublicKeyInfo, one critical basicConstraints extension, and an
// RSA signature.
func certificateDER() (der []byte, tbs []byte, n, e, sig, extBody []byte) {
	sigAlgID := algID(rsaSha256OID, enc(0x05))

	issuer := enc(0x30, rdn("2.5.4.6", 0x13, "US"), rdn("2.5.4.3", 0x13, "Test CA"))
	subject := enc(0x30, rdn("2.5.4.6", 0x13, "US"), rdn("2.5.4.3", 0x13, "Test Leaf"))

	validity := enc(0x30,
		enc(0x17, []byte("250101000000Z")),
		enc(0x18, []byte("20351231235959Z")),
	)

	n = []byte{0x00, 0xAB, 0xCD, 0xEF}
	e = []byte{0x01, 0x00, 0x01}
	pubKeySeq := enc(0x30, enc(0x02, n), enc(0x02, e))
	spki := enc(0x30, algID(rsaOID, enc(0x05)), enc(0x03, append([]byte{0x00}, pubKeySeq...)))

	extBody = enc(0x30, enc(0x01, []byte{0xFF}))
	ext := enc(0x30, enc(0x06, oid.DER(basicConstraintsOID)), enc(0x01, []byte{0xFF}), enc(0x04, extBody))
	extensions := enc(0xA3, enc(0x30, ext))

	tbs = enc(0x30, concatAll(
		enc(0xA0, enc(0x02, []byte{0x02})), // version: v3
		enc(0x02, []byte{0x01}),            // serialNumber: 1
		sigAlgID,
		issuer,
		validity,
		subject,
		spki,
		extensions,
	))

	sig = []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	sigBitString := enc(0x03, append([]byte{0x00}, sig...))

	der = enc(0x30, concatAll(tbs, sigAlgID, sigBitString))
	return der, tbs, n, e, sig, extBody
}

func TestParse_FullRoundTrip(t *testing.T) {
	der, tbs, n, e, _, extBody := certificateDER()

	c, err := x509cert.Parse(der)
	require.NoError(t, err)

	serial, ok := c.Serial()
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01, 0x01}, serial)

	issuer, ok := c.Issuer()
	require.True(t, ok)
	assert.Equal(t, "CN=Test CA,C=US", issuer)

	subject, ok := c.Subject()
	require.True(t, ok)
	assert.Equal(t, "CN=Test Leaf,C=US", subject)

	notBefore, ok := c.Validity(x509cert.NotBefore)
	require.True(t, ok)
	assert.Equal(t, int64(1735689600), notBefore) // 2025-01-01T00:00:00Z

	notAfter, ok := c.Validity(x509cert.NotAfter)
	require.True(t, ok)
	assert.Equal(t, int64(2082758399), notAfter) // 2035-12-31T23:59:59Z

	digestAlgo, ok := c.DigestAlgo()
	require.True(t, ok)
	assert.Equal(t, "sha256", digestAlgo)

	pk, ok := c.PublicKey()
	require.True(t, ok)
	assert.Equal(t, "public-key", pk.Head())
	inner := pk.Items()[1]
	assert.Equal(t, "rsa", inner.Head())
	nVal, ok := inner.Get("n")
	require.True(t, ok)
	assert.Equal(t, n, nVal.Items()[1].AtomBytes())
	eVal, ok := inner.Get("e")
	require.True(t, ok)
	assert.Equal(t, e, eVal.Items()[1].AtomBytes())

	sv, ok := c.SigVal()
	require.True(t, ok)
	assert.Equal(t, "sig-val", sv.Head())
	hash, ok := sv.Get("hash")
	require.True(t, ok)
	assert.Equal(t, "sha256", hash.Items()[1].AtomString())

	require.Equal(t, 1, c.ExtensionCount())
	oidStr, critical, value, ok := c.Extension(0)
	require.True(t, ok)
	assert.Equal(t, basicConstraintsOID, oidStr)
	assert.True(t, critical)
	assert.Equal(t, extBody, value)

	var whole bytes.Buffer
	require.NoError(t, c.Hash(x509cert.HashWhole, &whole))
	assert.Equal(t, der, whole.Bytes())

	var tbsBuf bytes.Buffer
	require.NoError(t, c.Hash(x509cert.HashTBS, &tbsBuf))
	assert.Equal(t, tbs, tbsBuf.Bytes())

	assert.Equal(t, der, c.Image())
}

func TestParse_NoExtensions(t *testing.T) {
	sigAlgID := algID(rsaSha256OID, enc(0x05))
	issuer := enc(0x30, rdn("2.5.4.3", 0x13, "Root"))
	validity := enc(0x30,
		enc(0x17, []byte("250101000000Z")),
		enc(0x17, []byte("300101000000Z")),
	)
	n := []byte{0x01}
	e := []byte{0x01, 0x00, 0x01}
	pubKeySeq := enc(0x30, enc(0x02, n), enc(0x02, e))
	spki := enc(0x30, algID(rsaOID, enc(0x05)), enc(0x03, append([]byte{0x00}, pubKeySeq...)))

	tbs := enc(0x30, concatAll(
		enc(0x02, []byte{0x01}),
		sigAlgID,
		issuer,
		validity,
		issuer,
		spki,
	))
	sigBitString := enc(0x03, append([]byte{0x00}, []byte{0xAA, 0xBB}...))
	der := enc(0x30, concatAll(tbs, sigAlgID, sigBitString))

	c, err := x509cert.Parse(der)
	require.NoError(t, err)
	assert.Equal(t, 0, c.ExtensionCount())
	_, _, _, ok := c.Extension(0)
	assert.False(t, ok)
}
