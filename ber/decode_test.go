package ber_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.corvid.dev/x690/ber"
	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/schema"
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

func rsaOID(t *testing.T) []byte {
	t.Helper()
	e, err := oid.LookupPK("1.2.840.113549.1.1.1")
	require.NoError(t, err)
	require.NotNil(t, e)
	return e.OIDDER
}

func TestDecode_AlgorithmIdentifier_NoParams(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("AlgorithmIdentifier")
	require.True(t, ok)

	oidTLV := enc(0x06, rsaOID(t))
	der := enc(0x30, oidTLV)

	root, img, err := ber.Decode(typ, bytes.NewReader(der))
	require.NoError(t, err)
	require.Len(t, root.Children, 2)

	algo := root.Children[0]
	assert.Equal(t, "algorithm", algo.Name)
	assert.True(t, algo.Present())
	assert.Equal(t, oidTLV[2:], algo.Content(img))

	params := root.Children[1]
	assert.Equal(t, "parameters", params.Name)
	assert.False(t, params.Present())

	assert.Equal(t, der, []byte(root.Bytes(img)))
}

func TestDecode_AlgorithmIdentifier_WithParams(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("AlgorithmIdentifier")
	require.True(t, ok)

	oidTLV := enc(0x06, rsaOID(t))
	nullTLV := enc(0x05)
	der := enc(0x30, oidTLV, nullTLV)

	root, img, err := ber.Decode(typ, bytes.NewReader(der))
	require.NoError(t, err)
	require.Len(t, root.Children, 2)

	params := root.Children[1]
	require.True(t, params.Present())
	assert.Equal(t, nullTLV, params.Bytes(img))
}

func TestDecode_Extension_CriticalPresent(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("Extension")
	require.True(t, ok)

	extnID := enc(0x06, []byte{0x55, 0x1D, 0x0F}) // 2.5.29.15 keyUsage
	critical := enc(0x01, []byte{0xFF})
	extnValue := enc(0x04, []byte{0x03, 0x02, 0x05, 0xA0})
	der := enc(0x30, extnID, critical, extnValue)

	root, img, err := ber.Decode(typ, bytes.NewReader(der))
	require.NoError(t, err)
	require.Len(t, root.Children, 3)

	assert.Equal(t, "extnID", root.Children[0].Name)
	assert.True(t, root.Children[1].Present())
	assert.Equal(t, []byte{0xFF}, root.Children[1].Content(img))
	assert.True(t, root.Children[2].Present())
}

func TestDecode_Extension_CriticalAbsent(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("Extension")
	require.True(t, ok)

	extnID := enc(0x06, []byte{0x55, 0x1D, 0x0F})
	extnValue := enc(0x04, []byte{0x03, 0x02, 0x05, 0xA0})
	der := enc(0x30, extnID, extnValue)

	root, _, err := ber.Decode(typ, bytes.NewReader(der))
	require.NoError(t, err)
	require.Len(t, root.Children, 3)

	assert.False(t, root.Children[1].Present(), "critical should be absent, not misparsed as extnValue")
	assert.True(t, root.Children[2].Present())
	assert.Equal(t, "extnValue", root.Children[2].Name)
}

func TestDecode_Extensions_SequenceOf(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("Extensions")
	require.True(t, ok)

	ext := func(arc byte) []byte {
		extnID := enc(0x06, []byte{0x55, 0x1D, arc})
		extnValue := enc(0x04, []byte{0x01})
		return enc(0x30, extnID, extnValue)
	}
	e1, e2 := ext(0x0F), ext(0x13)
	der := enc(0x30, e1, e2)

	root, img, err := ber.Decode(typ, bytes.NewReader(der))
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Equal(t, e1, root.Children[0].Bytes(img))
	assert.Equal(t, e2, root.Children[1].Bytes(img))
	assert.Same(t, root.Children[1], root.Children[0].Sibling)
	assert.Nil(t, root.Children[1].Sibling)
}

func TestDecode_Time_Choice_UTCTime(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("Time")
	require.True(t, ok)

	der := enc(0x17, []byte("250101000000Z"))
	root, img, err := ber.Decode(typ, bytes.NewReader(der))
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "utcTime", root.Children[0].Name)
	assert.Equal(t, der, root.Bytes(img))
}

func TestDecode_Time_Choice_GeneralizedTime(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("Time")
	require.True(t, ok)

	der := enc(0x18, []byte("20501231235959Z"))
	root, _, err := ber.Decode(typ, bytes.NewReader(der))
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "generalTime", root.Children[0].Name)
}

func TestDecode_IndefiniteLength_Sequence(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("AlgorithmIdentifier")
	require.True(t, ok)

	oidTLV := enc(0x06, rsaOID(t))
	nullTLV := enc(0x05)
	var der []byte
	der = append(der, 0x30, 0x80) // SEQUENCE, indefinite length
	der = append(der, oidTLV...)
	der = append(der, nullTLV...)
	der = append(der, 0x00, 0x00) // end-of-contents

	root, img, err := ber.Decode(typ, bytes.NewReader(der))
	require.NoError(t, err)
	assert.Equal(t, len(oidTLV)+len(nullTLV), root.ContentLen)
	// The trailing end-of-contents bytes are captured into img but fall
	// outside the node's own span.
	assert.Equal(t, der[:len(der)-2], root.Bytes(img))
	assert.Equal(t, der, []byte(img))
}

func TestDecode_WrongTag_ReturnsUnexpectedTag(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("AlgorithmIdentifier")
	require.True(t, ok)

	der := enc(0x31, enc(0x06, rsaOID(t))) // SET instead of SEQUENCE

	_, _, err := ber.Decode(typ, bytes.NewReader(der))
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.UnexpectedTag))
}

func TestDecode_TruncatedInput_ReturnsObjectTooShort(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("AlgorithmIdentifier")
	require.True(t, ok)

	der := enc(0x30, enc(0x06, rsaOID(t)))
	_, _, err := ber.Decode(typ, bytes.NewReader(der[:len(der)-1]))
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.ObjectTooShort))
}

func TestFind_DescendsByName(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("Extension")
	require.True(t, ok)

	extnID := enc(0x06, []byte{0x55, 0x1D, 0x0F})
	extnValue := enc(0x04, []byte{0x01})
	der := enc(0x30, extnID, extnValue)

	root, _, err := ber.Decode(typ, bytes.NewReader(der))
	require.NoError(t, err)

	found := ber.Find(root, "extnValue")
	require.NotNil(t, found)
	assert.Same(t, root.Children[2], found)

	assert.Nil(t, ber.Find(root, "noSuchField"))
	assert.Nil(t, ber.Find(root, "extnValue.nope"))
}

func TestDecode_TBSCertificate_WithAndWithoutVersion(t *testing.T) {
	reg := schema.Default()
	typ, ok := reg.Lookup("TBSCertificate")
	require.True(t, ok)

	algID := enc(0x30, enc(0x06, rsaOID(t)))
	serial := enc(0x02, []byte{0x01})
	atv := enc(0x30, enc(0x06, []byte{0x55, 0x04, 0x03}), enc(0x0C, []byte("test")))
	rdn := enc(0x31, atv)
	name := enc(0x30, rdn)
	utc := enc(0x17, []byte("250101000000Z"))
	validity := enc(0x30, utc, utc)
	bitstr := enc(0x03, []byte{0x00, 0xAA, 0xBB})
	spki := enc(0x30, algID, bitstr)

	noVersion := enc(0x30, serial, algID, name, validity, name, spki)
	root, _, err := ber.Decode(typ, bytes.NewReader(noVersion))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(root.Children), 7)
	assert.False(t, root.Children[0].Present(), "version absent")
	assert.True(t, root.Children[1].Present())

	versionWrapper := enc(0xA0, enc(0x02, []byte{0x02}))
	withVersion := enc(0x30, versionWrapper, serial, algID, name, validity, name, spki)
	root2, img2, err := ber.Decode(typ, bytes.NewReader(withVersion))
	require.NoError(t, err)
	require.True(t, root2.Children[0].Present())
	assert.Equal(t, []byte{0x02}, root2.Children[0].Children[0].Content(img2))
}
