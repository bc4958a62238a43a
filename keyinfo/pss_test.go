package keyinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const sha256OIDForTest = "2.16.840.1.101.3.4.2.1"

func TestParsePSSParams_AllDefaults(t *testing.T) {
	empty := []byte{0x30, 0x00}
	p, err := parsePSSParams(empty)
	require.NoError(t, err)
	assert.Equal(t, sha1OID, p.HashOID)
	assert.Equal(t, 20, p.SaltLength)
}

func TestPSSParams_RoundTrip(t *testing.T) {
	p := PSSParams{HashOID: sha256OIDForTest, SaltLength: 32}
	der, err := buildPSSParams(p)
	require.NoError(t, err)

	got, err := parsePSSParams(der)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestParsePSSParams_MismatchedMGF1Hash_Rejected(t *testing.T) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		addExplicitAlgorithm(seq, 0, sha256OIDForTest, nil)
		addExplicitAlgorithm(seq, 1, mgf1OID, func(mgfParams *cryptobyte.Builder) {
			addAlgorithmIdentifier(mgfParams, sha1OID, nil)
		})
		seq.AddASN1(contextTag(2), func(salt *cryptobyte.Builder) {
			salt.AddASN1Int64(20)
		})
	})
	der, err := b.Bytes()
	require.NoError(t, err)

	_, err = parsePSSParams(der)
	assert.Error(t, err)
}

func TestParsePSSParams_UnsupportedMaskGenFunction_Rejected(t *testing.T) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		addExplicitAlgorithm(seq, 0, sha256OIDForTest, nil)
		addExplicitAlgorithm(seq, 1, sha256OIDForTest, nil)
		seq.AddASN1(contextTag(2), func(salt *cryptobyte.Builder) {
			salt.AddASN1Int64(20)
		})
	})
	der, err := b.Bytes()
	require.NoError(t, err)

	_, err = parsePSSParams(der)
	assert.Error(t, err)
}
