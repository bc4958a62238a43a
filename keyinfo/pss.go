package keyinfo

import (
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/xerr"
)

// sha1OID is the default hashAlgorithm and the expected inner hash of the
// default maskGenAlgorithm when RSASSA-PSS-params omits both.
const sha1OID = "1.3.14.3.2.26"

// mgf1OID is the only maskGenAlgorithm this package accepts.
const mgf1OID = "1.2.840.113549.1.1.8"

// PSSParams is the parsed form of an RFC 4055 RSASSA-PSS-params SEQUENCE.
// The trailerField is not modelled: parsePSSParams neither reads nor checks
// it, and buildPSSParams never emits it.
type PSSParams struct {
	HashOID    string
	SaltLength int
}

func contextTag(n int) cbasn1.Tag { return cbasn1.Tag(n).Constructed().ContextSpecific() }

// parsePSSParams parses the RSASSA-PSS-params SEQUENCE whose full TLV
// bytes (tag and length included) are given in der, enforcing that the
// mask generation function is MGF1 and that its inner hash matches the
// outer hashAlgorithm.
func parsePSSParams(der []byte) (PSSParams, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return PSSParams{}, xerr.New(xerr.InvalidObject, "keyinfo: malformed RSASSA-PSS-params")
	}

	hashOID, err := readExplicitAlgorithmOID(&seq, 0, sha1OID)
	if err != nil {
		return PSSParams{}, err
	}

	mgfOID, mgfParams, err := readExplicitAlgorithm(&seq, 1, mgf1OID)
	if err != nil {
		return PSSParams{}, err
	}
	if mgfOID != mgf1OID {
		return PSSParams{}, xerr.New(xerr.InvalidObject, "keyinfo: unsupported mask generation function %s", mgfOID)
	}
	mgfHashOID := sha1OID
	if mgfParams != nil {
		var inner cryptobyte.String = mgfParams
		var innerAlgID cryptobyte.String
		if !inner.ReadASN1(&innerAlgID, cbasn1.SEQUENCE) || !inner.Empty() {
			return PSSParams{}, xerr.New(xerr.InvalidObject, "keyinfo: malformed maskGenAlgorithm hash")
		}
		oidBytes, ok := readOIDSequence(&innerAlgID)
		if !ok {
			return PSSParams{}, xerr.New(xerr.InvalidObject, "keyinfo: malformed maskGenAlgorithm hash")
		}
		s, ok := oid.StringOf(oidBytes)
		if !ok {
			return PSSParams{}, xerr.New(xerr.InvalidObject, "keyinfo: malformed maskGenAlgorithm hash OID")
		}
		mgfHashOID = s
	}
	if mgfHashOID != hashOID {
		return PSSParams{}, xerr.New(xerr.InvalidObject, "keyinfo: maskGenAlgorithm hash %s does not match hashAlgorithm %s", mgfHashOID, hashOID)
	}

	saltLength := 20
	if !seq.ReadOptionalASN1Integer(&saltLength, contextTag(2), 20) {
		return PSSParams{}, xerr.New(xerr.InvalidObject, "keyinfo: malformed saltLength")
	}

	return PSSParams{HashOID: hashOID, SaltLength: saltLength}, nil
}

// readExplicitAlgorithmOID reads an EXPLICIT-tagged AlgorithmIdentifier
// whose own parameters are not consulted (hashAlgorithm in PSS params:
// its parameters, if any, are always NULL and carry no information).
func readExplicitAlgorithmOID(s *cryptobyte.String, tag int, defaultOID string) (string, error) {
	oidStr, _, err := readExplicitAlgorithm(s, tag, defaultOID)
	return oidStr, err
}

// readExplicitAlgorithm reads an optional [tag] EXPLICIT AlgorithmIdentifier
// from s, returning its OID and the bytes that follow the OID inside the
// AlgorithmIdentifier (the parameters' complete TLV, a NULL included), or
// nil if nothing follows it. If the element is absent, defaultOID is
// returned with nil parameters.
func readExplicitAlgorithm(s *cryptobyte.String, tag int, defaultOID string) (string, []byte, error) {
	var wrapper cryptobyte.String
	var present bool
	if !s.ReadOptionalASN1(&wrapper, &present, contextTag(tag)) {
		return "", nil, xerr.New(xerr.InvalidObject, "keyinfo: malformed PSS parameter [%d]", tag)
	}
	if !present {
		return defaultOID, nil, nil
	}
	var algID cryptobyte.String
	if !wrapper.ReadASN1(&algID, cbasn1.SEQUENCE) || !wrapper.Empty() {
		return "", nil, xerr.New(xerr.InvalidObject, "keyinfo: malformed AlgorithmIdentifier in PSS parameter [%d]", tag)
	}
	oidBytes, ok := readOIDSequence(&algID)
	if !ok {
		return "", nil, xerr.New(xerr.InvalidObject, "keyinfo: malformed algorithm OID in PSS parameter [%d]", tag)
	}
	oidStr, ok := oid.StringOf(oidBytes)
	if !ok {
		return "", nil, xerr.New(xerr.InvalidObject, "keyinfo: malformed algorithm OID in PSS parameter [%d]", tag)
	}
	var params []byte
	if !algID.Empty() {
		params = []byte(algID)
	}
	return oidStr, params, nil
}

// readOIDSequence reads a single OBJECT IDENTIFIER from the front of s,
// leaving any following parameters in s for the caller to inspect.
func readOIDSequence(s *cryptobyte.String) ([]byte, bool) {
	var oidBytes cryptobyte.String
	if !s.ReadASN1(&oidBytes, cbasn1.OBJECT_IDENTIFIER) {
		return nil, false
	}
	return []byte(oidBytes), true
}

// buildPSSParams encodes p as a complete RSASSA-PSS-params SEQUENCE TLV.
// hashAlgorithm and maskGenAlgorithm are always emitted explicitly (never
// relying on their DEFAULT) so the encoding is unambiguous; saltLength is
// likewise always emitted explicitly.
func buildPSSParams(p PSSParams) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		addExplicitAlgorithm(seq, 0, p.HashOID, nil)
		addExplicitAlgorithm(seq, 1, mgf1OID, func(mgfParams *cryptobyte.Builder) {
			addAlgorithmIdentifier(mgfParams, p.HashOID, nil)
		})
		seq.AddASN1(contextTag(2), func(salt *cryptobyte.Builder) {
			salt.AddASN1Int64(int64(p.SaltLength))
		})
	})
	return b.Bytes()
}

func addExplicitAlgorithm(b *cryptobyte.Builder, tag int, algOID string, params func(*cryptobyte.Builder)) {
	b.AddASN1(contextTag(tag), func(wrapper *cryptobyte.Builder) {
		addAlgorithmIdentifier(wrapper, algOID, params)
	})
}

func addAlgorithmIdentifier(b *cryptobyte.Builder, algOID string, params func(*cryptobyte.Builder)) {
	b.AddASN1(cbasn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		oidDER := oid.DER(algOID)
		seq.AddASN1(cbasn1.OBJECT_IDENTIFIER, func(o *cryptobyte.Builder) {
			o.AddBytes(oidDER)
		})
		if params != nil {
			params(seq)
		}
	})
}
