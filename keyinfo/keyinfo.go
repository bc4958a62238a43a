// Package keyinfo converts between DER-encoded algorithm identifiers,
// key material, signatures, and encrypted values, and this module's
// canonical symbolic s-expression form. Unlike package ber, keyinfo does
// not go through package schema: its shapes are small and fixed enough
// that it reads and writes them directly against package tlv, dispatching
// on the algorithm OID via package oid's static tables.
package keyinfo

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	asn1 "go.corvid.dev/x690"
	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/tlv"
	"go.corvid.dev/x690/xerr"
)

// ParamKind classifies the AlgorithmIdentifier.parameters field of an
// algorithm.
type ParamKind int

const (
	// ParamAbsent means the AlgorithmIdentifier carried no parameters
	// field at all.
	ParamAbsent ParamKind = iota
	// ParamNull means the parameters field was present and is a
	// zero-length NULL, the common "no parameters" encoding for RSA.
	ParamNull
	// ParamOID means the parameters field is itself an OBJECT IDENTIFIER
	// (ECC's named curve, or the nested algorithm of ecdsa-with-specified).
	ParamOID
	// ParamSequence means the parameters field is a SEQUENCE, e.g. DSA's
	// p,q,g or RSASSA-PSS's parameter block.
	ParamSequence
	// ParamOther means the parameters field was present with some other
	// shape; its raw TLV bytes are preserved in Algorithm.Params.
	ParamOther
)

// Algorithm is the decoded form of an X.509 AlgorithmIdentifier together
// with the value it governs (a key, a signature, or an encrypted value).
type Algorithm struct {
	// OID is the dotted string form of the algorithm OID.
	OID string
	// OIDDER is the raw DER content bytes of the algorithm OID.
	OIDDER []byte
	// ParamKind classifies Params.
	ParamKind ParamKind
	// Params holds the parameters field: the OID content bytes (without
	// tag/length) for ParamOID, the complete TLV bytes (tag and length
	// included) for ParamSequence and ParamOther, or nil if ParamKind is
	// ParamAbsent or ParamNull.
	Params []byte
	// Value holds the raw content bytes of the value governed by this
	// algorithm (the key, signature, or encrypted octets), taken either
	// from a BIT STRING or an OCTET STRING depending on context.
	Value []byte
	// IsBitString records which of the two the value came from, since the
	// unused-bits byte of a BIT STRING is stripped from Value but still
	// matters for re-encoding.
	IsBitString bool
}

// ecdsaWithSpecified is the OID whose AlgorithmIdentifier carries its
// actual signature algorithm nested inside its own parameters field
// instead of naming it directly.
const ecdsaWithSpecified = "1.2.840.10045.4.3"

// rsassaPSS is the RSASSA-PSS OID, whose parameters carry the hash/MGF/salt
// block handled by package keyinfo's pss.go.
const rsassaPSS = "1.2.840.113549.1.1.10"

// GetAlgorithm reads an AlgorithmIdentifier SEQUENCE (algorithm OID,
// optional parameters) directly from der, optionally followed by a
// sibling BIT STRING (keys, signatures) or OCTET STRING (CMS encrypted
// content keys) value. der holds exactly this concatenation and nothing
// else: callers that have an enclosing SEQUENCE (SubjectPublicKeyInfo)
// pass its content bytes, and callers combining two sibling fields
// (a Certificate's signatureAlgorithm and signatureValue) concatenate
// their raw TLV bytes directly. GetAlgorithm does not consult package
// oid's tables itself; callers look the resulting OID up in whichever
// table fits their context.
//
// For the ecdsa-with-specified OID, the AlgorithmIdentifier's own nested
// parameters are themselves an AlgorithmIdentifier naming the real
// signature algorithm; GetAlgorithm substitutes it transparently so
// callers never see the wrapper OID.
func GetAlgorithm(der []byte) (Algorithm, error) {
	d := tlv.NewDecoder(bytes.NewReader(der))

	algo, err := readAlgorithmIdentifier(d)
	if err != nil {
		return Algorithm{}, err
	}

	vh, vv, err := d.ReadHeader()
	if err == io.EOF {
		return algo, nil
	}
	if err != nil {
		return Algorithm{}, wrapErr(err)
	}
	switch vh.Tag {
	case asn1.TagBitString:
		value, err := readBitString(vv)
		if err != nil {
			return Algorithm{}, err
		}
		algo.Value = value
		algo.IsBitString = true
	case asn1.TagOctetString:
		value, err := readAll(vv)
		if err != nil {
			return Algorithm{}, err
		}
		algo.Value = value
	default:
		return Algorithm{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: expected BIT STRING or OCTET STRING value, got %s", vh.Tag)
	}
	return algo, nil
}

// readAlgorithmIdentifier reads a nested AlgorithmIdentifier SEQUENCE:
// { algorithm OBJECT IDENTIFIER, parameters ANY OPTIONAL }, and applies
// the ecdsa-with-specified substitution.
func readAlgorithmIdentifier(d *tlv.Decoder) (Algorithm, error) {
	h, _, err := d.ReadHeader()
	if err != nil {
		return Algorithm{}, wrapErr(err)
	}
	if h.Tag != asn1.TagSequence || !h.Constructed {
		return Algorithm{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: expected AlgorithmIdentifier SEQUENCE, got %s", h.Tag)
	}

	oh, ov, err := d.ReadHeader()
	if err != nil {
		return Algorithm{}, wrapErr(err)
	}
	if oh.Tag != asn1.TagOID {
		return Algorithm{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: expected algorithm OID, got %s", oh.Tag)
	}
	oidDER, err := readAll(ov)
	if err != nil {
		return Algorithm{}, err
	}
	dotted, ok := oid.StringOf(oidDER)
	if !ok {
		return Algorithm{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: malformed algorithm OID")
	}

	algo := Algorithm{OID: dotted, OIDDER: oidDER}

	ph, err := d.PeekHeader()
	if err != nil {
		return Algorithm{}, wrapErr(err)
	}
	if ph != (tlv.Header{}) {
		ph2, pv, err := d.ReadHeader()
		if err != nil {
			return Algorithm{}, wrapErr(err)
		}
		switch {
		case ph2.Tag == asn1.TagNull:
			if ph2.Length != 0 {
				return Algorithm{}, xerr.New(xerr.BerError, "keyinfo: NULL parameters must be empty")
			}
			algo.ParamKind = ParamNull
		case ph2.Tag == asn1.TagOID:
			b, err := readAll(pv)
			if err != nil {
				return Algorithm{}, err
			}
			algo.ParamKind = ParamOID
			algo.Params = b
		case ph2.Tag == asn1.TagSequence:
			b, err := captureTLV(d, ph2, pv)
			if err != nil {
				return Algorithm{}, err
			}
			algo.ParamKind = ParamSequence
			algo.Params = b
		default:
			b, err := captureTLV(d, ph2, pv)
			if err != nil {
				return Algorithm{}, err
			}
			algo.ParamKind = ParamOther
			algo.Params = b
		}
	} else {
		algo.ParamKind = ParamAbsent
	}

	if err := expectEOC(d); err != nil {
		return Algorithm{}, err
	}

	if algo.OID == ecdsaWithSpecified {
		return substituteEcdsaWithSpecified(algo)
	}
	return algo, nil
}

// substituteEcdsaWithSpecified re-interprets the ecdsa-with-specified
// wrapper's own parameters (a nested AlgorithmIdentifier) as the real
// algorithm, discarding the wrapper OID.
func substituteEcdsaWithSpecified(wrapper Algorithm) (Algorithm, error) {
	if wrapper.ParamKind != ParamSequence {
		return Algorithm{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: ecdsa-with-specified requires a nested AlgorithmIdentifier")
	}
	d := tlv.NewDecoder(bytes.NewReader(wrapper.Params))
	nested, err := readAlgorithmIdentifier(d)
	if err != nil {
		return Algorithm{}, err
	}
	return nested, nil
}

// readBitString reads a primitive BIT STRING's unused-bits byte and
// content, warning if the unused-bits count is non-zero (every algorithm
// this package handles packs a whole number of octets).
func readBitString(v *tlv.Value) ([]byte, error) {
	b, err := readAll(v)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, xerr.New(xerr.InvalidKeyInfo, "keyinfo: empty BIT STRING")
	}
	if b[0] != 0 {
		logrus.WithField("unused-bits", b[0]).Warn("keyinfo: BIT STRING has non-zero unused-bits count")
	}
	return b[1:], nil
}

// readAll drains a primitive Value completely.
func readAll(v *tlv.Value) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	buf := make([]byte, v.Len())
	if _, err := v.Read(buf); err != nil {
		return nil, wrapErr(err)
	}
	return buf, nil
}

// captureTLV reconstitutes the complete header+content bytes of a value
// whose header h (and, if primitive, value v) have already been read from
// d, so callers can re-parse it independently (package keyinfo's PSS
// sub-parser, the ecdsa-with-specified nested AlgorithmIdentifier). For a
// constructed value this replays each nested TLV through a fresh encoder
// rather than tracking raw offsets, since d gives no access to the
// underlying byte source once buffered.
func captureTLV(d *tlv.Decoder, h tlv.Header, v *tlv.Value) ([]byte, error) {
	var buf bytes.Buffer
	e := tlv.NewEncoder(&buf)
	if err := writeValue(e, d, h, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(e *tlv.Encoder, d *tlv.Decoder, h tlv.Header, v *tlv.Value) error {
	w, err := e.WriteHeader(h)
	if err != nil {
		return errors.Wrap(err, "keyinfo: re-encoding nested value")
	}
	if !h.Constructed {
		b, err := readAll(v)
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return errors.Wrap(err, "keyinfo: re-encoding nested value")
		}
		return nil
	}
	for {
		ch, cv, err := d.ReadHeader()
		if err != nil {
			return wrapErr(err)
		}
		if ch == (tlv.Header{}) {
			if _, err := e.WriteHeader(ch); err != nil {
				return errors.Wrap(err, "keyinfo: re-encoding nested value")
			}
			return nil
		}
		if err := writeValue(e, d, ch, cv); err != nil {
			return err
		}
	}
}

func expectEOC(d *tlv.Decoder) error {
	h, _, err := d.ReadHeader()
	if err != nil {
		return wrapErr(err)
	}
	if h != (tlv.Header{}) {
		return xerr.New(xerr.InvalidKeyInfo, "keyinfo: unexpected trailing data, got %s", h)
	}
	return nil
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*tlv.SyntaxError); ok {
		return xerr.Wrap(xerr.BerError, err, "keyinfo: malformed encoding")
	}
	return xerr.Wrap(xerr.ObjectTooShort, err, "keyinfo: truncated input")
}
