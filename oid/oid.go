// Package oid implements the static OID-to-algorithm dispatch tables used by
// package keyinfo and package cms. Every table in this package is a
// declarative, process-lifetime constant: there is no runtime configuration
// surface beyond these tables (see SPEC_FULL.md §2's AMBIENT STACK note on
// configuration).
package oid

import (
	"strings"

	"github.com/pkg/errors"
)

// Support classifies how well an algorithm is handled.
type Support int

const (
	Unsupported Support = iota
	Supported
	RSAPSSSpecial
)

// PKAlgo names the public-key algorithm family an OID maps to.
type PKAlgo int

const (
	PKUnknown PKAlgo = iota
	PKRSA
	PKDSA
	PKECC
	PKX25519
	PKX448
	PKEd25519
	PKEd448
)

// Entry is one row of an algorithm table: an OID together with its dotted
// string form, raw DER bytes, and the symbolic-expression shape a codec
// needs to consume or emit its parameters.
//
// ElemDesc names one symbolic parameter letter per character ('-' meaning
// "skip this element"); TagDesc gives the expected ASN.1 tag byte for the
// same position. A TagDesc byte with bit 7 set, in the final position,
// means "consume all remaining bytes verbatim" instead of a tagged TLV.
type Entry struct {
	OIDString    string
	OIDDER       []byte
	Support      Support
	PK           PKAlgo
	Name         string
	ElemDesc     string
	TagDesc      []byte
	ParmElemDesc string
	ParmTagDesc  []byte
	DigestHint   string // empty if none
}

const rawRemainder = 0x80

// RawRemainder is the TagDesc sentinel meaning "the final element
// consumes all remaining bytes verbatim, with no further TLV wrapping"
// rather than naming an expected tag byte. Exported so package keyinfo's
// ElemDesc/TagDesc walk can recognise it.
const RawRemainder = rawRemainder

// pkTable, sigTable, encTable and the curve maps are populated by init()
// from the literal entries below; lookups strip an optional "oid."/"OID."
// prefix and accept either the dotted string or the raw DER bytes. Curve
// names are matched case-insensitively.
var (
	pkTable  []Entry
	sigTable []Entry
	encTable []Entry

	pkByOID  = map[string]*Entry{}
	sigByOID = map[string]*Entry{}
	encByOID = map[string]*Entry{}

	curveByName = map[string]string{} // curve name -> dotted OID
	curveByOID  = map[string]string{} // dotted OID -> curve name
)

func reg(table *[]Entry, index map[string]*Entry, e Entry) {
	e.OIDDER = encodeOID(e.OIDString)
	*table = append(*table, e)
	index[e.OIDString] = &(*table)[len(*table)-1]
}

func init() {
	reg(&pkTable, pkByOID, Entry{
		OIDString: "1.2.840.113549.1.1.1", Support: Supported, PK: PKRSA,
		Name: "rsa", ElemDesc: "ne", TagDesc: []byte{0x02, 0x02},
	})
	reg(&pkTable, pkByOID, Entry{
		OIDString: "1.2.840.10040.4.1", Support: Supported, PK: PKDSA,
		Name: "dsa", ElemDesc: "y", TagDesc: []byte{0x02},
		ParmElemDesc: "pqg", ParmTagDesc: []byte{0x02, 0x02, 0x02},
	})
	reg(&pkTable, pkByOID, Entry{
		OIDString: "1.2.840.10045.2.1", Support: Supported, PK: PKECC,
		Name: "ecc", ElemDesc: "q", TagDesc: []byte{rawRemainder},
	})
	reg(&pkTable, pkByOID, Entry{
		OIDString: "1.3.101.110", Support: Supported, PK: PKX25519,
		Name: "ecc", ElemDesc: "q", TagDesc: []byte{rawRemainder},
	})
	reg(&pkTable, pkByOID, Entry{
		OIDString: "1.3.101.111", Support: Supported, PK: PKX448,
		Name: "ecc", ElemDesc: "q", TagDesc: []byte{rawRemainder},
	})
	reg(&pkTable, pkByOID, Entry{
		OIDString: "1.3.101.112", Support: Supported, PK: PKEd25519,
		Name: "ecc", ElemDesc: "q", TagDesc: []byte{rawRemainder},
	})
	reg(&pkTable, pkByOID, Entry{
		OIDString: "1.3.101.113", Support: Supported, PK: PKEd448,
		Name: "ecc", ElemDesc: "q", TagDesc: []byte{rawRemainder},
	})

	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.113549.1.1.1", Support: Supported, PK: PKRSA,
		Name: "rsa", ElemDesc: "s", TagDesc: []byte{rawRemainder},
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.113549.1.1.5", Support: Supported, PK: PKRSA,
		Name: "rsa", ElemDesc: "s", TagDesc: []byte{rawRemainder}, DigestHint: "sha1",
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.113549.1.1.11", Support: Supported, PK: PKRSA,
		Name: "rsa", ElemDesc: "s", TagDesc: []byte{rawRemainder}, DigestHint: "sha256",
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.113549.1.1.12", Support: Supported, PK: PKRSA,
		Name: "rsa", ElemDesc: "s", TagDesc: []byte{rawRemainder}, DigestHint: "sha384",
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.113549.1.1.13", Support: Supported, PK: PKRSA,
		Name: "rsa", ElemDesc: "s", TagDesc: []byte{rawRemainder}, DigestHint: "sha512",
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.113549.1.1.10", Support: RSAPSSSpecial, PK: PKRSA,
		Name: "rsa", ElemDesc: "s", TagDesc: []byte{rawRemainder},
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.10040.4.3", Support: Supported, PK: PKDSA,
		Name: "dsa", ElemDesc: "rs", TagDesc: []byte{0x02, 0x02}, DigestHint: "sha1",
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.10045.4.1", Support: Supported, PK: PKECC,
		Name: "ecdsa", ElemDesc: "rs", TagDesc: []byte{0x02, 0x02}, DigestHint: "sha1",
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.10045.4.3.2", Support: Supported, PK: PKECC,
		Name: "ecdsa", ElemDesc: "rs", TagDesc: []byte{0x02, 0x02}, DigestHint: "sha256",
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.10045.4.3.3", Support: Supported, PK: PKECC,
		Name: "ecdsa", ElemDesc: "rs", TagDesc: []byte{0x02, 0x02}, DigestHint: "sha384",
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.2.840.10045.4.3.4", Support: Supported, PK: PKECC,
		Name: "ecdsa", ElemDesc: "rs", TagDesc: []byte{0x02, 0x02}, DigestHint: "sha512",
	})
	// ecdsa-with-specified (1.2.840.10045.4.3) has no row here: keyinfo.GetAlgorithm
	// substitutes it for the nested OID carried in its own AlgorithmIdentifier
	// parameter before any table lookup happens, so this OID is never looked up
	// directly (see keyinfo.go's substituteEcdsaWithSpecified).
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.3.101.112", Support: Supported, PK: PKEd25519,
		Name: "eddsa", ElemDesc: "s", TagDesc: []byte{rawRemainder},
	})
	reg(&sigTable, sigByOID, Entry{
		OIDString: "1.3.101.113", Support: Supported, PK: PKEd448,
		Name: "eddsa", ElemDesc: "s", TagDesc: []byte{rawRemainder},
	})

	reg(&encTable, encByOID, Entry{
		OIDString: "1.2.840.113549.1.1.1", Support: Supported, PK: PKRSA,
		Name: "rsa", ElemDesc: "a", TagDesc: []byte{rawRemainder},
	})
	reg(&encTable, encByOID, Entry{
		OIDString: "1.2.840.113549.1.9.16.3.10", Support: Supported, PK: PKECC,
		Name: "ecdh", ElemDesc: "e", TagDesc: []byte{rawRemainder},
	})

	for name, str := range map[string]string{
		"NIST P-256": "1.2.840.10045.3.1.7",
		"secp256r1":  "1.2.840.10045.3.1.7",
		"NIST P-384": "1.3.132.0.34",
		"secp384r1":  "1.3.132.0.34",
		"NIST P-521": "1.3.132.0.35",
		"secp521r1":  "1.3.132.0.35",
		"Ed25519":    "1.3.101.112",
		"Ed448":      "1.3.101.113",
		"X25519":     "1.3.101.110",
		"X448":       "1.3.101.111",
	} {
		curveByName[strings.ToLower(name)] = str
		curveByOID[str] = name
	}
}

func stripPrefix(s string) string {
	if strings.HasPrefix(s, "oid.") || strings.HasPrefix(s, "OID.") {
		return s[4:]
	}
	return s
}

// lookup finds the table entry matching key, which may be a dotted OID
// string (optionally "oid."-prefixed) or raw DER bytes.
func lookup(index map[string]*Entry, key any) (*Entry, error) {
	var s string
	switch v := key.(type) {
	case string:
		s = stripPrefix(v)
	case []byte:
		var ok bool
		s, ok = decodeOID(v)
		if !ok {
			return nil, errors.New("oid: malformed DER OID bytes")
		}
	default:
		return nil, errors.Errorf("oid: unsupported lookup key type %T", key)
	}
	e, ok := index[s]
	if !ok {
		return nil, nil
	}
	return e, nil
}

// PKEntries returns a copy of every public-key algorithm table entry. It
// exists alongside LookupPK for callers (package keyinfo's symbolic-form
// writer) that must disambiguate among several entries sharing one
// symbolic name — the several "ecc" entries, one per curve family — using
// context an OID-keyed lookup cannot supply.
func PKEntries() []Entry { return append([]Entry(nil), pkTable...) }

// SigEntries returns a copy of every signature algorithm table entry; see
// PKEntries.
func SigEntries() []Entry { return append([]Entry(nil), sigTable...) }

// EncEntries returns a copy of every encrypted-value algorithm table
// entry; see PKEntries.
func EncEntries() []Entry { return append([]Entry(nil), encTable...) }

// NormalizeOIDString strips an optional "oid."/"OID." prefix from s, the
// same normalization lookup applies internally, exposed so callers
// building a dotted OID string from user-facing symbolic input (package
// keyinfo's curve-name resolution) don't need to duplicate it.
func NormalizeOIDString(s string) string { return stripPrefix(s) }

// LookupPK looks up key (dotted OID string or DER bytes) in the public-key
// algorithm table.
func LookupPK(key any) (*Entry, error) { return lookup(pkByOID, key) }

// LookupSig looks up key in the signature algorithm table.
func LookupSig(key any) (*Entry, error) { return lookup(sigByOID, key) }

// LookupEnc looks up key in the encrypted-key algorithm table.
func LookupEnc(key any) (*Entry, error) { return lookup(encByOID, key) }

// CurveOID returns the dotted OID for a curve name (case-insensitive), or
// ok=false if name is not a known curve.
func CurveOID(name string) (string, bool) {
	s, ok := curveByName[strings.ToLower(name)]
	return s, ok
}

// CurveName returns the curve name for a dotted OID, or ok=false if
// unknown.
func CurveName(dottedOID string) (string, bool) {
	s, ok := curveByOID[dottedOID]
	return s, ok
}

// LooksLikeOID reports whether s has the shape of a dotted OID (after
// stripping an optional "oid."/"OID." prefix): its first character is an
// ASCII digit.
func LooksLikeOID(s string) bool {
	s = stripPrefix(s)
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}

// StringOf decodes DER OID content bytes (the value of a [UNIVERSAL 6]
// OBJECT IDENTIFIER, not including tag/length) into its dotted string form.
// It works for any well-formed OID, not just ones present in a dispatch
// table, so callers can render OIDs found nested inside algorithm
// parameters (curve identifiers, PSS hash OIDs) for error messages and
// symbolic output.
func StringOf(der []byte) (string, bool) { return decodeOID(der) }

// DER encodes a dotted OID string into its DER content bytes. It panics on
// malformed input, matching encodeOID's contract; callers holding a dotted
// string from a trusted source (a table entry, a symbolic expression a
// caller has already validated with LooksLikeOID) should use this instead
// of reaching for encoding/asn1.
func DER(dotted string) []byte { return encodeOID(dotted) }
