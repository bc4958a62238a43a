package keyinfo

import (
	"bytes"
	"io"
	"strconv"

	asn1 "go.corvid.dev/x690"
	"go.corvid.dev/x690/oid"
	"go.corvid.dev/x690/sexp"
	"go.corvid.dev/x690/tlv"
	"go.corvid.dev/x690/xerr"
)

// CryptValKind selects which of the two DER shapes CryptValToSexp and
// CryptValFromSexp operate on: a signature value (AlgorithmIdentifier plus
// BIT STRING) or an encrypted value (AlgorithmIdentifier plus OCTET
// STRING). The two share every conversion except the trailing tag and the
// digest-hint/PSS bookkeeping that only applies to signatures.
type CryptValKind int

const (
	SigVal CryptValKind = iota
	EncVal
)

// KeyInfoToSexp converts a DER SubjectPublicKeyInfo into its canonical
// symbolic form, (public-key (<algo-name> (curve <name>)? (<letter>
// <mpi>)...)).
func KeyInfoToSexp(der []byte) (sexp.Value, error) {
	body, err := stripOuterSequence(der)
	if err != nil {
		return sexp.Value{}, err
	}
	algo, err := GetAlgorithm(body)
	if err != nil {
		return sexp.Value{}, err
	}
	if !algo.IsBitString {
		return sexp.Value{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: public key must be a BIT STRING")
	}

	entry, err := oid.LookupPK(algo.OID)
	if err != nil {
		return sexp.Value{}, err
	}
	if entry == nil {
		return sexp.Value{}, xerr.New(xerr.UnknownAlgorithm, "keyinfo: unknown public-key algorithm %s", algo.OID)
	}
	if entry.Support == oid.Unsupported {
		return sexp.Value{}, xerr.New(xerr.UnsupportedAlgorithm, "keyinfo: unsupported public-key algorithm %s", algo.OID)
	}

	items := []sexp.Value{sexp.AtomString(entry.Name)}

	if entry.Name == "ecc" {
		var curveOIDStr string
		switch algo.ParamKind {
		case ParamOID:
			s, ok := oid.StringOf(algo.Params)
			if !ok {
				return sexp.Value{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: malformed curve OID")
			}
			curveOIDStr = s
		case ParamAbsent:
			// Ed25519/Ed448/X25519/X448: the AlgorithmIdentifier carries no
			// parameters at all (RFC 8410); the algorithm OID itself names
			// the curve.
			curveOIDStr = entry.OIDString
		default:
			return sexp.Value{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: ECC public key requires a named curve")
		}
		name := curveOIDStr
		if n, ok2 := oid.CurveName(curveOIDStr); ok2 {
			name = n
		}
		items = append(items, sexp.List(sexp.AtomString("curve"), sexp.AtomString(name)))
	}

	if entry.PK == oid.PKDSA && entry.ParmElemDesc != "" {
		if algo.ParamKind != ParamSequence {
			return sexp.Value{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: DSA public key requires p,q,g parameters")
		}
		pqg, err := parseElements(entry.ParmElemDesc, entry.ParmTagDesc, algo.Params)
		if err != nil {
			return sexp.Value{}, err
		}
		items = append(items, pqg...)
	}

	elems, err := parseElements(entry.ElemDesc, entry.TagDesc, algo.Value)
	if err != nil {
		return sexp.Value{}, err
	}
	items = append(items, elems...)

	return sexp.List(sexp.AtomString("public-key"), sexp.List(items...)), nil
}

// KeyInfoFromSexp is the inverse of KeyInfoToSexp: it builds a complete DER
// SubjectPublicKeyInfo from the canonical symbolic form.
func KeyInfoFromSexp(v sexp.Value) ([]byte, error) {
	if v.Head() != "public-key" || v.Len() != 2 {
		return nil, xerr.New(xerr.UnknownSexp, "keyinfo: expected (public-key ...) form")
	}
	inner := v.Items()[1]
	if !inner.IsList() || inner.Len() == 0 {
		return nil, xerr.New(xerr.UnknownSexp, "keyinfo: malformed public-key algorithm list")
	}
	algoName := inner.Head()

	entry, hasCurveParam, curveOID, err := resolvePKEntry(algoName, inner)
	if err != nil {
		return nil, err
	}
	get := paramGetter(inner)

	valueBytes, err := buildElements(entry.ElemDesc, entry.TagDesc, get)
	if err != nil {
		return nil, err
	}

	var paramsTLV []byte
	switch entry.PK {
	case oid.PKRSA:
		paramsTLV, err = buildPrimitive(asn1.TagNull, nil)
		if err != nil {
			return nil, err
		}
	case oid.PKDSA:
		if entry.ParmElemDesc != "" {
			paramsTLV, err = buildElements(entry.ParmElemDesc, entry.ParmTagDesc, get)
			if err != nil {
				return nil, err
			}
		}
	case oid.PKECC:
		if hasCurveParam {
			paramsTLV, err = buildPrimitive(asn1.TagOID, oid.DER(curveOID))
			if err != nil {
				return nil, err
			}
		}
		// Ed25519/Ed448/X25519/X448 (entry.PK in {PKX25519,PKX448,PKEd25519,
		// PKEd448}) carry no AlgorithmIdentifier parameters field at all,
		// per RFC 8410.
	}

	oidTLV, err := buildPrimitive(asn1.TagOID, entry.OIDDER)
	if err != nil {
		return nil, err
	}
	content := append([]byte{}, oidTLV...)
	if paramsTLV != nil {
		content = append(content, paramsTLV...)
	}
	algID, err := buildConstructed(asn1.TagSequence, content)
	if err != nil {
		return nil, err
	}

	bitTLV, err := buildPrimitive(asn1.TagBitString, append([]byte{0}, valueBytes...))
	if err != nil {
		return nil, err
	}

	spkiContent := append(append([]byte{}, algID...), bitTLV...)
	return buildConstructed(asn1.TagSequence, spkiContent)
}

// CryptValToSexp converts a DER (AlgorithmIdentifier, value) pair — a
// Certificate's signatureAlgorithm+signatureValue, or a
// KeyTransRecipientInfo's keyEncryptionAlgorithm+encryptedKey — into its
// canonical symbolic form, (sig-val ...) or (enc-val ...).
func CryptValToSexp(der []byte, kind CryptValKind) (sexp.Value, error) {
	algo, err := GetAlgorithm(der)
	if err != nil {
		return sexp.Value{}, err
	}
	switch kind {
	case SigVal:
		return sigValToSexp(algo)
	case EncVal:
		return encValToSexp(algo)
	}
	return sexp.Value{}, xerr.New(xerr.General, "keyinfo: unknown CryptValKind")
}

// CryptValFromSexp is the inverse of CryptValToSexp; the kind is determined
// by v's head atom ("sig-val" or "enc-val").
func CryptValFromSexp(v sexp.Value) ([]byte, error) {
	switch v.Head() {
	case "sig-val":
		return sigValFromSexp(v)
	case "enc-val":
		return encValFromSexp(v)
	}
	return nil, xerr.New(xerr.UnknownSexp, "keyinfo: expected (sig-val ...) or (enc-val ...) form")
}

func sigValToSexp(algo Algorithm) (sexp.Value, error) {
	if !algo.IsBitString {
		return sexp.Value{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: signature value must be a BIT STRING")
	}
	entry, err := oid.LookupSig(algo.OID)
	if err != nil {
		return sexp.Value{}, err
	}
	if entry == nil {
		return sexp.Value{}, xerr.New(xerr.UnknownAlgorithm, "keyinfo: unknown signature algorithm %s", algo.OID)
	}
	if entry.Support == oid.Unsupported {
		return sexp.Value{}, xerr.New(xerr.UnsupportedAlgorithm, "keyinfo: unsupported signature algorithm %s", algo.OID)
	}

	algoItems := []sexp.Value{sexp.AtomString(entry.Name)}
	elems, err := parseElements(entry.ElemDesc, entry.TagDesc, algo.Value)
	if err != nil {
		return sexp.Value{}, err
	}
	algoItems = append(algoItems, elems...)

	// PSS/digest-hint metadata sits as a sibling of the algorithm list at
	// the top level of sig-val, not nested inside it — see the
	// ECDSA-with-SHA256 worked example.
	top := []sexp.Value{sexp.AtomString("sig-val"), sexp.List(algoItems...)}
	switch {
	case entry.Support == oid.RSAPSSSpecial:
		if algo.ParamKind != ParamSequence {
			return sexp.Value{}, xerr.New(xerr.InvalidKeyInfo, "keyinfo: RSASSA-PSS requires SEQUENCE parameters")
		}
		pss, err := parsePSSParams(algo.Params)
		if err != nil {
			return sexp.Value{}, err
		}
		top = append(top,
			sexp.List(sexp.AtomString("flags"), sexp.AtomString("pss")),
			sexp.List(sexp.AtomString("hash-algo"), sexp.AtomString(pss.HashOID)),
			sexp.List(sexp.AtomString("salt-length"), sexp.AtomString(strconv.Itoa(pss.SaltLength))),
		)
	case entry.DigestHint != "":
		top = append(top, sexp.List(sexp.AtomString("hash"), sexp.AtomString(entry.DigestHint)))
	}

	return sexp.List(top...), nil
}

func encValToSexp(algo Algorithm) (sexp.Value, error) {
	entry, err := oid.LookupEnc(algo.OID)
	if err != nil {
		return sexp.Value{}, err
	}
	if entry == nil {
		return sexp.Value{}, xerr.New(xerr.UnknownAlgorithm, "keyinfo: unknown encrypted-value algorithm %s", algo.OID)
	}
	if entry.Support == oid.Unsupported {
		return sexp.Value{}, xerr.New(xerr.UnsupportedAlgorithm, "keyinfo: unsupported encrypted-value algorithm %s", algo.OID)
	}

	algoItems := []sexp.Value{sexp.AtomString(entry.Name)}
	elems, err := parseElements(entry.ElemDesc, entry.TagDesc, algo.Value)
	if err != nil {
		return sexp.Value{}, err
	}
	algoItems = append(algoItems, elems...)

	return sexp.List(sexp.AtomString("enc-val"), sexp.List(algoItems...)), nil
}

func sigValFromSexp(v sexp.Value) ([]byte, error) {
	if v.Len() < 2 {
		return nil, xerr.New(xerr.UnknownSexp, "keyinfo: malformed sig-val")
	}
	inner := v.Items()[1]
	if !inner.IsList() || inner.Len() == 0 {
		return nil, xerr.New(xerr.UnknownSexp, "keyinfo: malformed sig-val algorithm list")
	}
	algoName := inner.Head()

	// hash/flags/PSS metadata sits as a sibling of the algorithm list at
	// the top level of sig-val, not nested inside it.
	entry, err := resolveSigEntry(algoName, inner, v)
	if err != nil {
		return nil, err
	}
	get := paramGetter(inner)

	valueBytes, err := buildElements(entry.ElemDesc, entry.TagDesc, get)
	if err != nil {
		return nil, err
	}

	var paramsTLV []byte
	switch {
	case entry.Support == oid.RSAPSSSpecial:
		hashOID, err := pssHashOID(v)
		if err != nil {
			return nil, err
		}
		saltLen, err := pssSaltLength(v)
		if err != nil {
			return nil, err
		}
		paramsTLV, err = buildPSSParams(PSSParams{HashOID: hashOID, SaltLength: saltLen})
		if err != nil {
			return nil, err
		}
	case entry.PK == oid.PKRSA:
		paramsTLV, err = buildPrimitive(asn1.TagNull, nil)
		if err != nil {
			return nil, err
		}
		// ECDSA, DSA, and EdDSA signature AlgorithmIdentifiers carry no
		// parameters field.
	}

	oidTLV, err := buildPrimitive(asn1.TagOID, entry.OIDDER)
	if err != nil {
		return nil, err
	}
	content := append([]byte{}, oidTLV...)
	if paramsTLV != nil {
		content = append(content, paramsTLV...)
	}
	algID, err := buildConstructed(asn1.TagSequence, content)
	if err != nil {
		return nil, err
	}

	bitTLV, err := buildPrimitive(asn1.TagBitString, append([]byte{0}, valueBytes...))
	if err != nil {
		return nil, err
	}
	return append(algID, bitTLV...), nil
}

func encValFromSexp(v sexp.Value) ([]byte, error) {
	if v.Len() != 2 {
		return nil, xerr.New(xerr.UnknownSexp, "keyinfo: malformed enc-val")
	}
	inner := v.Items()[1]
	if !inner.IsList() || inner.Len() == 0 {
		return nil, xerr.New(xerr.UnknownSexp, "keyinfo: malformed enc-val algorithm list")
	}
	algoName := inner.Head()

	entry, err := resolveEncEntry(algoName)
	if err != nil {
		return nil, err
	}
	get := paramGetter(inner)

	valueBytes, err := buildElements(entry.ElemDesc, entry.TagDesc, get)
	if err != nil {
		return nil, err
	}

	oidTLV, err := buildPrimitive(asn1.TagOID, entry.OIDDER)
	if err != nil {
		return nil, err
	}
	// Every encrypted-value algorithm this package supports carries no
	// AlgorithmIdentifier parameters.
	algID, err := buildConstructed(asn1.TagSequence, oidTLV)
	if err != nil {
		return nil, err
	}

	octetTLV, err := buildPrimitive(asn1.TagOctetString, valueBytes)
	if err != nil {
		return nil, err
	}
	return append(algID, octetTLV...), nil
}

// AppendECDHFields extends an (enc-val (ecdh ...)) value produced by
// CryptValToSexp with the fields CMS's ECDH key-agreement recipient variant
// carries alongside the encrypted value itself: the wrapped
// content-encryption key, and the content- and key-wrap algorithm OIDs.
// None of these are recoverable from the keyEncryptionAlgorithm+
// encryptedKey pair CryptValToSexp decodes; they live in the enclosing
// KeyAgreeRecipientInfo, which this module's CMS grammar does not model.
func AppendECDHFields(v sexp.Value, wrappedKey []byte, encrAlgoOID, wrapAlgoOID string) (sexp.Value, error) {
	if v.Head() != "enc-val" || v.Len() < 2 {
		return sexp.Value{}, xerr.New(xerr.UnknownSexp, "keyinfo: expected (enc-val ...) form")
	}
	top := append(append([]sexp.Value{}, v.Items()...),
		sexp.List(sexp.AtomString("s"), sexp.Atom(wrappedKey)),
		sexp.List(sexp.AtomString("encr-algo"), sexp.AtomString(encrAlgoOID)),
		sexp.List(sexp.AtomString("wrap-algo"), sexp.AtomString(wrapAlgoOID)),
	)
	return sexp.List(top...), nil
}

// parseElements walks raw according to elemDesc/tagDesc (an oid.Entry's
// ElemDesc/TagDesc or ParmElemDesc/ParmTagDesc) and returns one (<letter>
// <mpi>) list per non-"-" element.
//
// Three distinct wire shapes exist, distinguished by the table entry
// itself rather than by inspecting raw: a TagDesc whose last byte carries
// oid.RawRemainder means the whole of raw is the sole element, consumed
// verbatim with no TLV wrapping at all (ECC/EdDSA keys, RSA/EdDSA
// signatures, RSA/ECDH encrypted values); a single non-raw element means
// raw is exactly that element's own TLV bytes with no further wrapper
// (DSA's bare INTEGER public key); more than one non-raw element means raw
// is a SEQUENCE wrapping each element's own TLV in turn (RSA's n,e; DSA and
// ECDSA's r,s; DSA's p,q,g parameters).
func parseElements(elemDesc string, tagDesc []byte, raw []byte) ([]sexp.Value, error) {
	if isRawRemainder(tagDesc) {
		if len(elemDesc) != 1 {
			return nil, xerr.New(xerr.General, "keyinfo: malformed table entry: raw remainder must be the sole element")
		}
		if elemDesc[0] == '-' {
			return nil, nil
		}
		return []sexp.Value{sexp.List(sexp.AtomString(string(elemDesc[0])), sexp.Atom(raw))}, nil
	}

	body := raw
	if len(elemDesc) > 1 {
		var err error
		body, err = stripOuterSequence(raw)
		if err != nil {
			return nil, err
		}
	}

	d := tlv.NewDecoder(bytes.NewReader(body))
	var out []sexp.Value
	for i := 0; i < len(elemDesc); i++ {
		h, v, err := d.ReadHeader()
		if err != nil {
			return nil, wrapErr(err)
		}
		wantTag := asn1.Tag(tagDesc[i])
		if h.Tag != wantTag || h.Constructed {
			return nil, xerr.New(xerr.InvalidKeyInfo, "keyinfo: expected tag %s, got %s", wantTag, h.Tag)
		}
		b, err := readAll(v)
		if err != nil {
			return nil, err
		}
		if elemDesc[i] != '-' {
			out = append(out, sexp.List(sexp.AtomString(string(elemDesc[i])), sexp.Atom(b)))
		}
	}
	if err := expectRootEOF(d); err != nil {
		return nil, err
	}
	return out, nil
}

// buildElements is the writer-side mirror of parseElements: get supplies
// the raw mpi bytes for a given element letter, looked up from the
// symbolic form's parameter list.
func buildElements(elemDesc string, tagDesc []byte, get func(letter byte) ([]byte, bool)) ([]byte, error) {
	if isRawRemainder(tagDesc) {
		if len(elemDesc) != 1 {
			return nil, xerr.New(xerr.General, "keyinfo: malformed table entry: raw remainder must be the sole element")
		}
		b, ok := get(elemDesc[0])
		if !ok {
			return nil, xerr.New(xerr.InvalidSexp, "keyinfo: missing parameter %q", string(elemDesc[0]))
		}
		return b, nil
	}

	var parts []byte
	for i := 0; i < len(elemDesc); i++ {
		if elemDesc[i] == '-' {
			continue
		}
		b, ok := get(elemDesc[i])
		if !ok {
			return nil, xerr.New(xerr.InvalidSexp, "keyinfo: missing parameter %q", string(elemDesc[i]))
		}
		tlvBytes, err := buildPrimitive(asn1.Tag(tagDesc[i]), b)
		if err != nil {
			return nil, err
		}
		parts = append(parts, tlvBytes...)
	}
	if len(elemDesc) == 1 {
		return parts, nil
	}
	return buildConstructed(asn1.TagSequence, parts)
}

func isRawRemainder(tagDesc []byte) bool {
	return len(tagDesc) > 0 && tagDesc[len(tagDesc)-1]&oid.RawRemainder != 0
}

// paramGetter returns the letter->bytes lookup buildElements needs, reading
// from list's (<letter> <mpi>) child entries.
func paramGetter(list sexp.Value) func(byte) ([]byte, bool) {
	return func(letter byte) ([]byte, bool) {
		v, ok := list.Get(string(letter))
		if !ok || v.Len() != 2 {
			return nil, false
		}
		return v.Items()[1].AtomBytes(), true
	}
}

func hashName(inner sexp.Value) string {
	v, ok := inner.Get("hash")
	if !ok || v.Len() != 2 {
		return ""
	}
	return v.Items()[1].AtomString()
}

func hasPSSFlag(inner sexp.Value) bool {
	v, ok := inner.Get("flags")
	return ok && v.Len() == 2 && v.Items()[1].AtomString() == "pss"
}

func pssHashOID(inner sexp.Value) (string, error) {
	v, ok := inner.Get("hash-algo")
	if !ok || v.Len() != 2 {
		return "", xerr.New(xerr.InvalidSexp, "keyinfo: pss signature missing hash-algo")
	}
	return v.Items()[1].AtomString(), nil
}

func pssSaltLength(inner sexp.Value) (int, error) {
	v, ok := inner.Get("salt-length")
	if !ok || v.Len() != 2 {
		return 0, xerr.New(xerr.InvalidSexp, "keyinfo: pss signature missing salt-length")
	}
	n, err := strconv.Atoi(v.Items()[1].AtomString())
	if err != nil {
		return 0, xerr.Wrap(xerr.InvalidSexp, err, "keyinfo: malformed salt-length")
	}
	return n, nil
}

const (
	ed25519SigLen = 64
	ed448SigLen   = 114
)

// resolvePKEntry picks the oid.PKEntries() entry matching algoName,
// disambiguating the several "ecc" entries (one generic, one each for
// Ed25519/Ed448/X25519/X448) by the sexp form's curve parameter. It also
// reports whether the caller must emit a standalone curve OID as the
// AlgorithmIdentifier parameters (true only for the generic entry; the
// dedicated Ed25519/Ed448/X25519/X448 entries carry no parameters field at
// all, per RFC 8410).
func resolvePKEntry(algoName string, inner sexp.Value) (oid.Entry, bool, string, error) {
	entries := oid.PKEntries()
	if algoName != "ecc" {
		for _, e := range entries {
			if e.Name == algoName {
				return e, false, "", nil
			}
		}
		return oid.Entry{}, false, "", xerr.New(xerr.UnknownAlgorithm, "keyinfo: unknown public-key algorithm %q", algoName)
	}

	curveVal, ok := inner.Get("curve")
	if !ok || curveVal.Len() != 2 {
		return oid.Entry{}, false, "", xerr.New(xerr.InvalidSexp, "keyinfo: ecc public key requires a curve parameter")
	}
	dotted, err := resolveCurveOID(curveVal.Items()[1].AtomString())
	if err != nil {
		return oid.Entry{}, false, "", err
	}
	for _, e := range entries {
		if e.Name == "ecc" && e.OIDString == dotted && e.PK != oid.PKECC {
			return e, false, "", nil
		}
	}
	for _, e := range entries {
		if e.PK == oid.PKECC {
			return e, true, dotted, nil
		}
	}
	return oid.Entry{}, false, "", xerr.New(xerr.UnknownAlgorithm, "keyinfo: unknown curve %q", dotted)
}

func resolveCurveOID(name string) (string, error) {
	if oid.LooksLikeOID(name) {
		return oid.NormalizeOIDString(name), nil
	}
	dotted, ok := oid.CurveOID(name)
	if !ok {
		return "", xerr.New(xerr.UnknownAlgorithm, "keyinfo: unknown curve %q", name)
	}
	return dotted, nil
}

// resolveSigEntry picks the oid.SigEntries() entry matching algoName,
// disambiguating "rsa" by a pss flag or hash hint, "ecdsa" by a mandatory
// hash hint, and "eddsa" (Ed25519 vs Ed448, neither of which carries a
// digest hint) by the fixed signature length RFC 8032 assigns each.
func resolveSigEntry(algoName string, inner, top sexp.Value) (oid.Entry, error) {
	entries := oid.SigEntries()
	switch algoName {
	case "rsa":
		if hasPSSFlag(top) {
			for _, e := range entries {
				if e.Support == oid.RSAPSSSpecial {
					return e, nil
				}
			}
			return oid.Entry{}, xerr.New(xerr.UnknownAlgorithm, "keyinfo: RSASSA-PSS not found in table")
		}
		hash := hashName(top)
		for _, e := range entries {
			if e.Name == "rsa" && e.Support == oid.Supported && e.DigestHint == hash {
				return e, nil
			}
		}
		return oid.Entry{}, xerr.New(xerr.UnknownAlgorithm, "keyinfo: unknown rsa signature variant (hash %q)", hash)

	case "ecdsa":
		hash := hashName(top)
		if hash == "" {
			return oid.Entry{}, xerr.New(xerr.InvalidSexp, "keyinfo: ecdsa signature requires a hash parameter")
		}
		for _, e := range entries {
			if e.Name == "ecdsa" && e.DigestHint == hash {
				return e, nil
			}
		}
		return oid.Entry{}, xerr.New(xerr.UnknownAlgorithm, "keyinfo: unsupported ecdsa/%s", hash)

	case "dsa":
		for _, e := range entries {
			if e.Name == "dsa" {
				return e, nil
			}
		}

	case "eddsa":
		sVal, ok := inner.Get("s")
		if !ok || sVal.Len() != 2 {
			return oid.Entry{}, xerr.New(xerr.InvalidSexp, "keyinfo: eddsa signature missing s")
		}
		n := len(sVal.Items()[1].AtomBytes())
		for _, e := range entries {
			if e.Name != "eddsa" {
				continue
			}
			if (e.OIDString == "1.3.101.112" && n == ed25519SigLen) || (e.OIDString == "1.3.101.113" && n == ed448SigLen) {
				return e, nil
			}
		}
		return oid.Entry{}, xerr.New(xerr.UnknownAlgorithm, "keyinfo: eddsa signature length %d matches neither Ed25519 nor Ed448", n)
	}
	return oid.Entry{}, xerr.New(xerr.UnknownAlgorithm, "keyinfo: unknown signature algorithm %q", algoName)
}

func resolveEncEntry(algoName string) (oid.Entry, error) {
	for _, e := range oid.EncEntries() {
		if e.Name == algoName {
			return e, nil
		}
	}
	return oid.Entry{}, xerr.New(xerr.UnknownAlgorithm, "keyinfo: unknown encrypted-value algorithm %q", algoName)
}

// stripOuterSequence validates that raw is exactly one definite-length
// SEQUENCE TLV and returns its content bytes.
func stripOuterSequence(raw []byte) ([]byte, error) {
	d := tlv.NewDecoder(bytes.NewReader(raw))
	h, _, err := d.ReadHeader()
	if err != nil {
		return nil, wrapErr(err)
	}
	if h.Tag != asn1.TagSequence || !h.Constructed {
		return nil, xerr.New(xerr.InvalidKeyInfo, "keyinfo: expected SEQUENCE wrapper, got %s", h.Tag)
	}
	if h.Length == tlv.LengthIndefinite {
		return nil, xerr.New(xerr.NotDerEncoded, "keyinfo: indefinite-length SEQUENCE not permitted here")
	}
	start := int(d.InputOffset())
	if start+h.Length != len(raw) {
		return nil, xerr.New(xerr.InvalidKeyInfo, "keyinfo: trailing data after SEQUENCE wrapper")
	}
	return raw[start : start+h.Length], nil
}

// expectRootEOF verifies d (a fresh decoder over an exactly-sliced buffer)
// has nothing left to read. Unlike expectEOC, which checks for the
// synthetic end-of-contents marker ReadHeader returns inside a constructed
// value's content, a fresh root-level decoder surfaces exhaustion as
// io.EOF instead.
func expectRootEOF(d *tlv.Decoder) error {
	h, _, err := d.ReadHeader()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return wrapErr(err)
	}
	return xerr.New(xerr.InvalidKeyInfo, "keyinfo: unexpected trailing data, got %s", h)
}

// buildPrimitive encodes one primitive TLV (header plus content).
func buildPrimitive(tag asn1.Tag, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	e := tlv.NewEncoder(&buf)
	w, err := e.WriteHeader(tlv.Header{Tag: tag, Length: len(content)})
	if err != nil {
		return nil, encErr(err)
	}
	if len(content) > 0 {
		if _, err := w.Write(content); err != nil {
			return nil, encErr(err)
		}
	}
	return buf.Bytes(), nil
}

// buildConstructed wraps content — the concatenated raw TLV bytes of zero
// or more children — in a single constructed TLV under tag, replaying each
// child through the encoder so the nesting is validated rather than just
// copied.
func buildConstructed(tag asn1.Tag, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	e := tlv.NewEncoder(&buf)
	if _, err := e.WriteHeader(tlv.Header{Tag: tag, Constructed: true, Length: len(content)}); err != nil {
		return nil, encErr(err)
	}
	d := tlv.NewDecoder(bytes.NewReader(content))
	if err := emitRaw(e, d); err != nil {
		return nil, err
	}
	if _, err := e.WriteHeader(tlv.Header{}); err != nil {
		return nil, encErr(err)
	}
	return buf.Bytes(), nil
}

// emitRaw replays every TLV d has left to read into e, recursing into
// constructed values. Called both at root level (where exhaustion reads as
// io.EOF) and, recursively, one level inside a constructed value (where it
// reads as the synthetic end-of-contents header).
func emitRaw(e *tlv.Encoder, d *tlv.Decoder) error {
	for {
		h, v, err := d.ReadHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrapErr(err)
		}
		if h == (tlv.Header{}) {
			return nil
		}
		w, werr := e.WriteHeader(h)
		if werr != nil {
			return encErr(werr)
		}
		if !h.Constructed {
			b, err := readAll(v)
			if err != nil {
				return err
			}
			if _, err := w.Write(b); err != nil {
				return encErr(err)
			}
			continue
		}
		if err := emitRaw(e, d); err != nil {
			return err
		}
		if _, err := e.WriteHeader(tlv.Header{}); err != nil {
			return encErr(err)
		}
	}
}

func encErr(err error) error {
	if err == nil {
		return nil
	}
	return xerr.Wrap(xerr.General, err, "keyinfo: encoding error")
}
