package schema

import (
	_ "embed"

	"go.corvid.dev/x690"
)

// X509Grammar is the built-in textual grammar covering the X.509
// certificate types this module decodes.
//
//go:embed grammar/x509.asn1
var X509Grammar string

// CMSGrammar is the built-in textual grammar covering the Cryptographic
// Message Syntax types this module decodes.
//
//go:embed grammar/cms.asn1
var CMSGrammar string

// universalTagByName maps the bare-keyword primitive types to their
// universal class tag. BIT STRING, OCTET STRING, and OBJECT IDENTIFIER are
// two-word keywords and are handled separately in parsePrimitiveOrRef.
var universalTagByName = map[string]asn1.Tag{
	"BOOLEAN":          asn1.TagBoolean,
	"INTEGER":          asn1.TagInteger,
	"NULL":             asn1.TagNull,
	"UTCTime":          asn1.TagUTCTime,
	"GeneralizedTime":  asn1.TagGeneralizedTime,
	"UTF8String":       asn1.TagUTF8String,
	"PrintableString":  asn1.TagPrintableString,
	"IA5String":        asn1.TagIA5String,
	"T61String":        asn1.TagTeletexString,
	"TeletexString":    asn1.TagTeletexString,
	"BMPString":        asn1.TagBMPString,
	"UniversalString":  asn1.TagUniversalString,
	"NumericString":    asn1.TagNumericString,
	"VisibleString":    asn1.TagVisibleString,
}

const (
	bitStringTag   = asn1.TagBitString
	octetStringTag = asn1.TagOctetString
	oidTag         = asn1.TagOID
)

var defaultRegistry *Registry

func init() {
	r, err := Load(X509Grammar, CMSGrammar)
	if err != nil {
		panic("schema: built-in grammar failed to load: " + err.Error())
	}
	defaultRegistry = r
}

// Default returns the Registry built from the module's built-in X.509 and
// CMS grammars.
func Default() *Registry {
	return defaultRegistry
}

// Load parses each of srcs as an independent module and returns a Registry
// indexing every top-level type across all of them, with cross-module type
// references resolved.
func Load(srcs ...string) (*Registry, error) {
	reg := &Registry{byName: map[string]*Type{}}
	for _, src := range srcs {
		m, err := parseModule(src)
		if err != nil {
			return nil, err
		}
		reg.Modules = append(reg.Modules, m)
		for name, t := range m.Types {
			reg.byName[name] = t
		}
	}
	if err := resolveRefs(reg.byName); err != nil {
		return nil, err
	}
	return reg, nil
}
