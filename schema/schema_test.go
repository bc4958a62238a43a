package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.corvid.dev/x690/schema"
)

func TestDefault_LoadsBuiltinGrammars(t *testing.T) {
	reg := schema.Default()
	require.NotNil(t, reg)

	cert, ok := reg.Lookup("Certificate")
	require.True(t, ok)
	assert.Equal(t, schema.KindSequence, cert.Kind)
	require.Len(t, cert.Fields, 3)
	assert.Equal(t, "tbsCertificate", cert.Fields[0].Name)
	assert.Equal(t, "signatureAlgorithm", cert.Fields[1].Name)
	assert.Equal(t, "signatureValue", cert.Fields[2].Name)
}

func TestLoad_CrossModuleReferenceResolves(t *testing.T) {
	reg := schema.Default()

	certSet, ok := reg.Lookup("CertificateSet")
	require.True(t, ok)
	assert.Equal(t, schema.KindSetOf, certSet.Kind)
	require.NotNil(t, certSet.Elem)
	assert.Equal(t, "Certificate", certSet.Elem.Name)

	issuerAndSerial, ok := reg.Lookup("IssuerAndSerialNumber")
	require.True(t, ok)
	require.Len(t, issuerAndSerial.Fields, 2)
	nameField := issuerAndSerial.Fields[0]
	assert.Equal(t, "issuer", nameField.Name)
	require.NotNil(t, nameField.Type)
	assert.Equal(t, "Name", nameField.Type.Name)
	assert.Equal(t, schema.KindChoice, nameField.Type.Kind)
}

func TestType_TaggedFields(t *testing.T) {
	reg := schema.Default()

	tbs, ok := reg.Lookup("TBSCertificate")
	require.True(t, ok)

	var version schema.Field
	for _, f := range tbs.Fields {
		if f.Name == "version" {
			version = f
		}
	}
	require.NotNil(t, version.Type)
	assert.True(t, version.Optional)
	assert.Equal(t, schema.KindTagged, version.Type.Kind)
	assert.True(t, version.Type.Explicit)
	assert.EqualValues(t, 0, version.Type.Tag)
	require.NotNil(t, version.Type.Elem)
	assert.Equal(t, schema.KindPrimitive, version.Type.Elem.Kind)
}

func TestType_SequenceOfAndAny(t *testing.T) {
	reg := schema.Default()

	exts, ok := reg.Lookup("Extensions")
	require.True(t, ok)
	assert.Equal(t, schema.KindSequenceOf, exts.Kind)
	require.NotNil(t, exts.Elem)
	assert.Equal(t, "Extension", exts.Elem.Name)

	algID, ok := reg.Lookup("AlgorithmIdentifier")
	require.True(t, ok)
	require.Len(t, algID.Fields, 2)
	params := algID.Fields[1]
	assert.Equal(t, "parameters", params.Name)
	assert.True(t, params.Optional)
	assert.Equal(t, schema.KindAny, params.Type.Kind)
}

func TestLoad_UnresolvedReferenceErrors(t *testing.T) {
	const src = `broken DEFINITIONS ::= BEGIN
Thing ::= SEQUENCE {
    x NoSuchType
}
END
`
	_, err := schema.Load(src)
	require.Error(t, err)
}

func TestLoad_SyntaxError(t *testing.T) {
	const src = `broken DEFINITIONS ::= BEGIN
Thing ::= SEQUENCE {{{
END
`
	_, err := schema.Load(src)
	require.Error(t, err)
}

func TestRegistry_MustLookupPanicsOnUnknown(t *testing.T) {
	reg := schema.Default()
	assert.Panics(t, func() {
		reg.MustLookup("NoSuchType")
	})
}
