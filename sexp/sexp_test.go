package sexp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Bytes_Atom(t *testing.T) {
	assert.Equal(t, "3:abc", Atom([]byte("abc")).String())
}

func TestValue_Bytes_List(t *testing.T) {
	v := List(AtomString("rsa"), List(AtomString("n"), AtomString("ab")))
	assert.Equal(t, "(3:rsa(1:n2:ab))", v.String())
}

func TestParseAll_RoundTrip(t *testing.T) {
	v := List(AtomString("public-key"), List(AtomString("rsa"),
		List(AtomString("n"), Atom([]byte{0x00, 0xc0})),
		List(AtomString("e"), Atom([]byte{0x01, 0x00, 0x01}))))
	encoded := v.Bytes()

	parsed, err := ParseAll(encoded)
	require.NoError(t, err)
	assert.Equal(t, encoded, parsed.Bytes())
}

func TestValue_Get(t *testing.T) {
	v := List(AtomString("rsa"), List(AtomString("n"), AtomString("1")), List(AtomString("e"), AtomString("2")))
	e, ok := v.Get("e")
	require.True(t, ok)
	assert.Equal(t, "2", e.Items()[1].AtomString())

	_, ok = v.Get("missing")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	for _, s := range []string{"", "(", "3:ab", "x:abc", "3:"} {
		_, _, err := Parse([]byte(s))
		assert.Error(t, err, "expected %q to fail", s)
	}
}

func TestParseAll_TrailingData(t *testing.T) {
	_, err := ParseAll([]byte("3:abcX"))
	assert.Error(t, err)
}
