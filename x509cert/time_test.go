package x509cert_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.corvid.dev/x690/x509cert"
)

func TestParseUTCTime_YearPivot(t *testing.T) {
	// yy <= 49 maps to 20yy.
	got, ok := x509cert.ParseUTCTime([]byte("491231235959Z"))
	require.True(t, ok)
	assert.Equal(t, time.Date(2049, 12, 31, 23, 59, 59, 0, time.UTC), got)

	// yy >= 50 maps to 19yy.
	got, ok = x509cert.ParseUTCTime([]byte("500101000000Z"))
	require.True(t, ok)
	assert.Equal(t, time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestParseUTCTime_Malformed(t *testing.T) {
	cases := [][]byte{
		[]byte("2501010000Z"),  // too short
		[]byte("250101000000"), // missing trailing Z
		[]byte("25ab01000000Z"),
	}
	for _, c := range cases {
		_, ok := x509cert.ParseUTCTime(c)
		assert.False(t, ok, "%s", c)
	}
}

func TestParseGeneralizedTime_RoundTrip(t *testing.T) {
	got, ok := x509cert.ParseGeneralizedTime([]byte("20351231235959Z"))
	require.True(t, ok)
	assert.Equal(t, time.Date(2035, 12, 31, 23, 59, 59, 0, time.UTC), got)
}

func TestParseGeneralizedTime_InvalidMonth(t *testing.T) {
	_, ok := x509cert.ParseGeneralizedTime([]byte("20351331235959Z"))
	assert.False(t, ok)
}
