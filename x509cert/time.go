package x509cert

import (
	"strconv"
	"time"

	"go.corvid.dev/x690/ber"
	"go.corvid.dev/x690/xerr"
)

// ValidityField selects one of a Certificate's two Validity bounds.
type ValidityField int

const (
	NotBefore ValidityField = iota
	NotAfter
)

// Validity returns the chosen bound as Unix epoch seconds. ok is false
// (with no error) for an unparsable or zero time value, per this module's
// "zero/unparsable yields no value" time-encoding rule; LastError is set
// only for a structural failure (the field itself missing or malformed).
func (c *Certificate) Validity(which ValidityField) (int64, bool) {
	var path string
	switch which {
	case NotBefore:
		path = "tbsCertificate.validity.notBefore"
	case NotAfter:
		path = "tbsCertificate.validity.notAfter"
	default:
		c.lastErr = xerr.New(xerr.InvalidValue, "x509cert: unknown validity field %d", which)
		return 0, false
	}

	n := ber.Find(c.root, path)
	if n == nil || !n.Present() || len(n.Children) != 1 {
		c.lastErr = xerr.New(xerr.NoValue, "x509cert: validity field missing")
		return 0, false
	}
	choice := n.Children[0]
	content := choice.Content(c.img)

	var t time.Time
	var ok bool
	switch choice.Name {
	case "utcTime":
		t, ok = parseUTCTime(content)
	case "generalTime":
		t, ok = parseGeneralizedTime(content)
	default:
		c.lastErr = xerr.New(xerr.BerError, "x509cert: unknown Time alternative %q", choice.Name)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	return t.Unix(), true
}

// ParseUTCTime exports parseUTCTime for package cms's signing-time
// attribute, which is the same wire shape as a certificate's Validity
// bound.
func ParseUTCTime(raw []byte) (time.Time, bool) { return parseUTCTime(raw) }

// ParseGeneralizedTime exports parseGeneralizedTime for package cms.
func ParseGeneralizedTime(raw []byte) (time.Time, bool) { return parseGeneralizedTime(raw) }

// parseUTCTime parses a UTCTime YYMMDDHHMMSSZ value, pivoting the two-digit
// year at 50: 00-49 maps to 2000-2049, 50-99 to 1950-1999.
func parseUTCTime(raw []byte) (time.Time, bool) {
	s := string(raw)
	if len(s) != 13 || s[12] != 'Z' {
		return time.Time{}, false
	}
	yy, err := strconv.Atoi(s[0:2])
	if err != nil {
		return time.Time{}, false
	}
	year := 1900 + yy
	if yy <= 49 {
		year = 2000 + yy
	}
	return buildTime(year, s[2:4], s[4:6], s[6:8], s[8:10], s[10:12])
}

// parseGeneralizedTime parses a GeneralizedTime YYYYMMDDHHMMSSZ value.
func parseGeneralizedTime(raw []byte) (time.Time, bool) {
	s := string(raw)
	if len(s) != 15 || s[14] != 'Z' {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(s[0:4])
	if err != nil {
		return time.Time{}, false
	}
	return buildTime(year, s[4:6], s[6:8], s[8:10], s[10:12], s[12:14])
}

func buildTime(year int, mm, dd, hh, mi, ss string) (time.Time, bool) {
	m, err1 := strconv.Atoi(mm)
	d, err2 := strconv.Atoi(dd)
	h, err3 := strconv.Atoi(hh)
	mn, err4 := strconv.Atoi(mi)
	sec, err5 := strconv.Atoi(ss)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 || h > 23 || mn > 59 || sec > 60 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(m), d, h, mn, sec, 0, time.UTC), true
}
