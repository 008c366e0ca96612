// Package lexical holds the value-shape predicates shared by the type
// inferencer, the field validator and the cleaner, so the three agree on what
// an email, a phone number, a date or an amount looks like.
package lexical

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Phone numbers carry between PhoneMinDigits and PhoneMaxDigits digits once
// separators are stripped.
const (
	PhoneMinDigits = 7
	PhoneMaxDigits = 15
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsEmail reports whether s (trimmed) is a well-formed email address.
func IsEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasDigit reports whether s contains at least one ASCII digit.
func HasDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

// DigitCountIn reports whether the digit count of s lies in [min, max].
func DigitCountIn(s string, min, max int) bool {
	n := len(Digits(s))
	return n >= min && n <= max
}

// LooksLikePhone is the inference-time phone test: only phone characters,
// a digit count in [min, max], and either a leading '+' or at least one
// separator. Bare digit runs are left to the numeric tests.
func LooksLikePhone(s string, min, max int) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	separated := strings.HasPrefix(s, "+")
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
			separated = true
		case r == '+':
		default:
			return false
		}
	}
	return separated && DigitCountIn(s, min, max)
}

// timestampLayouts are tried before dateLayouts.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"02.01.2006 15:04:05",
	"02/01/2006 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
}

var dateLayouts = []string{
	"2006-01-02",  // ISO
	"2006/01/02",  // ISO slashy
	"02.01.2006",  // DMY dot
	"02/01/2006",  // DMY slash
	"01/02/2006",  // MDY slash
	"02-01-2006",  // DMY dash
	"2 Jan 2006",  // DMY textual
	"02-Jan-2006", // DMY dash textual
	"Jan 2, 2006", // textual US
	"January 2, 2006",
}

var (
	ymdRe = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
	dmyRe = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})$`)
)

// ParseDate parses s with the known layouts, then with a loose
// YYYY-MM-DD / DD-MM-YYYY fallback that tolerates single-digit parts.
// The returned time is in UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if m := ymdRe.FindStringSubmatch(s); m != nil {
		return civil(m[1], m[2], m[3])
	}
	if m := dmyRe.FindStringSubmatch(s); m != nil {
		return civil(m[3], m[2], m[1])
	}
	return time.Time{}, false
}

// civil builds a date and rejects out-of-range parts (e.g. 2024-02-31).
func civil(ys, ms, ds string) (time.Time, bool) {
	y, _ := strconv.Atoi(ys)
	m, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

var currencyCodes = map[string]struct{}{
	"usd": {}, "eur": {}, "gbp": {}, "jpy": {}, "chf": {}, "czk": {},
	"cny": {}, "inr": {}, "cad": {}, "aud": {}, "pln": {}, "sek": {},
}

// HasCurrencyMarker reports whether s carries a currency symbol or an ISO
// currency code as a separate token.
func HasCurrencyMarker(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Sc, r) {
			return true
		}
	}
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if _, ok := currencyCodes[tok]; ok {
			return true
		}
	}
	return false
}

// ParseNumber parses a plain decimal number. NaN and infinities are not
// numbers here.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseAmount parses a monetary or grouped number such as "$1,200.50",
// "1 200 CZK" or "-3.5". Currency markers, spaces and thousands commas are
// ignored; anything else makes the value non-numeric.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, ok := ParseNumber(s); ok {
		return f, true
	}
	var b strings.Builder
	for _, tok := range strings.Fields(s) {
		if _, ok := currencyCodes[strings.ToLower(tok)]; ok {
			continue
		}
		for _, r := range tok {
			switch {
			case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
				b.WriteRune(r)
			case r == ',', unicode.Is(unicode.Sc, r):
			default:
				return 0, false
			}
		}
	}
	return ParseNumber(b.String())
}

// StripToNumeric keeps only digits, '.' and '-' and parses the result.
func StripToNumeric(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return ParseNumber(b.String())
}

// strictBool is the token set the validator accepts for boolean flags.
var strictBool = map[string]struct{}{
	"true": {}, "false": {}, "0": {}, "1": {}, "yes": {}, "no": {}, "y": {}, "n": {},
}

// IsBoolToken reports whether the lowercased value is an accepted boolean
// token for validation.
func IsBoolToken(s string) bool {
	_, ok := strictBool[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseBool maps the wider cleaning vocabulary (which also accepts t/f and
// on/off) to a bool.
func ParseBool(s string) (val bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "t", "on":
		return true, true
	case "false", "no", "n", "0", "f", "off":
		return false, true
	}
	return false, false
}

// HasControlChars reports non-printable characters other than tab and
// newline.
func HasControlChars(s string) bool {
	for _, r := range s {
		if r == '\t' || r == '\n' {
			continue
		}
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
