package semantic

import (
	"strings"
	"unicode/utf8"

	"recordnorm/internal/lexical"
)

// Stats are the per-column statistics the decision rules look at. Ratios are
// fractions of NonNull.
type Stats struct {
	NonNull      int
	UniqueRatio  float64
	AvgLength    float64
	EmailRatio   float64
	PhoneRatio   float64
	ContactRatio float64 // email or phone
	DateRatio    float64
	NumericRatio float64
	BoolRatio    float64
	SpaceRatio   float64 // values containing inner whitespace
	HasCurrency  bool
}

// Compute derives Stats from raw values with default Options. Blank values
// are ignored.
func Compute(values []string) Stats {
	return compute(values, Options{})
}

// A value is phone-like when it carries PhoneMinDigits..PhoneMaxDigits
// digits. Under StrictShapes it must also be written like a phone number
// and must not parse as a date.
func isPhoneLike(v string, isDate bool, opts Options) bool {
	if !opts.StrictShapes {
		return lexical.DigitCountIn(v, lexical.PhoneMinDigits, lexical.PhoneMaxDigits)
	}
	return !isDate && lexical.LooksLikePhone(v, lexical.PhoneMinDigits, lexical.PhoneMaxDigits)
}

func compute(values []string, opts Options) Stats {
	var (
		st       Stats
		seen     = make(map[string]struct{}, len(values))
		totalLen int
		email    int
		phone    int
		contact  int
		date     int
		numeric  int
		boolean  int
		spaced   int
	)
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		st.NonNull++
		seen[v] = struct{}{}
		totalLen += utf8.RuneCountInString(v)
		if strings.ContainsAny(v, " \t\n") {
			spaced++
		}

		_, isDate := lexical.ParseDate(v)
		isEmail := lexical.IsEmail(v)
		isPhone := isPhoneLike(v, isDate, opts)
		if isEmail {
			email++
		}
		if isPhone {
			phone++
		}
		if isEmail || isPhone {
			contact++
		}
		if isDate {
			date++
		}
		if _, ok := lexical.ParseAmount(v); ok {
			numeric++
		}
		if _, ok := lexical.ParseBool(v); ok {
			boolean++
		}
		if !st.HasCurrency && lexical.HasCurrencyMarker(v) {
			st.HasCurrency = true
		}
	}
	if st.NonNull == 0 {
		return st
	}
	n := float64(st.NonNull)
	st.UniqueRatio = float64(len(seen)) / n
	st.AvgLength = float64(totalLen) / n
	st.EmailRatio = float64(email) / n
	st.PhoneRatio = float64(phone) / n
	st.ContactRatio = float64(contact) / n
	st.DateRatio = float64(date) / n
	st.NumericRatio = float64(numeric) / n
	st.BoolRatio = float64(boolean) / n
	st.SpaceRatio = float64(spaced) / n
	return st
}
