package validator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"recordnorm/internal/lexical"
	"recordnorm/internal/semantic"
	"recordnorm/pkg/records"
)

// fieldState is the per-column accumulator.
type fieldState struct {
	res     FieldResult
	checks  map[string]struct{}
	seen    map[string]struct{}
	numbers []numObs
}

type numObs struct {
	row int
	val float64
	raw string
}

func newFieldState(col string, t semantic.Type, rows int) *fieldState {
	return &fieldState{
		res: FieldResult{
			Field:        col,
			SemanticType: t,
			Total:        rows,
			FailedChecks: []string{},
		},
		checks: map[string]struct{}{},
		seen:   map[string]struct{}{},
	}
}

// addCheck inserts into the ordered failed-check set.
func (fs *fieldState) addCheck(id string) {
	if _, ok := fs.checks[id]; ok {
		return
	}
	fs.checks[id] = struct{}{}
	fs.res.FailedChecks = append(fs.res.FailedChecks, id)
}

// finish derives the quality score: the valid ratio minus a warning penalty
// capped at 50 points, clamped to [0,100].
func (fs *fieldState) finish() {
	r := &fs.res
	r.Distinct = len(fs.seen)
	if r.Total == 0 {
		r.QualityScore = 100
		return
	}
	base := 100 * float64(r.Valid) / float64(r.Total)
	penalty := math.Min(50, 50*float64(r.Warnings)/float64(r.Total))
	r.QualityScore = clamp(roundInt(base-penalty), 0, 100)
}

func (r *run) checkValue(fs *fieldState, row int, v records.Value) {
	col, typ := fs.res.Field, fs.res.SemanticType
	issue := func(sev Severity, check, msg string) Issue {
		return Issue{Row: row, Column: col, Value: v.Text(), Message: msg, Severity: sev, Check: check}
	}

	if v.IsEmpty() {
		fs.res.Missing++
		if typ == semantic.Identifier {
			r.record(fs, issue(SeverityCritical, CheckMissingIdentifier, "identifier is missing"))
		}
		return
	}

	text := strings.TrimSpace(v.Text())
	before := fs.res.Errors + fs.res.Critical

	switch typ {
	case semantic.Identifier:
		if _, dup := fs.seen[text]; dup {
			r.record(fs, issue(SeverityError, CheckDuplicateIdentifier, fmt.Sprintf("duplicate identifier %q", text)))
		}

	case semantic.NumericAmount:
		n, ok := v.Float()
		if !ok {
			n, ok = lexical.ParseAmount(text)
		}
		switch {
		case !ok:
			r.record(fs, issue(SeverityError, CheckNotNumeric, "value is not a number"))
		case n < 0:
			r.record(fs, issue(SeverityWarning, CheckNegativeAmount, "amount is negative"))
		}
		if ok {
			fs.numbers = append(fs.numbers, numObs{row: row, val: n, raw: text})
		}

	case semantic.Date:
		t, ok := lexical.ParseDate(text)
		switch {
		case !ok:
			r.record(fs, issue(SeverityError, CheckInvalidDate, "value is not a recognizable date"))
		case t.After(r.now):
			r.record(fs, issue(SeverityWarning, CheckFutureDate, "date is in the future"))
		}

	case semantic.ContactInfo:
		switch {
		case strings.Contains(text, "@"):
			if !lexical.IsEmail(text) {
				r.record(fs, issue(SeverityError, CheckInvalidEmail, "malformed email address"))
			}
		case lexical.HasDigit(text):
			if !lexical.DigitCountIn(text, r.opts.PhoneMinDigits, r.opts.PhoneMaxDigits) {
				r.record(fs, issue(SeverityWarning, CheckPhoneLength,
					fmt.Sprintf("phone number must have %d-%d digits", r.opts.PhoneMinDigits, r.opts.PhoneMaxDigits)))
			}
		}

	case semantic.BooleanFlag:
		if _, isBool := v.Boolean(); !isBool && !lexical.IsBoolToken(text) {
			r.record(fs, issue(SeverityError, CheckInvalidBoolean, "value is not a boolean token"))
		}

	case semantic.FreeText:
		if utf8.RuneCountInString(v.Text()) > r.opts.MaxTextLength {
			r.record(fs, issue(SeverityWarning, CheckTextTooLong,
				fmt.Sprintf("text exceeds %d characters", r.opts.MaxTextLength)))
		}
		if lexical.HasControlChars(v.Text()) {
			r.record(fs, issue(SeverityWarning, CheckControlCharacters, "text contains control characters"))
		}
	}

	fs.seen[text] = struct{}{}
	if fs.res.Errors+fs.res.Critical > before {
		fs.res.Invalid++
	} else {
		fs.res.Valid++
	}
}

// flagOutliers applies Tukey fences around the quartiles of a numeric column
// with at least ten values and warns about every value outside them.
func (r *run) flagOutliers(fs *fieldState) {
	n := len(fs.numbers)
	if n < 10 {
		return
	}
	sorted := make([]float64, n)
	for i, o := range fs.numbers {
		sorted[i] = o.val
	}
	sort.Float64s(sorted)
	q1 := sorted[n/4]
	q3 := sorted[(n*3)/4]
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	for _, o := range fs.numbers {
		if o.val < lo || o.val > hi {
			r.record(fs, Issue{
				Row:      o.row,
				Column:   fs.res.Field,
				Value:    o.raw,
				Message:  fmt.Sprintf("value outside expected range [%g, %g]", lo, hi),
				Severity: SeverityWarning,
				Check:    CheckOutlier,
			})
		}
	}
}

func roundInt(f float64) int { return int(math.Round(f)) }

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
