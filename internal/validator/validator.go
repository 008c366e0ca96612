// Package validator scores tabular data field by field against the rules of
// each column's semantic type.
//
// Validate never fails: every problem becomes an Issue with a severity, and
// the report carries per-field quality scores plus a dataset status. The issue
// log is bounded; counters always reflect every issue found.
package validator

import (
	"sort"
	"time"

	"recordnorm/internal/lexical"
	"recordnorm/internal/semantic"
	"recordnorm/pkg/records"
)

// Severity of a field-level issue. Critical is reserved for missing
// identifiers and counts as an error everywhere.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// Failed-check identifiers.
const (
	CheckMissingIdentifier   = "missing_identifier"
	CheckDuplicateIdentifier = "duplicate_identifier"
	CheckNotNumeric          = "not_numeric"
	CheckNegativeAmount      = "negative_amount"
	CheckInvalidDate         = "invalid_date"
	CheckFutureDate          = "future_date"
	CheckInvalidEmail        = "invalid_email"
	CheckPhoneLength         = "phone_length"
	CheckInvalidBoolean      = "invalid_boolean"
	CheckTextTooLong         = "text_too_long"
	CheckControlCharacters   = "control_characters"
	CheckOutlier             = "outlier"
)

// Status of a whole dataset.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Issue is one finding for a (row, column) pair.
type Issue struct {
	Row      int      `json:"row"`
	Column   string   `json:"column"`
	Value    string   `json:"value"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Check    string   `json:"check"`
}

// FieldResult aggregates one column.
type FieldResult struct {
	Field        string        `json:"field"`
	SemanticType semantic.Type `json:"semantic_type"`
	Total        int           `json:"total"`
	Valid        int           `json:"valid"`
	Invalid      int           `json:"invalid"`
	Missing      int           `json:"missing"`
	Warnings     int           `json:"warnings"`
	Errors       int           `json:"errors"`
	Critical     int           `json:"critical"`
	Distinct     int           `json:"distinct"`
	QualityScore int           `json:"quality_score"`
	FailedChecks []string      `json:"failed_checks"`
}

// Report is the result of one Validate call.
type Report struct {
	Score        int           `json:"score"`
	Status       Status        `json:"status"`
	RowCount     int           `json:"row_count"`
	Fields       []FieldResult `json:"fields"`
	Issues       []Issue       `json:"issues"`
	TotalIssues  int           `json:"total_issues"`
	ErrorCount   int           `json:"error_count"`
	WarningCount int           `json:"warning_count"`

	rowWorst map[int]Severity
}

// RowsWithSeverity returns the sorted indices of rows that carry at least one
// issue of severity min or worse. Every issue counts, not only logged ones.
func (r Report) RowsWithSeverity(min Severity) []int {
	var out []int
	for row, s := range r.rowWorst {
		if s.rank() >= min.rank() {
			out = append(out, row)
		}
	}
	sort.Ints(out)
	return out
}

// Field returns the result for a column.
func (r Report) Field(name string) (FieldResult, bool) {
	for _, f := range r.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldResult{}, false
}

// Options tune the validator. Zero fields take the defaults.
type Options struct {
	MaxCollectedIssues int
	MaxReportedIssues  int
	MaxTextLength      int
	PhoneMinDigits     int
	PhoneMaxDigits     int
	// Now is the reference time for future-date checks.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		MaxCollectedIssues: 1000,
		MaxReportedIssues:  100,
		MaxTextLength:      10000,
		PhoneMinDigits:     lexical.PhoneMinDigits,
		PhoneMaxDigits:     lexical.PhoneMaxDigits,
		Now:                time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxCollectedIssues <= 0 {
		o.MaxCollectedIssues = d.MaxCollectedIssues
	}
	if o.MaxReportedIssues <= 0 {
		o.MaxReportedIssues = d.MaxReportedIssues
	}
	if o.MaxReportedIssues > o.MaxCollectedIssues {
		o.MaxReportedIssues = o.MaxCollectedIssues
	}
	if o.MaxTextLength <= 0 {
		o.MaxTextLength = d.MaxTextLength
	}
	if o.PhoneMinDigits <= 0 {
		o.PhoneMinDigits = d.PhoneMinDigits
	}
	if o.PhoneMaxDigits <= 0 {
		o.PhoneMaxDigits = d.PhoneMaxDigits
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Validator is stateless between calls and safe to reuse.
type Validator struct {
	opts Options
}

func New(opts Options) *Validator {
	return &Validator{opts: opts.withDefaults()}
}

// run holds the mutable state of a single Validate call.
type run struct {
	opts     Options
	now      time.Time
	issues   []Issue
	total    int
	errors   int
	warnings int
	rowWorst map[int]Severity
}

// Validate checks every (row, mapped column) pair. Columns are processed in
// sorted order so reports are reproducible.
func (v *Validator) Validate(rows []records.Row, mapping semantic.Mapping) Report {
	r := &run{
		opts:     v.opts,
		now:      v.opts.Now(),
		rowWorst: map[int]Severity{},
	}

	cols := mapping.Columns()
	fields := make([]*fieldState, 0, len(cols))
	for _, col := range cols {
		fs := newFieldState(col, mapping[col], len(rows))
		for i, row := range rows {
			r.checkValue(fs, i, row.Get(col))
		}
		if fs.res.SemanticType == semantic.NumericAmount {
			r.flagOutliers(fs)
		}
		fields = append(fields, fs)
	}

	rep := Report{
		RowCount:     len(rows),
		Fields:       make([]FieldResult, 0, len(fields)),
		TotalIssues:  r.total,
		ErrorCount:   r.errors,
		WarningCount: r.warnings,
		rowWorst:     r.rowWorst,
	}
	sum := 0
	for _, fs := range fields {
		fs.finish()
		sum += fs.res.QualityScore
		rep.Fields = append(rep.Fields, fs.res)
	}
	rep.Score = 100
	if len(fields) > 0 {
		rep.Score = roundInt(float64(sum) / float64(len(fields)))
	}
	rep.Status = status(rep)

	n := min(len(r.issues), v.opts.MaxReportedIssues)
	rep.Issues = append([]Issue(nil), r.issues[:n]...)
	return rep
}

func status(rep Report) Status {
	if rep.Score < 60 || float64(rep.ErrorCount) > 0.1*float64(rep.RowCount) {
		return StatusFail
	}
	if rep.Score < 90 || rep.WarningCount > 0 {
		return StatusWarn
	}
	return StatusPass
}

// record counts an issue and keeps it when the log still has room.
func (r *run) record(fs *fieldState, is Issue) {
	r.total++
	switch is.Severity {
	case SeverityWarning:
		r.warnings++
		fs.res.Warnings++
	case SeverityError:
		r.errors++
		fs.res.Errors++
	case SeverityCritical:
		r.errors++
		fs.res.Critical++
	}
	fs.addCheck(is.Check)
	if cur, ok := r.rowWorst[is.Row]; !ok || is.Severity.rank() > cur.rank() {
		r.rowWorst[is.Row] = is.Severity
	}
	if len(r.issues) < r.opts.MaxCollectedIssues {
		is.Value = truncate(is.Value, 200)
		r.issues = append(r.issues, is)
	}
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "…"
}
